package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"

	"github.com/frostguard/core/internal/apperr"
)

// SlackChannel mirrors every outbound notification to an operator channel,
// grounded on the teacher's pkg/slack Notifier: a bot-token client posting
// plain text to one configured channel, noop when the token is empty. SMS
// is the spec's notification surface of record (§6); Slack is a secondary
// mirror, so a Slack failure is logged and never fails the escalation step
// that dispatched it.
type SlackChannel struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

func NewSlackChannel(botToken, channel string, logger *slog.Logger) *SlackChannel {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &SlackChannel{client: client, channel: channel, logger: logger}
}

func (s *SlackChannel) Name() string { return "slack" }

func (s *SlackChannel) Enabled() bool { return s.client != nil && s.channel != "" }

func (s *SlackChannel) Send(ctx context.Context, n Notification) (Result, error) {
	if !s.Enabled() {
		s.logger.Debug("slack channel disabled, skipping mirror", "alert_id", n.AlertID)
		return Result{}, nil
	}

	_, ts, err := s.client.PostMessageContext(ctx, s.channel,
		goslack.MsgOptionText(fmt.Sprintf("%s\n<tel:%s|%s>", n.Body, n.Phone, n.Phone), false))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindTransient, "posting to slack", err)
	}
	return Result{ProviderMessageID: ts}, nil
}
