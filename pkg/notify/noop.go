package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopChannel logs and simulates success, mirroring the teacher's
// NoopCaller stub used before a real provider is wired in.
type NoopChannel struct {
	Logger *slog.Logger
}

func (n *NoopChannel) Name() string { return "noop" }

func (n *NoopChannel) Send(ctx context.Context, msg Notification) (Result, error) {
	n.Logger.Info("noop notification send", "alert_id", msg.AlertID, "phone", msg.Phone)
	return Result{ProviderMessageID: "noop-" + uuid.NewString()}, nil
}
