package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frostguard/core/internal/apperr"
)

// sendTimeout bounds a single Twilio call; the spec requires a per-job
// timeout enforced at the provider client level, with retries left entirely
// to the job queue (spec §5: "the provider client itself must not retry").
const sendTimeout = 30 * time.Second

// TwilioSMS sends messages through Twilio's Messages REST resource. No
// Twilio SDK appears anywhere in the example corpus (the teacher's own
// pkg/integration/callout.go ships only a NoopCaller behind the Caller
// interface with a TODO for the real implementation) so this talks to the
// plain REST API directly, the way the teacher's inbound Twilio webhook
// handler (pkg/integration/twilio_handler.go) already does form-encoded
// HTTP against Twilio without an SDK.
type TwilioSMS struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	HTTPClient *http.Client
	BaseURL    string // overridable for tests; defaults to the real API origin
}

func NewTwilioSMS(accountSID, authToken, fromNumber string) *TwilioSMS {
	return &TwilioSMS{
		AccountSID: accountSID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
		HTTPClient: &http.Client{Timeout: sendTimeout},
		BaseURL:    "https://api.twilio.com",
	}
}

func (t *TwilioSMS) Name() string { return "twilio_sms" }

type twilioMessageResponse struct {
	SID         string `json:"sid"`
	Status      string `json:"status"`
	ErrorCode   *int   `json:"error_code"`
	ErrorMsg    string `json:"error_message"`
}

func (t *TwilioSMS) Send(ctx context.Context, n Notification) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.BaseURL, t.AccountSID)
	form := url.Values{
		"To":   {n.Phone},
		"From": {t.FromNumber},
		"Body": {n.Body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindTransient, "building twilio request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.AccountSID, t.AuthToken)

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindTransient, "calling twilio", err)
	}
	defer resp.Body.Close()

	var body twilioMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, apperr.Wrap(apperr.KindTransient, "decoding twilio response", err)
	}

	if resp.StatusCode >= 300 {
		msg := body.ErrorMsg
		if msg == "" {
			msg = fmt.Sprintf("twilio returned status %d", resp.StatusCode)
		}
		return Result{}, apperr.New(apperr.KindTransient, msg)
	}

	return Result{ProviderMessageID: body.SID}, nil
}
