package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestTwilioSMSSendReturnsProviderMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.FormValue("To"); got != "+15555550123" {
			t.Errorf("To = %q, want +15555550123", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(twilioMessageResponse{SID: "SM123", Status: "queued"})
	}))
	defer server.Close()

	sms := NewTwilioSMS("ACxxx", "token", "+15555550100")
	sms.BaseURL = server.URL

	result, err := sms.Send(context.Background(), Notification{
		DeliveryID: uuid.New(),
		Phone:      "+15555550123",
		Body:       "unit 1 is in alarm",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.ProviderMessageID != "SM123" {
		t.Fatalf("ProviderMessageID = %q, want SM123", result.ProviderMessageID)
	}
}

func TestTwilioSMSSendReturnsTransientErrorOnFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(twilioMessageResponse{ErrorMsg: "invalid number"})
	}))
	defer server.Close()

	sms := NewTwilioSMS("ACxxx", "token", "+15555550100")
	sms.BaseURL = server.URL

	_, err := sms.Send(context.Background(), Notification{Phone: "bad", Body: "x"})
	if err == nil {
		t.Fatal("expected an error from a failed send")
	}
}
