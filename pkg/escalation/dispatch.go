package escalation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/pkg/jobqueue"
	"github.com/frostguard/core/pkg/notify"
)

// Dispatcher consumes SMS jobs off the queue and sends them through the
// configured channel, recording the outcome on the NotificationDelivery row
// (spec §4.6 step 6, §4.6 failure semantics).
type Dispatcher struct {
	Queries *db.Queries
	Channel notify.Channel
	Mirror  notify.Channel // optional secondary channel (Slack); best-effort only
	Logger  *slog.Logger
}

// Handle is the jobqueue.RunWorker handler. A returned error causes the
// queue to retry with backoff; a nil return acks the job. Handle is
// idempotent against duplicate delivery of the same job: a delivery no
// longer pending is treated as already handled.
func (d *Dispatcher) Handle(ctx context.Context, job jobqueue.SMSJob) error {
	delivery, err := d.Queries.GetNotificationDeliveryByID(ctx, job.DeliveryID)
	if err != nil {
		return err
	}
	if delivery.Status != db.DeliveryPending {
		return nil
	}

	alert, err := d.Queries.GetAlertScoped(ctx, delivery.TenantID, delivery.AlertID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("[%s] Alert escalated to level %d: %s bound violated at %.1f degrees",
		alert.Severity, delivery.EscalationLevel, alert.TriggeringBound, float64(alert.TriggeringTemp)/10)

	n := notify.Notification{DeliveryID: delivery.ID, AlertID: alert.ID, Phone: delivery.Phone, Body: body}

	result, sendErr := d.Channel.Send(ctx, n)
	if sendErr != nil {
		if err := d.Queries.MarkDeliveryFailed(ctx, db.MarkDeliveryFailedParams{
			DeliveryID: delivery.ID, ErrorText: sendErr.Error(),
		}); err != nil {
			d.Logger.Error("marking delivery failed", "delivery_id", delivery.ID, "error", err)
		}
		return sendErr
	}

	if err := d.Queries.MarkDeliverySent(ctx, db.MarkDeliverySentParams{
		DeliveryID: delivery.ID, ProviderMessageID: result.ProviderMessageID,
	}); err != nil {
		return err
	}

	if d.Mirror != nil {
		if _, err := d.Mirror.Send(ctx, n); err != nil {
			d.Logger.Warn("mirror channel send failed", "delivery_id", delivery.ID, "error", err)
		}
	}
	return nil
}
