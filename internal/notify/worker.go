package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

const (
	receiveBatchSize   = 5
	receiveWaitSeconds = 10
)

// Worker drains the confirmation queue and sends emails. Messages that fail
// to send are left on the queue for redelivery; malformed messages are
// deleted.
type Worker struct {
	queue  queueClient
	sender EmailSender
	logger *logging.Logger
}

func NewWorker(queue queueClient, sender EmailSender, logger *logging.Logger) *Worker {
	if queue == nil {
		panic("notify: nil queue")
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{queue: queue, sender: sender, logger: logger}
}

// NewSQSWorker is a convenience constructor for the SQS-backed queue.
func NewSQSWorker(queue *SQSQueue, sender EmailSender, logger *logging.Logger) *Worker {
	return NewWorker(queue, sender, logger)
}

// NewMemoryWorker builds a worker over an in-process queue created by
// NewMemoryPublisher.
func NewMemoryWorker(queue *MemoryQueue, sender EmailSender, logger *logging.Logger) *Worker {
	return NewWorker(queue, sender, logger)
}

// Run polls the queue until ctx is cancelled. Receive failures back off
// exponentially (1s doubling to a 5s cap) so a broken queue does not spin the
// worker; the backoff resets after the next successful receive.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("notify worker started")

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notify worker stopping")
			return
		default:
		}

		if err := w.runOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("notify worker stopping")
				return
			}
			w.logger.Error("notify worker receive failed", "error", err)
			select {
			case <-ctx.Done():
				w.logger.Info("notify worker stopping")
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

// runOnce receives one batch and processes it.
func (w *Worker) runOnce(ctx context.Context) error {
	messages, err := w.queue.Receive(ctx, receiveBatchSize, receiveWaitSeconds)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		w.process(ctx, msg)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("dropping malformed notification message", "message_id", msg.ID, "error", err)
		w.deleteMessage(ctx, msg)
		return
	}
	if payload.Kind != jobKindConfirmation {
		w.logger.Warn("dropping notification of unknown kind", "kind", string(payload.Kind))
		w.deleteMessage(ctx, msg)
		return
	}

	email := renderConfirmation(&payload.Appointment, payload.Recipient)
	if err := w.sender.Send(ctx, email); err != nil {
		// Leave the message for redelivery.
		w.logger.Error("failed to send confirmation", "appointment_id", payload.Appointment.ID, "error", err)
		return
	}
	w.deleteMessage(ctx, msg)
}

func (w *Worker) deleteMessage(ctx context.Context, msg queueMessage) {
	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Error("failed to delete queue message", "message_id", msg.ID, "error", err)
	}
}

// renderConfirmation builds the patient-facing confirmation email.
func renderConfirmation(appt *appointments.Appointment, recipient string) EmailMessage {
	when := appt.Start.Format("Monday, January 2, 2006 at 3:04 PM MST")
	body := fmt.Sprintf(`Your appointment is confirmed.

Appointment: %s
Doctor: %s
When: %s

If you need to reschedule or cancel, sign in to your account.

%s`, appt.Title, appt.DoctorName, when, notesLine(appt.Notes))

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Your appointment is confirmed</h2>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px;"><strong>Appointment:</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>Doctor:</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>When:</strong></td><td style="padding: 8px;">%s</td></tr>
</table>
<p>If you need to reschedule or cancel, sign in to your account.</p>
</div>`, appt.Title, appt.DoctorName, when)

	return EmailMessage{
		To:      recipient,
		ToName:  appt.PatientName,
		Subject: fmt.Sprintf("Appointment confirmed: %s", appt.Title),
		Body:    body,
		HTML:    html,
	}
}

func notesLine(notes string) string {
	if notes == "" {
		return ""
	}
	return "Details: " + notes
}
