package notify

import (
	"context"
	"fmt"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

// Publisher enqueues confirmation jobs for the worker to deliver.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("notify: nil queue")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// NewSQSPublisher is a convenience constructor for the SQS-backed queue.
func NewSQSPublisher(queue *SQSQueue, logger *logging.Logger) *Publisher {
	return NewPublisher(queue, logger)
}

// NewMemoryPublisher pairs a publisher with an in-process queue; the returned
// queue should be handed to the worker.
func NewMemoryPublisher(buffer int, logger *logging.Logger) (*Publisher, *MemoryQueue) {
	q := NewMemoryQueue(buffer)
	return NewPublisher(q, logger), q
}

// AppointmentBooked enqueues a booking confirmation for the recipient.
func (p *Publisher) AppointmentBooked(ctx context.Context, appt *appointments.Appointment, recipientEmail string) error {
	if appt == nil {
		return fmt.Errorf("notify: nil appointment")
	}
	if recipientEmail == "" {
		p.logger.Warn("skipping confirmation, no recipient email", "appointment_id", appt.ID)
		return nil
	}
	body, err := encodePayload(queuePayload{
		Kind:        jobKindConfirmation,
		Recipient:   recipientEmail,
		Appointment: *appt,
	})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return err
	}
	p.logger.Info("queued booking confirmation", "appointment_id", appt.ID, "to", recipientEmail)
	return nil
}
