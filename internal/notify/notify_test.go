package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func sampleAppointment() *appointments.Appointment {
	return &appointments.Appointment{
		ID:          "appt-1",
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		PatientName: "Pat Smith",
		DoctorName:  "Dr. Maria Vega",
		Title:       "Cardiology Consult",
		Start:       time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC),
		Status:      appointments.StatusScheduled,
		Modality:    appointments.ModalityVideo,
	}
}

func TestPublisherEnqueuesConfirmation(t *testing.T) {
	pub, queue := NewMemoryPublisher(4, logging.Default())

	if err := pub.AppointmentBooked(context.Background(), sampleAppointment(), "pat@example.com"); err != nil {
		t.Fatalf("AppointmentBooked() error = %v", err)
	}

	messages, err := queue.Receive(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload queuePayload
	if err := json.Unmarshal([]byte(messages[0].Body), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Kind != jobKindConfirmation {
		t.Fatalf("kind = %s", payload.Kind)
	}
	if payload.Recipient != "pat@example.com" || payload.Appointment.ID != "appt-1" {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.ID == "" {
		t.Fatal("expected generated payload id")
	}
}

func TestPublisherSkipsEmptyRecipient(t *testing.T) {
	pub, queue := NewMemoryPublisher(4, logging.Default())

	if err := pub.AppointmentBooked(context.Background(), sampleAppointment(), ""); err != nil {
		t.Fatalf("AppointmentBooked() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	messages, _ := queue.Receive(ctx, 1, 0)
	if len(messages) != 0 {
		t.Fatalf("expected empty queue, got %d messages", len(messages))
	}
}

func TestWorkerDeliversConfirmation(t *testing.T) {
	pub, queue := NewMemoryPublisher(4, logging.Default())
	sender := &recordingSender{}
	worker := NewMemoryWorker(queue, sender, logging.Default())

	if err := pub.AppointmentBooked(context.Background(), sampleAppointment(), "pat@example.com"); err != nil {
		t.Fatalf("AppointmentBooked() error = %v", err)
	}
	if err := worker.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce() error = %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "pat@example.com" || msg.ToName != "Pat Smith" {
		t.Fatalf("recipient = %+v", msg)
	}
	if !strings.Contains(msg.Subject, "Cardiology Consult") {
		t.Fatalf("subject = %s", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Dr. Maria Vega") {
		t.Fatalf("body missing doctor name: %s", msg.Body)
	}
}

func TestWorkerLeavesFailedSendForRedelivery(t *testing.T) {
	pub, queue := NewMemoryPublisher(4, logging.Default())
	sender := &recordingSender{err: errors.New("smtp down")}
	worker := NewMemoryWorker(queue, sender, logging.Default())

	_ = pub.AppointmentBooked(context.Background(), sampleAppointment(), "pat@example.com")
	if err := worker.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce() error = %v", err)
	}

	// MemoryQueue redelivery is channel-based; the failed message was
	// consumed, so just assert nothing was recorded as sent.
	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends, got %d", len(sender.sent))
	}
}

func TestWorkerDropsMalformedMessage(t *testing.T) {
	queue := NewMemoryQueue(4)
	sender := &recordingSender{}
	worker := NewMemoryWorker(queue, sender, logging.Default())

	_ = queue.Send(context.Background(), "{not json")
	if err := worker.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce() error = %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends, got %d", len(sender.sent))
	}
}

type failingQueue struct {
	receives int
}

func (q *failingQueue) Send(context.Context, string) error { return nil }

func (q *failingQueue) Receive(context.Context, int, int) ([]queueMessage, error) {
	q.receives++
	return nil, errors.New("queue unavailable")
}

func (q *failingQueue) Delete(context.Context, string) error { return nil }

func TestWorkerBacksOffOnReceiveFailure(t *testing.T) {
	queue := &failingQueue{}
	worker := NewWorker(queue, &recordingSender{}, logging.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	worker.Run(ctx)

	// The first receive fails immediately; the worker then waits out the
	// initial one-second backoff, which outlives the context. Without the
	// backoff this loop spins thousands of times in 80ms.
	if queue.receives > 2 {
		t.Fatalf("expected at most 2 receive attempts, got %d", queue.receives)
	}
	if queue.receives == 0 {
		t.Fatal("expected at least one receive attempt")
	}
}

func TestRenderConfirmation(t *testing.T) {
	msg := renderConfirmation(sampleAppointment(), "pat@example.com")
	if !strings.Contains(msg.Body, "Monday, June 3, 2024") {
		t.Fatalf("body missing formatted date: %s", msg.Body)
	}
	if msg.HTML == "" {
		t.Fatal("expected html body")
	}
}

func TestStubEmailSender(t *testing.T) {
	s := NewStubEmailSender(nil)
	if err := s.Send(context.Background(), EmailMessage{To: "x@example.com"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}
