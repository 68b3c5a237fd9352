package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/medconnect/telehealth-platform/internal/appointments"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobKind string

const jobKindConfirmation jobKind = "appointment.confirmed.v1"

type queuePayload struct {
	ID          string                   `json:"id"`
	Kind        jobKind                  `json:"kind"`
	Recipient   string                   `json:"recipient"`
	Appointment appointments.Appointment `json:"appointment"`
}

func encodePayload(payload queuePayload) (string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("notify: encode payload: %w", err)
	}
	return string(body), nil
}
