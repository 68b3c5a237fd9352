// Package chat provides per-appointment text chat between the patient and
// the doctor, with transcripts retained in Redis.
package chat

import "time"

// Message is one chat message within an appointment.
type Message struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointmentId"`
	SenderID      string    `json:"senderId"`
	SenderName    string    `json:"senderName"`
	Body          string    `json:"body"`
	SentAt        time.Time `json:"sentAt"`
}

// inbound is what a connected client sends over the socket.
type inbound struct {
	Body string `json:"body"`
}
