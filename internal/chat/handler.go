package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/internal/identity"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

const (
	maxMessageSize = 4096
	sendBuffer     = 16
	writeWait      = 10 * time.Second
)

// AppointmentLookup resolves the appointment a chat room belongs to.
type AppointmentLookup interface {
	Get(ctx context.Context, id string) (*appointments.Appointment, error)
}

// Handler upgrades chat connections and serves transcript history.
type Handler struct {
	hub          *Hub
	transcripts  *TranscriptStore
	appointments AppointmentLookup
	upgrader     websocket.Upgrader
	logger       *logging.Logger
}

func NewHandler(hub *Hub, transcripts *TranscriptStore, lookup AppointmentLookup, allowedOrigins []string, logger *logging.Logger) *Handler {
	if hub == nil {
		panic("chat: nil hub")
	}
	if transcripts == nil {
		panic("chat: nil transcript store")
	}
	if lookup == nil {
		panic("chat: nil appointment lookup")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		hub:          hub,
		transcripts:  transcripts,
		appointments: lookup,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// originChecker admits browser origins from the allow list. An empty list
// admits everything (local development).
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Serve upgrades the connection and joins the appointment's room.
// GET /api/appointments/{id}/chat
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	acct, appt, ok := h.authorize(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("chat upgrade failed", "appointment_id", appt.ID, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.hub.join(appt.ID, c)
	h.logger.Info("chat participant joined", "appointment_id", appt.ID, "user_id", acct.ID)

	go h.writePump(c)
	h.readPump(r.Context(), c, appt.ID, acct)
}

// History returns the stored transcript.
// GET /api/appointments/{id}/chat/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	_, appt, ok := h.authorize(w, r)
	if !ok {
		return
	}
	messages, err := h.transcripts.History(r.Context(), appt.ID)
	if err != nil {
		h.logger.Error("failed to load transcript", "appointment_id", appt.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": messages})
}

// authorize loads the appointment and checks the caller is a participant.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (identity.Account, *appointments.Appointment, bool) {
	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return identity.Account{}, nil, false
	}
	id := chi.URLParam(r, "id")
	appt, err := h.appointments.Get(r.Context(), id)
	if errors.Is(err, appointments.ErrAppointmentNotFound) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return identity.Account{}, nil, false
	}
	if err != nil {
		h.logger.Error("failed to load appointment for chat", "appointment_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return identity.Account{}, nil, false
	}
	participant := acct.ID == appt.PatientID || acct.ID == appt.DoctorID || acct.Role == identity.RoleAdmin
	if !participant {
		http.Error(w, "forbidden", http.StatusForbidden)
		return identity.Account{}, nil, false
	}
	return acct, appt, true
}

func (h *Handler) readPump(ctx context.Context, c *client, appointmentID string, acct identity.Account) {
	defer func() {
		h.hub.leave(appointmentID, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("chat connection closed unexpectedly", "appointment_id", appointmentID, "error", err)
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Body) == "" {
			continue
		}

		msg := &Message{
			ID:            uuid.NewString(),
			AppointmentID: appointmentID,
			SenderID:      acct.ID,
			SenderName:    acct.DisplayName(),
			Body:          in.Body,
			SentAt:        time.Now().UTC(),
		}
		if err := h.transcripts.Append(ctx, msg); err != nil {
			h.logger.Error("failed to store chat message", "appointment_id", appointmentID, "error", err)
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		h.hub.broadcast(appointmentID, payload)
	}
}

func (h *Handler) writePump(c *client) {
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
