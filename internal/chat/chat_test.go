package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/internal/identity"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

type stubLookup struct {
	appt *appointments.Appointment
}

func (s *stubLookup) Get(ctx context.Context, id string) (*appointments.Appointment, error) {
	if s.appt == nil || s.appt.ID != id {
		return nil, appointments.ErrAppointmentNotFound
	}
	return s.appt, nil
}

func chatAppointment() *appointments.Appointment {
	return &appointments.Appointment{
		ID:        "appt-1",
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Title:     "Cardiology Consult",
		Status:    appointments.StatusScheduled,
		Modality:  appointments.ModalityChat,
	}
}

// testAuth maps the X-Test-User header onto a request account.
func testAuth(next http.Handler) http.Handler {
	accounts := map[string]identity.Account{
		"pat-1": {ID: "pat-1", FirstName: "Pat", LastName: "Smith", Role: identity.RolePatient},
		"doc-1": {ID: "doc-1", FirstName: "Maria", LastName: "Vega", Role: identity.RoleDoctor},
		"pat-2": {ID: "pat-2", FirstName: "Other", Role: identity.RolePatient},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if acct, ok := accounts[r.Header.Get("X-Test-User")]; ok {
			r = r.WithContext(identity.WithAccount(r.Context(), acct))
		}
		next.ServeHTTP(w, r)
	})
}

func newChatServer(t *testing.T) (*httptest.Server, *TranscriptStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	transcripts := NewTranscriptStore(rdb, logging.Default())
	handler := NewHandler(NewHub(), transcripts, &stubLookup{appt: chatAppointment()}, nil, logging.Default())

	router := chi.NewRouter()
	router.Use(testAuth)
	router.Get("/api/appointments/{id}/chat", handler.Serve)
	router.Get("/api/appointments/{id}/chat/history", handler.History)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, transcripts
}

func dialChat(t *testing.T, server *httptest.Server, appointmentID, user string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/appointments/" + appointmentID + "/chat"
	header := http.Header{"X-Test-User": []string{user}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial as %s: %v (status %d)", user, err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestChat_BroadcastsToBothParticipants(t *testing.T) {
	server, transcripts := newChatServer(t)

	patient := dialChat(t, server, "appt-1", "pat-1")
	doctor := dialChat(t, server, "appt-1", "doc-1")

	if err := patient.WriteJSON(inbound{Body: "hello doctor"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"patient": patient, "doctor": doctor} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("%s read: %v", name, err)
		}
		if msg.Body != "hello doctor" || msg.SenderID != "pat-1" {
			t.Fatalf("%s got %+v", name, msg)
		}
		if msg.SenderName != "Pat Smith" {
			t.Fatalf("sender name = %s", msg.SenderName)
		}
	}

	// The message also lands in the transcript.
	deadline := time.Now().Add(2 * time.Second)
	for {
		history, err := transcripts.History(context.Background(), "appt-1")
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(history) == 1 && history[0].Body == "hello doctor" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transcript never recorded message: %d entries", len(history))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChat_NonParticipantForbidden(t *testing.T) {
	server, _ := newChatServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/appointments/appt-1/chat"
	header := http.Header{"X-Test-User": []string{"pat-2"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestChat_UnknownAppointment(t *testing.T) {
	server, _ := newChatServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/appointments/missing/chat"
	header := http.Header{"X-Test-User": []string{"pat-1"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestChat_HistoryEndpoint(t *testing.T) {
	server, transcripts := newChatServer(t)

	for _, body := range []string{"first", "second"} {
		err := transcripts.Append(context.Background(), &Message{
			ID:            body,
			AppointmentID: "appt-1",
			SenderID:      "pat-1",
			Body:          body,
			SentAt:        time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/appointments/appt-1/chat/history", nil)
	req.Header.Set("X-Test-User", "doc-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Messages []*Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Messages) != 2 || out.Messages[0].Body != "first" {
		t.Fatalf("messages = %+v", out.Messages)
	}
}

func TestTranscriptStore_TrimsHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewTranscriptStore(rdb, logging.Default())

	ctx := context.Background()
	for i := 0; i < maxHistory+20; i++ {
		err := store.Append(ctx, &Message{AppointmentID: "appt-1", Body: "m", SentAt: time.Now().UTC()})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	history, err := store.History(ctx, "appt-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != maxHistory {
		t.Fatalf("history length = %d, want %d", len(history), maxHistory)
	}
}
