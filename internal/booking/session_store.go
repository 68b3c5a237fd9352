package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medconnect/telehealth-platform/pkg/logging"
)

const (
	sessionKeyPrefix = "booking:session:"
	patientKeyPrefix = "booking:patient:"

	// DefaultSessionTTL bounds how long an abandoned widget can still post a
	// callback. After expiry the callback is rejected as stale.
	DefaultSessionTTL = 30 * time.Minute
)

// SessionStore keeps booking sessions in Redis with a TTL. A patient has at
// most one open session; creating a new one supersedes the previous.
type SessionStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *SessionStore {
	if rdb == nil {
		panic("booking: nil redis client")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionStore{rdb: rdb, ttl: ttl, logger: logger}
}

func sessionKey(id string) string        { return sessionKeyPrefix + id }
func patientKey(patientID string) string { return patientKeyPrefix + patientID }

// Create opens a session in StateDoctorSelected. Any previous open session for
// the same patient is deleted first; its widget callback, if it ever arrives,
// will find nothing.
func (s *SessionStore) Create(ctx context.Context, sess *Session) (*Session, error) {
	now := time.Now().UTC()
	sess.ID = uuid.NewString()
	sess.State = StateDoctorSelected
	sess.CreatedAt = now
	sess.UpdatedAt = now

	prev, err := s.rdb.Get(ctx, patientKey(sess.PatientID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("booking: read patient session pointer: %w", err)
	}
	if prev != "" {
		if err := s.rdb.Del(ctx, sessionKey(prev)).Err(); err != nil {
			return nil, fmt.Errorf("booking: supersede session %s: %w", prev, err)
		}
		s.logger.Info("superseded open booking session",
			"patient_id", sess.PatientID,
			"old_session_id", prev,
		)
	}

	if err := s.save(ctx, sess, s.ttl); err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, patientKey(sess.PatientID), sess.ID, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("booking: write patient session pointer: %w", err)
	}
	return sess, nil
}

// Get loads a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("booking: decode session: %w", err)
	}
	return &sess, nil
}

// Advance moves the session to next if the transition is legal.
func (s *SessionStore) Advance(ctx context.Context, id string, next State) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.State.CanAdvanceTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, sess.State, next)
	}
	sess.State = next
	sess.UpdatedAt = time.Now().UTC()
	if err := s.save(ctx, sess, redis.KeepTTL); err != nil {
		return nil, err
	}
	return sess, nil
}

// Complete marks the session reconciled, records the appointment it produced,
// and frees the patient for a new booking.
func (s *SessionStore) Complete(ctx context.Context, id, appointmentID string) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.State.CanAdvanceTo(StateReconciled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, sess.State, StateReconciled)
	}
	sess.State = StateReconciled
	sess.AppointmentID = appointmentID
	sess.UpdatedAt = time.Now().UTC()
	if err := s.save(ctx, sess, redis.KeepTTL); err != nil {
		return nil, err
	}
	s.clearPatientPointer(ctx, sess)
	return sess, nil
}

// Fail marks the session failed with a reason. Allowed from any non-terminal
// state; failing a terminal session is a no-op returning the session as-is.
func (s *SessionStore) Fail(ctx context.Context, id, reason string) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State.Terminal() {
		return sess, nil
	}
	sess.State = StateFailed
	sess.FailureReason = reason
	sess.UpdatedAt = time.Now().UTC()
	if err := s.save(ctx, sess, redis.KeepTTL); err != nil {
		return nil, err
	}
	s.clearPatientPointer(ctx, sess)
	return sess, nil
}

// Close deletes the session and the patient pointer. Closing a session that no
// longer exists is not an error.
func (s *SessionStore) Close(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("booking: delete session: %w", err)
	}
	s.clearPatientPointer(ctx, sess)
	return nil
}

func (s *SessionStore) save(ctx context.Context, sess *Session, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("booking: encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("booking: write session: %w", err)
	}
	return nil
}

// clearPatientPointer removes the one-open-session pointer, but only if it
// still points at this session.
func (s *SessionStore) clearPatientPointer(ctx context.Context, sess *Session) {
	key := patientKey(sess.PatientID)
	current, err := s.rdb.Get(ctx, key).Result()
	if err != nil || current != sess.ID {
		return
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("failed to clear patient session pointer",
			"patient_id", sess.PatientID,
			"error", err,
		)
	}
}
