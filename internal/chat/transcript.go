package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medconnect/telehealth-platform/pkg/logging"
)

const (
	transcriptKeyPrefix = "chat:appointment:"

	// transcriptTTL keeps transcripts around well past the consultation.
	transcriptTTL = 30 * 24 * time.Hour

	// maxHistory bounds how many messages a transcript retains.
	maxHistory = 500
)

// TranscriptStore persists chat messages per appointment in Redis.
type TranscriptStore struct {
	rdb    *redis.Client
	logger *logging.Logger
}

func NewTranscriptStore(rdb *redis.Client, logger *logging.Logger) *TranscriptStore {
	if rdb == nil {
		panic("chat: nil redis client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TranscriptStore{rdb: rdb, logger: logger}
}

func transcriptKey(appointmentID string) string {
	return transcriptKeyPrefix + appointmentID + ":messages"
}

// Append stores a message at the end of the appointment's transcript.
func (s *TranscriptStore) Append(ctx context.Context, msg *Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: encode message: %w", err)
	}
	key := transcriptKey(msg.AppointmentID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -maxHistory, -1)
	pipe.Expire(ctx, key, transcriptTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("chat: append message: %w", err)
	}
	return nil
}

// History returns the transcript in send order.
func (s *TranscriptStore) History(ctx context.Context, appointmentID string) ([]*Message, error) {
	raws, err := s.rdb.LRange(ctx, transcriptKey(appointmentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("chat: read transcript: %w", err)
	}
	messages := make([]*Message, 0, len(raws))
	for _, raw := range raws {
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			s.logger.Warn("skipping undecodable transcript entry", "appointment_id", appointmentID, "error", err)
			continue
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}
