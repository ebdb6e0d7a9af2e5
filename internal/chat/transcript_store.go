package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	transcriptKeyPrefix = "chat_transcript:"
	awaitingKeyPrefix   = "chat_awaiting_cita:"

	defaultMaxMessages = 200
	defaultTTL         = 24 * time.Hour
)

var errUserIDRequired = errors.New("chat: transcript userID required")

// Store persists the per-visitor transcript and the awaiting-appointment flag.
type Store interface {
	Append(ctx context.Context, userID string, msg Message) error
	List(ctx context.Context, userID string, limit int64) ([]Message, error)
	SetAwaitingAppointment(ctx context.Context, userID string, awaiting bool) error
	AwaitingAppointment(ctx context.Context, userID string) (bool, error)
}

// RedisStore keeps transcripts as capped Redis lists that expire after a
// period of inactivity.
type RedisStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	maxMessages int64
	ttl         time.Duration
}

// NewRedisStore returns nil when redisClient is nil.
func NewRedisStore(redisClient *redis.Client, maxMessages int, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		return nil
	}
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		redis:       redisClient,
		tracer:      otel.Tracer("despacho.internal.chat.transcript"),
		maxMessages: int64(maxMessages),
		ttl:         ttl,
	}
}

func (s *RedisStore) Append(ctx context.Context, userID string, msg Message) error {
	if userID == "" {
		return errUserIDRequired
	}
	msg = stamp(msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: marshal transcript message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "chat.transcript.append")
	defer span.End()

	key := transcriptKeyPrefix + userID
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	pipe.LTrim(ctx, key, -s.maxMessages, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: append transcript message: %w", err)
	}
	return nil
}

// List returns the last limit messages, oldest first. limit <= 0 returns all.
func (s *RedisStore) List(ctx context.Context, userID string, limit int64) ([]Message, error) {
	if userID == "" {
		return nil, errUserIDRequired
	}

	ctx, span := s.tracer.Start(ctx, "chat.transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, transcriptKeyPrefix+userID, start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("chat: list transcript: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisStore) SetAwaitingAppointment(ctx context.Context, userID string, awaiting bool) error {
	if userID == "" {
		return errUserIDRequired
	}
	ctx, span := s.tracer.Start(ctx, "chat.transcript.awaiting.set")
	defer span.End()

	key := awaitingKeyPrefix + userID
	var err error
	if awaiting {
		err = s.redis.Set(ctx, key, "1", s.ttl).Err()
	} else {
		err = s.redis.Del(ctx, key).Err()
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: set awaiting appointment: %w", err)
	}
	return nil
}

func (s *RedisStore) AwaitingAppointment(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errUserIDRequired
	}
	ctx, span := s.tracer.Start(ctx, "chat.transcript.awaiting.get")
	defer span.End()

	n, err := s.redis.Exists(ctx, awaitingKeyPrefix+userID).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("chat: get awaiting appointment: %w", err)
	}
	return n > 0, nil
}

// MemoryStore is the in-process Store used when Redis is not configured.
// Transcripts do not expire; the list cap still applies.
type MemoryStore struct {
	maxMessages int

	mu          sync.RWMutex
	transcripts map[string][]Message
	awaiting    map[string]bool
}

func NewMemoryStore(maxMessages int) *MemoryStore {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &MemoryStore{
		maxMessages: maxMessages,
		transcripts: make(map[string][]Message),
		awaiting:    make(map[string]bool),
	}
}

func (s *MemoryStore) Append(_ context.Context, userID string, msg Message) error {
	if userID == "" {
		return errUserIDRequired
	}
	msg = stamp(msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.transcripts[userID], msg)
	if len(msgs) > s.maxMessages {
		msgs = append([]Message(nil), msgs[len(msgs)-s.maxMessages:]...)
	}
	s.transcripts[userID] = msgs
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string, limit int64) ([]Message, error) {
	if userID == "" {
		return nil, errUserIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.transcripts[userID]
	if limit > 0 && int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	return append([]Message{}, msgs...), nil
}

func (s *MemoryStore) SetAwaitingAppointment(_ context.Context, userID string, awaiting bool) error {
	if userID == "" {
		return errUserIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if awaiting {
		s.awaiting[userID] = true
	} else {
		delete(s.awaiting, userID)
	}
	return nil
}

func (s *MemoryStore) AwaitingAppointment(_ context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errUserIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.awaiting[userID], nil
}

func stamp(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return msg
}
