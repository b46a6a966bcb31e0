// Package store keeps the bot's delivery side effects in redis: which inbound
// messages were already handled, the replies waiting for the chat transport,
// and the exported artifacts.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liteapi-travel/label-matcher-async/internal/export"
)

const (
	defaultProcessedTTL = 24 * time.Hour
	defaultReplyTTL     = 7 * 24 * time.Hour
)

// Options configures a Store.
type Options struct {
	// Prefix namespaces every key; empty means no prefix.
	Prefix       string
	ProcessedTTL time.Duration
	ReplyTTL     time.Duration
	Logger       *log.Logger
}

// Store is a redis backed outbox.
type Store struct {
	client redis.UniversalClient
	opts   Options
}

// Outgoing is a reply queued for the chat transport.
type Outgoing struct {
	ChatID   string `json:"chatId"`
	Text     string `json:"text"`
	Artifact string `json:"artifact,omitempty"`
	FileName string `json:"fileName,omitempty"`
	SentAt   int64  `json:"sentAt"`
}

// New wraps client.
func New(client redis.UniversalClient, opts Options) *Store {
	if opts.ProcessedTTL <= 0 {
		opts.ProcessedTTL = defaultProcessedTTL
	}
	if opts.ReplyTTL <= 0 {
		opts.ReplyTTL = defaultReplyTTL
	}
	return &Store{client: client, opts: opts}
}

func (s *Store) key(format string, args ...any) string {
	return s.opts.Prefix + fmt.Sprintf(format, args...)
}

// Claim marks a message as processed. It returns false if the message was
// claimed before, so redelivered events are skipped.
func (s *Store) Claim(ctx context.Context, batchKey, processingID string) (bool, error) {
	idempotencyKey := s.key("%s:%s:processed", batchKey, processingID)
	ok, err := s.client.SetNX(ctx, idempotencyKey, "1", s.opts.ProcessedTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", idempotencyKey, err)
	}
	return ok, nil
}

// PushReply queues text for chatID.
func (s *Store) PushReply(ctx context.Context, chatID, text string) error {
	return s.push(ctx, Outgoing{ChatID: chatID, Text: text, SentAt: time.Now().Unix()})
}

// Replies returns the queued replies for chatID, oldest first.
func (s *Store) Replies(ctx context.Context, chatID string) ([]Outgoing, error) {
	listKey := s.key("label_replies:%s", chatID)
	raw, err := s.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE %s: %w", listKey, err)
	}
	out := make([]Outgoing, 0, len(raw))
	for _, item := range raw {
		var msg Outgoing
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.logf("Skipping malformed reply in %s: %v", listKey, err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Artifact returns an archived export body.
func (s *Store) Artifact(ctx context.Context, id string) ([]byte, error) {
	artifactKey := s.key("label_export:%s", id)
	data, err := s.client.Get(ctx, artifactKey).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("artifact %s not found", id)
	} else if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", artifactKey, err)
	}
	return data, nil
}

// Deliverer returns an export.Deliverer that archives the artifact file and
// queues a reply pointing at it for chatID.
func (s *Store) Deliverer(chatID string) export.Deliverer {
	return export.DelivererFunc(func(ctx context.Context, a export.Artifact, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read artifact: %w", err)
		}
		artifactKey := s.key("label_export:%s", a.ID)
		if err := s.client.Set(ctx, artifactKey, data, 0).Err(); err != nil {
			return fmt.Errorf("redis SET %s: %w", artifactKey, err)
		}
		s.logf("Stored artifact %s (%d lines) for chat %s", a.Name, a.Lines, chatID)
		return s.push(ctx, Outgoing{
			ChatID:   chatID,
			Text:     fmt.Sprintf("Export %s (%d lines)", a.Name, a.Lines),
			Artifact: a.ID,
			FileName: a.Name,
			SentAt:   time.Now().Unix(),
		})
	})
}

func (s *Store) push(ctx context.Context, msg Outgoing) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	listKey := s.key("label_replies:%s", msg.ChatID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, listKey, payload)
	pipe.Expire(ctx, listKey, s.opts.ReplyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis RPUSH %s: %w", listKey, err)
	}
	return nil
}

func (s *Store) logf(format string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Printf(format, args...)
	}
}
