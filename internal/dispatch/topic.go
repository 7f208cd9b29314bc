package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// TopicBackend publishes stage messages to per-stage topics in a local
// SQLite queue. Delivery is at-least-once: a consumed message is deleted
// only after its handler returns nil, and a crashed consumer's in-flight
// messages become visible again after the visibility timeout. Ordering
// across documents is not guaranteed; ordering of stages within one
// document holds because each stage publishes to the next topic only after
// its own work completes.
type TopicBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

const topicSchema = `
CREATE TABLE IF NOT EXISTS topic_messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	topic        TEXT    NOT NULL,
	payload      BLOB    NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	available_at INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS topic_messages_topic_idx
	ON topic_messages (topic, available_at);
`

// OpenTopicBackend opens (creating if needed) the queue database at path.
func OpenTopicBackend(path string, logger *slog.Logger) (*TopicBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(topicSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue schema: %w", err)
	}
	return &TopicBackend{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (b *TopicBackend) Close() error { return b.db.Close() }

// TopicName returns the topic a stage's messages are published to.
func TopicName(stage string) string { return "stage." + stage }

// Dispatch publishes the message to the next stage's topic. The call
// blocks only until the insert is durable, not until downstream processing
// completes.
func (b *TopicBackend) Dispatch(ctx context.Context, msg Message) Result {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("dispatch.topic.encode_failed", "stage", msg.Stage, "error", err)
		return Result{Status: StatusServiceError}
	}
	now := time.Now().Unix()
	res, err := b.db.ExecContext(ctx, `
		INSERT INTO topic_messages (topic, payload, available_at, created_at)
		VALUES (?, ?, ?, ?)`,
		TopicName(msg.Stage), payload, now, now)
	if err != nil {
		b.logger.Warn("dispatch.topic.publish_failed",
			"stage", msg.Stage, "document_id", msg.DocumentID, "error", err)
		return Result{Status: StatusServiceUnavailable}
	}
	id, _ := res.LastInsertId()
	taskID := strconv.FormatInt(id, 10)
	b.logger.Debug("dispatch.topic.published",
		"task_id", taskID, "topic", TopicName(msg.Stage), "document_id", msg.DocumentID)
	return Result{TaskID: taskID, Status: StatusQueued}
}

// Handler consumes one stage message. A nil return acknowledges the
// message; an error leaves it queued for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Consumer polls the queue for a set of topics and feeds messages to a
// handler. At-least-once: the handler must be idempotent.
type Consumer struct {
	backend    *TopicBackend
	topics     []string
	handler    Handler
	poll       time.Duration
	visibility time.Duration
	logger     *slog.Logger
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Topics     []string
	Poll       time.Duration // poll interval, default 250ms
	Visibility time.Duration // redelivery delay for unacked messages, default 60s
}

func NewConsumer(b *TopicBackend, cfg ConsumerConfig, h Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 250 * time.Millisecond
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = 60 * time.Second
	}
	return &Consumer{
		backend:    b,
		topics:     cfg.Topics,
		handler:    h,
		poll:       cfg.Poll,
		visibility: cfg.Visibility,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for c.consumeOne(ctx) {
				// drain everything currently visible before sleeping again
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// consumeOne claims and processes the oldest visible message. Reports
// whether a message was processed.
func (c *Consumer) consumeOne(ctx context.Context) bool {
	id, msg, ok := c.claim(ctx)
	if !ok {
		return false
	}
	if err := c.handler(ctx, msg); err != nil {
		// Leave the row; it reappears after the visibility timeout.
		c.logger.Warn("dispatch.topic.handler_failed",
			"task_id", id, "stage", msg.Stage, "document_id", msg.DocumentID, "error", err)
		return true
	}
	if _, err := c.backend.db.ExecContext(ctx, `DELETE FROM topic_messages WHERE id = ?`, id); err != nil {
		// The ack failed, so the message will be redelivered. Idempotent
		// handlers make the repeat harmless.
		c.logger.Warn("dispatch.topic.ack_failed", "task_id", id, "error", err)
	}
	return true
}

// claim marks the oldest visible message in-flight and returns it.
func (c *Consumer) claim(ctx context.Context) (int64, Message, bool) {
	if len(c.topics) == 0 {
		return 0, Message{}, false
	}
	args := make([]any, 0, len(c.topics)+1)
	placeholders := ""
	for i, t := range c.topics {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, t)
	}
	now := time.Now().Unix()
	args = append(args, now)

	tx, err := c.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, Message{}, false
	}
	defer tx.Rollback()

	var id int64
	var payload []byte
	err = tx.QueryRowContext(ctx, `
		SELECT id, payload FROM topic_messages
		WHERE topic IN (`+placeholders+`) AND available_at <= ?
		ORDER BY id LIMIT 1`, args...).Scan(&id, &payload)
	if err != nil {
		return 0, Message{}, false
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE topic_messages SET attempts = attempts + 1, available_at = ?
		WHERE id = ?`, time.Now().Add(c.visibility).Unix(), id)
	if err != nil {
		return 0, Message{}, false
	}
	if err := tx.Commit(); err != nil {
		return 0, Message{}, false
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		// Poison message: drop it, it can never be handled.
		c.logger.Error("dispatch.topic.bad_payload", "task_id", id, "error", err)
		c.backend.db.ExecContext(ctx, `DELETE FROM topic_messages WHERE id = ?`, id)
		return 0, Message{}, false
	}
	return id, msg, true
}
