package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hntbot/biddocs/internal/llm"
	"github.com/hntbot/biddocs/internal/sqlitedb"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id  TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_thread ON chat_messages(thread_id, id);
`

// Checkpoints persists conversation turns per thread. The thread id is the
// collection id, so each uploaded document set has one conversation.
type Checkpoints struct {
	db *sql.DB
}

func NewCheckpoints(ctx context.Context, db *sql.DB) (*Checkpoints, error) {
	if err := sqlitedb.Migrate(ctx, db, checkpointSchema); err != nil {
		return nil, err
	}
	return &Checkpoints{db: db}, nil
}

// Load returns the thread's messages, oldest first.
func (c *Checkpoints) Load(ctx context.Context, threadID string) ([]llm.Message, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT role, content FROM chat_messages WHERE thread_id = ? ORDER BY id`, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	defer rows.Close()

	msgs := []llm.Message{}
	for rows.Next() {
		var m llm.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Append adds messages to the end of the thread atomically.
func (c *Checkpoints) Append(ctx context.Context, threadID string, msgs ...llm.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (thread_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			threadID, string(m.Role), m.Content, now,
		); err != nil {
			return fmt.Errorf("append message: %w", err)
		}
	}
	return tx.Commit()
}

// Delete drops the whole thread.
func (c *Checkpoints) Delete(ctx context.Context, threadID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}
