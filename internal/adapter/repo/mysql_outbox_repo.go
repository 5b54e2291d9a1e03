package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type MySQLOutboxRepo struct{ db *sql.DB }

func NewMySQLOutboxRepo(db *sql.DB) *MySQLOutboxRepo { return &MySQLOutboxRepo{db: db} }

// InsertUndelivered parks an event the dispatcher gave up on, for replay by
// an operator or a relay.
func (r *MySQLOutboxRepo) InsertUndelivered(ctx context.Context, channel string, payload []byte, lastErr string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO outbox (channel,payload,status,retry_count,last_error,next_attempt_at,created_at)
VALUES (?, ?, 'UNDELIVERED', 0, ?, ?, ?)
`, channel, payload, lastErr, now, now)
	return err
}

var _ usecase.OutboxRepo = (*MySQLOutboxRepo)(nil)
