package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// dbtx is what the repos need from either *sql.DB or *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLStore struct{ db *sql.DB }

func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

func (s *MySQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r usecase.Repos) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	r := usecase.Repos{
		Orders:   &MySQLOrderRepo{db: tx},
		Payments: &MySQLPaymentRepo{db: tx},
		Invoices: &MySQLInvoiceRepo{db: tx},
	}
	if err = fn(ctx, r); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var _ usecase.Store = (*MySQLStore)(nil)
