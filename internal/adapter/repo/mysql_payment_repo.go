package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type MySQLPaymentRepo struct{ db dbtx }

func NewMySQLPaymentRepo(db *sql.DB) *MySQLPaymentRepo { return &MySQLPaymentRepo{db: db} }

const paymentColumns = `id,order_number,intent_ref,confirmation_id,signature,amount,type,outcome,
failure_code,failure_reason,created_at,settled_at`

func (r *MySQLPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payments (`+paymentColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`, p.ID, p.OrderNumber, p.IntentRef, p.ConfirmationID, p.Signature, p.Amount, p.Type, p.Outcome,
		p.FailureCode, p.FailureReason, p.CreatedAt, nullTime(p.SettledAt))
	if isDuplicate(err) {
		return fmt.Errorf("%w: intent %s exists", domain.ErrConflict, p.IntentRef)
	}
	return err
}

func (r *MySQLPaymentRepo) GetByIntent(ctx context.Context, intentRef string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE intent_ref=?`, intentRef)
	p, err := scanPayment(row.Scan)
	if err != nil {
		return nil, notFound(err, "payment intent "+intentRef)
	}
	return p, nil
}

// Update settles a payment. The outcome guard keeps a settled row immutable.
func (r *MySQLPaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE payments
        SET order_number = ?, confirmation_id = ?, signature = ?, outcome = ?,
            failure_code = ?, failure_reason = ?, settled_at = ?
        WHERE intent_ref = ? AND outcome = 'pending'`,
		p.OrderNumber, p.ConfirmationID, p.Signature, p.Outcome,
		p.FailureCode, p.FailureReason, nullTime(p.SettledAt), p.IntentRef,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: payment %s is no longer pending", domain.ErrConflict, p.IntentRef)
	}
	return nil
}

func (r *MySQLPaymentRepo) ListPending(ctx context.Context, orderNumber string) ([]*domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE order_number=? AND outcome='pending' ORDER BY created_at`, orderNumber)
}

func (r *MySQLPaymentRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE outcome='pending' AND created_at <= ? ORDER BY created_at LIMIT ?`, createdBefore, limit)
}

// ClaimConfirmation relies on the primary key: the second insert of the same
// id fails with a duplicate-entry error, even across instances.
func (r *MySQLPaymentRepo) ClaimConfirmation(ctx context.Context, confirmationID, intentRef string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payment_confirmations (confirmation_id, intent_ref, claimed_at) VALUES (?,?,?)
`, confirmationID, intentRef, time.Now().UTC())
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateConfirmation, confirmationID)
	}
	return err
}

func (r *MySQLPaymentRepo) list(ctx context.Context, q string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(scan func(dest ...any) error) (*domain.Payment, error) {
	var (
		p       domain.Payment
		settled sql.NullTime
	)
	if err := scan(&p.ID, &p.OrderNumber, &p.IntentRef, &p.ConfirmationID, &p.Signature, &p.Amount,
		&p.Type, &p.Outcome, &p.FailureCode, &p.FailureReason, &p.CreatedAt, &settled); err != nil {
		return nil, err
	}
	if settled.Valid {
		p.SettledAt = settled.Time
	}
	return &p, nil
}

var _ usecase.PaymentRepo = (*MySQLPaymentRepo)(nil)
