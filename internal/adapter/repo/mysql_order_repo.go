package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type MySQLOrderRepo struct{ db dbtx }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

const orderColumns = `number,items_json,subtotal,tax_rate,tax_amount,total_amount,advance_payment,
received_amount,remaining_amount,overpaid_amount,status,scheduled_for,customer_name,customer_phone,
customer_address,instructions,deny_reason,invoice_generated,invoice_number,version,created_at,updated_at`

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO orders (`+orderColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,?,?)
`, o.Number, items, o.Subtotal, o.TaxRate.String(), o.TaxAmount, o.TotalAmount, o.AdvancePayment,
		o.ReceivedAmount, o.RemainingAmount, o.OverpaidAmount, o.Status, nullTime(o.ScheduledFor),
		o.Customer.Name, o.Customer.Phone, o.Customer.Address, o.Instructions, o.DenyReason,
		o.InvoiceGenerated, o.InvoiceNumber, o.CreatedAt, o.UpdatedAt)
	if isDuplicate(err) {
		return fmt.Errorf("%w: order %s exists", domain.ErrConflict, o.Number)
	}
	if err != nil {
		return err
	}
	o.Version = 1
	return nil
}

func (r *MySQLOrderRepo) Get(ctx context.Context, number string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE number=?`, number)
	var (
		o         domain.Order
		items     []byte
		rate      string
		scheduled sql.NullTime
	)
	if err := row.Scan(&o.Number, &items, &o.Subtotal, &rate, &o.TaxAmount, &o.TotalAmount, &o.AdvancePayment,
		&o.ReceivedAmount, &o.RemainingAmount, &o.OverpaidAmount, &o.Status, &scheduled, &o.Customer.Name,
		&o.Customer.Phone, &o.Customer.Address, &o.Instructions, &o.DenyReason, &o.InvoiceGenerated,
		&o.InvoiceNumber, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, notFound(err, "order "+number)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of %s: %w", number, err)
	}
	var err error
	if o.TaxRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("decode tax rate of %s: %w", number, err)
	}
	if scheduled.Valid {
		o.ScheduledFor = scheduled.Time
	}
	return &o, nil
}

// Update writes every mutable column guarded by the version the caller read.
func (r *MySQLOrderRepo) Update(ctx context.Context, o *domain.Order) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET received_amount = ?, remaining_amount = ?, overpaid_amount = ?, status = ?,
            deny_reason = ?, invoice_generated = ?, invoice_number = ?,
            version = version + 1, updated_at = ?
        WHERE number = ? AND version = ?`,
		o.ReceivedAmount, o.RemainingAmount, o.OverpaidAmount, o.Status,
		o.DenyReason, o.InvoiceGenerated, o.InvoiceNumber, o.UpdatedAt,
		o.Number, o.Version,
	)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// rows == 0 → nothing matched (either not found or version mismatch)
	if rows == 0 {
		if _, err := r.Get(ctx, o.Number); err != nil {
			return err
		}
		return fmt.Errorf("%w: order %s changed since version %d", domain.ErrConflict, o.Number, o.Version)
	}
	o.Version++
	return nil
}

func (r *MySQLOrderRepo) Delete(ctx context.Context, number string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE number = ?`, number)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, number)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
