package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type MySQLInvoiceRepo struct{ db dbtx }

func NewMySQLInvoiceRepo(db *sql.DB) *MySQLInvoiceRepo { return &MySQLInvoiceRepo{db: db} }

const invoiceColumns = `number,order_number,items_json,customer_json,tax_lines_json,subtotal,tax_amount,
total_amount,received_amount,balance,payment_status,status,issued_at,updated_at`

// NextNumber draws from an AUTO_INCREMENT sequence; gaps appear only when a
// transaction rolls back.
func (r *MySQLInvoiceRepo) NextNumber(ctx context.Context) (string, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO invoice_seq () VALUES ()`)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return formatInvoiceNumber(id), nil
}

func (r *MySQLInvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	items, customer, lines, err := encodeInvoice(inv)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO invoices (`+invoiceColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`, inv.Number, inv.OrderNumber, items, customer, lines, inv.Subtotal, inv.TaxAmount, inv.TotalAmount,
		inv.ReceivedAmount, inv.Balance, inv.PaymentStatus, inv.Status, inv.IssuedAt, inv.UpdatedAt)
	if isDuplicate(err) {
		return fmt.Errorf("%w: order %s", domain.ErrAlreadyGenerated, inv.OrderNumber)
	}
	return err
}

func (r *MySQLInvoiceRepo) Get(ctx context.Context, number string) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE number=?`, number)
	var (
		inv                    domain.Invoice
		items, customer, lines []byte
	)
	if err := row.Scan(&inv.Number, &inv.OrderNumber, &items, &customer, &lines, &inv.Subtotal, &inv.TaxAmount,
		&inv.TotalAmount, &inv.ReceivedAmount, &inv.Balance, &inv.PaymentStatus, &inv.Status,
		&inv.IssuedAt, &inv.UpdatedAt); err != nil {
		return nil, notFound(err, "invoice "+number)
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode invoice items: %w", err)
	}
	if err := json.Unmarshal(customer, &inv.Customer); err != nil {
		return nil, fmt.Errorf("decode invoice customer: %w", err)
	}
	if err := json.Unmarshal(lines, &inv.TaxLines); err != nil {
		return nil, fmt.Errorf("decode invoice tax lines: %w", err)
	}
	return &inv, nil
}

// Update only touches the fields that move after generation.
func (r *MySQLInvoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE invoices
        SET received_amount = ?, balance = ?, payment_status = ?, status = ?, updated_at = ?
        WHERE number = ?`,
		inv.ReceivedAmount, inv.Balance, inv.PaymentStatus, inv.Status, inv.UpdatedAt, inv.Number,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.Get(ctx, inv.Number); err != nil {
			return err
		}
	}
	return nil
}

func (r *MySQLInvoiceRepo) Delete(ctx context.Context, number string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE number = ?`, number)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: invoice %s", domain.ErrNotFound, number)
	}
	return nil
}

func encodeInvoice(inv *domain.Invoice) (items, customer, lines []byte, err error) {
	if items, err = json.Marshal(inv.Items); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal invoice items: %w", err)
	}
	if customer, err = json.Marshal(inv.Customer); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal invoice customer: %w", err)
	}
	if lines, err = json.Marshal(inv.TaxLines); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal tax lines: %w", err)
	}
	return items, customer, lines, nil
}

var _ usecase.InvoiceRepo = (*MySQLInvoiceRepo)(nil)
