package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
)

// schema is applied statement by statement on startup. DSNs must carry
// parseTime=true.
var schema = []string{`
CREATE TABLE IF NOT EXISTS orders (
    number            VARCHAR(32)  NOT NULL PRIMARY KEY,
    items_json        JSON         NOT NULL,
    subtotal          BIGINT       NOT NULL,
    tax_rate          VARCHAR(16)  NOT NULL,
    tax_amount        BIGINT       NOT NULL,
    total_amount      BIGINT       NOT NULL,
    advance_payment   BIGINT       NOT NULL DEFAULT 0,
    received_amount   BIGINT       NOT NULL DEFAULT 0,
    remaining_amount  BIGINT       NOT NULL,
    overpaid_amount   BIGINT       NOT NULL DEFAULT 0,
    status            VARCHAR(16)  NOT NULL,
    scheduled_for     DATETIME(6)  NULL,
    customer_name     VARCHAR(128) NOT NULL DEFAULT '',
    customer_phone    VARCHAR(32)  NOT NULL,
    customer_address  TEXT         NOT NULL,
    instructions      TEXT         NOT NULL,
    deny_reason       TEXT         NOT NULL,
    invoice_generated BOOLEAN      NOT NULL DEFAULT FALSE,
    invoice_number    VARCHAR(32)  NOT NULL DEFAULT '',
    version           BIGINT       NOT NULL DEFAULT 1,
    created_at        DATETIME(6)  NOT NULL,
    updated_at        DATETIME(6)  NOT NULL,
    CHECK (remaining_amount >= 0),
    INDEX idx_orders_status (status)
)`, `
CREATE TABLE IF NOT EXISTS payments (
    id               CHAR(36)     NOT NULL PRIMARY KEY,
    order_number     VARCHAR(32)  NOT NULL DEFAULT '',
    intent_ref       VARCHAR(64)  NOT NULL,
    confirmation_id  VARCHAR(64)  NOT NULL DEFAULT '',
    signature        VARCHAR(256) NOT NULL DEFAULT '',
    amount           BIGINT       NOT NULL,
    type             VARCHAR(16)  NOT NULL,
    outcome          VARCHAR(16)  NOT NULL,
    failure_code     VARCHAR(64)  NOT NULL DEFAULT '',
    failure_reason   TEXT         NOT NULL,
    created_at       DATETIME(6)  NOT NULL,
    settled_at       DATETIME(6)  NULL,
    UNIQUE KEY uq_payments_intent (intent_ref),
    INDEX idx_payments_order_outcome (order_number, outcome),
    INDEX idx_payments_outcome_created (outcome, created_at)
)`, `
CREATE TABLE IF NOT EXISTS payment_confirmations (
    confirmation_id VARCHAR(64) NOT NULL PRIMARY KEY,
    intent_ref      VARCHAR(64) NOT NULL,
    claimed_at      DATETIME(6) NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS invoice_seq (
    id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY
)`, `
CREATE TABLE IF NOT EXISTS invoices (
    number          VARCHAR(32) NOT NULL PRIMARY KEY,
    order_number    VARCHAR(32) NOT NULL,
    items_json      JSON        NOT NULL,
    customer_json   JSON        NOT NULL,
    tax_lines_json  JSON        NOT NULL,
    subtotal        BIGINT      NOT NULL,
    tax_amount      BIGINT      NOT NULL,
    total_amount    BIGINT      NOT NULL,
    received_amount BIGINT      NOT NULL,
    balance         BIGINT      NOT NULL,
    payment_status  VARCHAR(16) NOT NULL,
    status          VARCHAR(16) NOT NULL,
    issued_at       DATETIME(6) NOT NULL,
    updated_at      DATETIME(6) NOT NULL,
    UNIQUE KEY uq_invoices_order (order_number)
)`, `
CREATE TABLE IF NOT EXISTS menu_items (
    id          VARCHAR(64)  NOT NULL PRIMARY KEY,
    name        VARCHAR(128) NOT NULL,
    price       BIGINT       NOT NULL,
    available   BOOLEAN      NOT NULL DEFAULT TRUE
)`, `
CREATE TABLE IF NOT EXISTS outbox (
    id              BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
    channel         VARCHAR(64)  NOT NULL,
    payload         JSON         NOT NULL,
    status          VARCHAR(16)  NOT NULL,
    retry_count     INT          NOT NULL DEFAULT 0,
    last_error      TEXT         NOT NULL,
    next_attempt_at DATETIME(6)  NOT NULL,
    created_at      DATETIME(6)  NOT NULL
)`,
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i > 0 {
		return s[:i]
	}
	return s
}

const mysqlDupEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return err
}
