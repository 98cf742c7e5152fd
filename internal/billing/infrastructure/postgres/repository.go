package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "home-energy/internal/billing/domain"
)

// Repository persists invoice numbers, recipients and issued invoice
// records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// NextInvoiceNumber allocates the next number from the singleton
// sequence row. The row update serializes concurrent allocations.
func (r *Repository) NextInvoiceNumber(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("billing repo: nil db")
	}
	var number int64
	err := r.db.QueryRowContext(ctx, `
UPDATE invoice_sequence
SET last_number = last_number + 1
WHERE id = 1
RETURNING last_number`).Scan(&number)
	if err != nil {
		return 0, err
	}
	return number, nil
}

// RecipientForArea loads the recipient configured for an area.
func (r *Repository) RecipientForArea(ctx context.Context, areaKey string) (*billing.Recipient, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("billing repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, area_key, name, email
FROM invoice_recipients
WHERE area_key = $1
LIMIT 1`, areaKey)

	var recipient billing.Recipient
	var email sql.NullString
	err := row.Scan(&recipient.ID, &recipient.AreaKey, &recipient.Name, &email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrRecipientNotFound
		}
		return nil, err
	}
	if email.Valid {
		recipient.Email = email.String
	}
	return &recipient, nil
}

// RecordIssued inserts an issued invoice row.
func (r *Repository) RecordIssued(ctx context.Context, invoice billing.IssuedInvoice) error {
	if r == nil || r.db == nil {
		return errors.New("billing repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO invoices (number, area_key, recipient, period_start, period_end, total_sek, format, issued_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		invoice.Number, invoice.AreaKey, invoice.Recipient,
		invoice.PeriodStart, invoice.PeriodEnd, invoice.TotalSEK,
		invoice.Format, invoice.IssuedAt,
	)
	return err
}
