package domain

import (
	"context"
	"errors"
	"time"
)

// ErrRecipientNotFound reports a lookup for an area with no configured
// recipient.
var ErrRecipientNotFound = errors.New("billing: recipient not found")

// Recipient is the party an area's invoice is addressed to.
type Recipient struct {
	ID      string
	AreaKey string
	Name    string
	Email   string
}

// IssuedInvoice records one exported invoice document.
type IssuedInvoice struct {
	Number      int64
	AreaKey     string
	Recipient   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	TotalSEK    float64
	Format      string
	IssuedAt    time.Time
}

// Repository persists invoice numbering and recipients. Number
// allocation must be monotonic across concurrent callers.
type Repository interface {
	NextInvoiceNumber(ctx context.Context) (int64, error)
	RecipientForArea(ctx context.Context, areaKey string) (*Recipient, error)
	RecordIssued(ctx context.Context, invoice IssuedInvoice) error
}
