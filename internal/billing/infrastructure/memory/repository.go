package memory

import (
	"context"
	"sync"

	billing "home-energy/internal/billing/domain"
)

// Repository is an in-memory billing store used when no database is
// configured. Numbers restart from 1 on every process start.
type Repository struct {
	mu         sync.Mutex
	lastNumber int64
	recipients map[string]billing.Recipient
	issued     []billing.IssuedInvoice
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{recipients: make(map[string]billing.Recipient)}
}

// SeedRecipient registers a recipient for an area.
func (r *Repository) SeedRecipient(recipient billing.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients[recipient.AreaKey] = recipient
}

// NextInvoiceNumber allocates the next number.
func (r *Repository) NextInvoiceNumber(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastNumber++
	return r.lastNumber, nil
}

// RecipientForArea returns the seeded recipient for an area.
func (r *Repository) RecipientForArea(_ context.Context, areaKey string) (*billing.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recipient, ok := r.recipients[areaKey]
	if !ok {
		return nil, billing.ErrRecipientNotFound
	}
	return &recipient, nil
}

// RecordIssued appends an issued invoice record.
func (r *Repository) RecordIssued(_ context.Context, invoice billing.IssuedInvoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, invoice)
	return nil
}

// Issued returns a copy of the issued invoice records.
func (r *Repository) Issued() []billing.IssuedInvoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.IssuedInvoice, len(r.issued))
	copy(out, r.issued)
	return out
}
