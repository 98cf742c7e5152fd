package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	billing "home-energy/internal/billing/domain"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Issued is the billing side of one exported invoice: its allocated
// number and the recipient it is addressed to.
type Issued struct {
	Number    int64
	Recipient *billing.Recipient
	IssuedAt  time.Time
}

// Service allocates invoice numbers and records issued invoices. A
// process-wide mutex keeps allocation and recording a single step so
// a failed recording never leaves an unrecorded number behind silently.
type Service struct {
	mu     sync.Mutex
	repo   billing.Repository
	clock  Clock
	logger *log.Logger
}

// NewService constructs a billing service.
func NewService(repo billing.Repository, clock Clock, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("billing service: nil repository")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Service{repo: repo, clock: clock, logger: logger}, nil
}

// Issue allocates the next invoice number for an area's invoice over a
// period and records it. A missing recipient is not an error; the
// invoice is issued unaddressed.
func (s *Service) Issue(ctx context.Context, areaKey string, periodStart, periodEnd time.Time, totalSEK float64, format string) (*Issued, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	number, err := s.repo.NextInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}

	recipient, err := s.repo.RecipientForArea(ctx, areaKey)
	if err != nil {
		if !errors.Is(err, billing.ErrRecipientNotFound) {
			return nil, err
		}
		recipient = nil
	}

	issuedAt := s.clock.Now().UTC()
	record := billing.IssuedInvoice{
		Number:      number,
		AreaKey:     areaKey,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		TotalSEK:    totalSEK,
		Format:      format,
		IssuedAt:    issuedAt,
	}
	if recipient != nil {
		record.Recipient = recipient.Name
	}
	if err := s.repo.RecordIssued(ctx, record); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("issued invoice %d for area %s (%s)", number, areaKey, format)
	}
	return &Issued{Number: number, Recipient: recipient, IssuedAt: issuedAt}, nil
}
