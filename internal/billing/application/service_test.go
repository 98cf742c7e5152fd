package application

import (
	"context"
	"sync"
	"testing"
	"time"

	billing "home-energy/internal/billing/domain"
	"home-energy/internal/billing/infrastructure/memory"
)

func TestIssue_AllocatesSequentialNumbers(t *testing.T) {
	repo := memory.NewRepository()
	service, err := NewService(repo, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	first, err := service.Issue(context.Background(), "gardshus", start, end, 165.00, "pdf")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := service.Issue(context.Background(), "gardshus", start, end, 165.00, "xlsx")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.Number != 1 || second.Number != 2 {
		t.Fatalf("expected numbers 1,2 got %d,%d", first.Number, second.Number)
	}

	issued := repo.Issued()
	if len(issued) != 2 {
		t.Fatalf("expected 2 issued records, got %d", len(issued))
	}
	if issued[0].Format != "pdf" || issued[1].Format != "xlsx" {
		t.Fatalf("unexpected formats: %v, %v", issued[0].Format, issued[1].Format)
	}
}

func TestIssue_ResolvesRecipient(t *testing.T) {
	repo := memory.NewRepository()
	repo.SeedRecipient(billing.Recipient{ID: "r1", AreaKey: "salong", Name: "Salongen AB"})
	service, err := NewService(repo, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	issued, err := service.Issue(context.Background(), "salong", start, start.AddDate(0, 1, 0), 0, "pdf")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.Recipient == nil || issued.Recipient.Name != "Salongen AB" {
		t.Fatalf("unexpected recipient: %+v", issued.Recipient)
	}

	// Unknown areas are issued unaddressed.
	anonymous, err := service.Issue(context.Background(), "gardshus", start, start.AddDate(0, 1, 0), 0, "pdf")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if anonymous.Recipient != nil {
		t.Fatalf("expected no recipient, got %+v", anonymous.Recipient)
	}
}

func TestIssue_ConcurrentNumbersAreUnique(t *testing.T) {
	repo := memory.NewRepository()
	service, err := NewService(repo, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	const workers = 16
	numbers := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			issued, err := service.Issue(context.Background(), "gardshus", start, start.AddDate(0, 1, 0), 0, "pdf")
			if err != nil {
				t.Errorf("issue: %v", err)
				return
			}
			numbers[i] = issued.Number
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, workers)
	for _, number := range numbers {
		if seen[number] {
			t.Fatalf("duplicate invoice number %d", number)
		}
		seen[number] = true
	}
}
