package memory

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func TestTimelineRepository_AppendAndList(t *testing.T) {
	repo := NewTimelineRepository()

	now := time.Now().UTC()
	events := []domain.TimelineEvent{
		{OrderID: "order-1", To: domain.OrderStatusPending, Occurred: now},
		{OrderID: "order-1", From: domain.OrderStatusPending, To: domain.OrderStatusProcessing, Occurred: now.Add(time.Minute)},
		{OrderID: "order-2", To: domain.OrderStatusPending, Occurred: now},
	}
	for _, event := range events {
		if err := repo.Append(event); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	first, err := repo.List("order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 events, got %d", len(first))
	}
	if first[1].To != domain.OrderStatusProcessing {
		t.Errorf("expected processing, got %s", first[1].To)
	}

	// Порядок добавления сохраняется
	if !first[0].Occurred.Before(first[1].Occurred) {
		t.Error("events should be in append order")
	}
}

func TestTimelineRepository_ListUnknownOrder(t *testing.T) {
	repo := NewTimelineRepository()

	events, err := repo.List("ghost")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty history, got %d", len(events))
	}
}

func TestTimelineRepository_ListReturnsCopy(t *testing.T) {
	repo := NewTimelineRepository()

	if err := repo.Append(domain.TimelineEvent{OrderID: "order-1", To: domain.OrderStatusPending}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	first, _ := repo.List("order-1")
	first[0].To = domain.OrderStatusCanceled

	second, _ := repo.List("order-1")
	if second[0].To != domain.OrderStatusPending {
		t.Error("mutation of returned slice must not affect stored history")
	}
}
