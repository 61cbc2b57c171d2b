package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestSessionRepository_SaveSweepsAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	repo := NewSessionRepository().(*sessionRepositoryInMemory)
	repo.now = func() time.Time { return clock }

	for _, token := range []string{"abandoned-1", "abandoned-2"} {
		if err := repo.Save(ctx, domain.Session{Token: token, CustomerID: "c-1", ExpiresAt: clock.Add(time.Minute)}); err != nil {
			t.Fatalf("save %s: %v", token, err)
		}
	}
	if err := repo.Save(ctx, domain.Session{Token: "long", CustomerID: "c-2", ExpiresAt: clock.Add(time.Hour)}); err != nil {
		t.Fatalf("save long: %v", err)
	}

	clock = clock.Add(30 * time.Second)
	if err := repo.Save(ctx, domain.Session{Token: "fresh-1", CustomerID: "c-3", ExpiresAt: clock.Add(time.Hour)}); err != nil {
		t.Fatalf("save fresh-1: %v", err)
	}
	if got := len(repo.sessions); got != 4 {
		t.Fatalf("sweep must not run before the interval, got %d sessions", got)
	}

	clock = clock.Add(2 * time.Minute)
	if err := repo.Save(ctx, domain.Session{Token: "fresh-2", CustomerID: "c-3", ExpiresAt: clock.Add(time.Hour)}); err != nil {
		t.Fatalf("save fresh-2: %v", err)
	}
	if got := len(repo.sessions); got != 3 {
		t.Fatalf("expected abandoned sessions to be swept, got %d sessions", got)
	}
	for _, token := range []string{"abandoned-1", "abandoned-2"} {
		if _, ok := repo.sessions[token]; ok {
			t.Fatalf("session %s must be evicted", token)
		}
	}
	if _, err := repo.Get(ctx, "long"); err != nil {
		t.Fatalf("live session must survive the sweep: %v", err)
	}
}
