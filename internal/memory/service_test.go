package memory_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/dishahealth/coach/internal/memory"
	"github.com/dishahealth/coach/internal/store/memstore"
)

func newService() *memory.Service {
	return memory.NewService(memstore.NewFacts(), zap.NewNop())
}

func TestUpsertOverwritesSameKey(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	first, err := svc.Upsert(ctx, 1, "health_goal", "weight", "lose weight", 3)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := svc.Upsert(ctx, 1, "health_goal", "weight", "lose 5kg", 4)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("id changed: %s -> %s", first.ID, second.ID)
	}

	facts, _ := svc.List(ctx, 1)
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(facts))
	}
	if facts[0].Value != "lose 5kg" || facts[0].Importance != 4 {
		t.Fatalf("fact = %+v", facts[0])
	}
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	for i := 0; i < 3; i++ {
		if _, err := svc.Upsert(ctx, 1, "preference", "diet", "vegetarian", 2); err != nil {
			t.Fatal(err)
		}
	}
	facts, _ := svc.List(ctx, 1)
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(facts))
	}
}

func TestUpsertSeparatesUsersAndCategories(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	svc.Upsert(ctx, 1, "health_goal", "sleep", "8 hours", 3)
	svc.Upsert(ctx, 1, "lifestyle", "sleep", "sleeps late", 2)
	svc.Upsert(ctx, 2, "health_goal", "sleep", "7 hours", 3)

	u1, _ := svc.List(ctx, 1)
	u2, _ := svc.List(ctx, 2)
	if len(u1) != 2 || len(u2) != 1 {
		t.Fatalf("user 1 has %d facts, user 2 has %d", len(u1), len(u2))
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	tests := []struct {
		name          string
		category, key string
		importance    int
	}{
		{"importance zero", "concern", "sleep", 0},
		{"importance six", "concern", "sleep", 6},
		{"blank category", " ", "sleep", 3},
		{"blank key", "concern", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, 1, tt.category, tt.key, "v", tt.importance)
			if !errors.Is(err, memory.ErrInvalidFact) {
				t.Fatalf("expected ErrInvalidFact, got %v", err)
			}
		})
	}
	facts, _ := svc.List(ctx, 1)
	if len(facts) != 0 {
		t.Fatalf("invalid facts were stored: %+v", facts)
	}
}

func TestTopFactsRanksAndCaps(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	svc.Upsert(ctx, 1, "concern", "a", "low", 1)
	svc.Upsert(ctx, 1, "concern", "b", "high", 5)
	svc.Upsert(ctx, 1, "concern", "c", "mid", 3)
	svc.Upsert(ctx, 1, "concern", "d", "mid2", 3)

	top, err := svc.TopFacts(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(top))
	}
	if top[0].Key != "b" || top[1].Importance != 3 {
		t.Fatalf("top = %+v", top)
	}

	none, err := svc.TopFacts(ctx, 1, 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("TopFacts(0) = %v, %v", none, err)
	}
}

func TestTopFactsTouchesReturned(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	a, _ := svc.Upsert(ctx, 1, "concern", "a", "x", 5)
	b, _ := svc.Upsert(ctx, 1, "concern", "b", "y", 1)

	top, err := svc.TopFacts(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if top[0].ID != a.ID {
		t.Fatalf("top = %s, want %s", top[0].Key, a.Key)
	}

	for _, f := range mustList(t, svc) {
		switch f.ID {
		case a.ID:
			if !f.LastAccessedAt.Equal(top[0].LastAccessedAt) {
				t.Fatalf("returned fact not touched: %v vs %v", f.LastAccessedAt, top[0].LastAccessedAt)
			}
		case b.ID:
			if !f.LastAccessedAt.Equal(b.LastAccessedAt) {
				t.Fatalf("unreturned fact was touched")
			}
		}
	}
}

func mustList(t *testing.T, svc *memory.Service) []memory.Fact {
	t.Helper()
	facts, err := svc.List(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	return facts
}

func TestStoreSkipsInvalidCandidates(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	n := svc.Store(ctx, 1, []memory.Candidate{
		{Category: "health_goal", Key: "goal", Value: "run 5k", Importance: 4},
		{Category: "", Key: "x", Value: "dropped", Importance: 2},
	})
	if n != 1 {
		t.Fatalf("stored %d, want 1", n)
	}
}
