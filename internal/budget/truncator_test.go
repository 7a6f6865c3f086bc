package budget

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/dishahealth/coach/internal/conversation"
	"github.com/dishahealth/coach/internal/tokens"
	"go.uber.org/zap"
)

// fixedInstruction returns text the heuristic counts as n tokens.
func fixedInstruction(n int) string {
	return strings.Repeat("abcd", n)
}

func makeHistory(n, tokensEach int) []conversation.Turn {
	h := make([]conversation.Turn, n)
	for i := range h {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		h[i] = conversation.Turn{
			ID:         int64(i + 1),
			Role:       role,
			Content:    strings.Repeat("word", tokensEach),
			TokenCount: tokensEach,
		}
	}
	return h
}

func sumTokens(turns []conversation.Turn) int {
	total := 0
	for _, t := range turns {
		total += t.TokenCount
	}
	return total
}

func newTruncator(maxTotal, maxReply int) *Truncator {
	return NewTruncator(Config{MaxContextTokens: maxTotal, MaxResponseTokens: maxReply}, tokens.Heuristic{}, zap.NewNop())
}

func TestTruncateEmpty(t *testing.T) {
	tr := newTruncator(8000, 1000)
	if got := tr.Truncate(nil, "system"); len(got) != 0 {
		t.Fatalf("got %d turns, want 0", len(got))
	}
}

func TestTruncateAllFit(t *testing.T) {
	// 25 turns of 50 tokens next to a 200 token instruction in an 8000/1000 budget.
	tr := newTruncator(8000, 1000)
	history := makeHistory(25, 50)
	got := tr.Truncate(history, fixedInstruction(200))
	if len(got) != 25 {
		t.Fatalf("got %d turns, want 25", len(got))
	}
	if got[0].ID != 1 || got[24].ID != 25 {
		t.Errorf("order not preserved: first=%d last=%d", got[0].ID, got[24].ID)
	}
}

func TestTruncateDropsOldest(t *testing.T) {
	// available = 2000 - 200 - 1000 = 800 -> 16 turns of 50.
	tr := newTruncator(2000, 1000)
	history := makeHistory(25, 50)
	got := tr.Truncate(history, fixedInstruction(200))
	if len(got) != 16 {
		t.Fatalf("got %d turns, want 16", len(got))
	}
	if got[0].ID != 10 || got[len(got)-1].ID != 25 {
		t.Errorf("expected suffix 10..25, got %d..%d", got[0].ID, got[len(got)-1].ID)
	}
}

func TestTruncateStopsAtFirstOverflow(t *testing.T) {
	// A large turn in the middle stops the walk even if older ones would fit.
	tr := newTruncator(1500, 1000)
	history := []conversation.Turn{
		{ID: 1, Content: "a", TokenCount: 10},
		{ID: 2, Content: "b", TokenCount: 480},
		{ID: 3, Content: "c", TokenCount: 50},
	}
	got := tr.Truncate(history, "")
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected only turn 3, got %+v", got)
	}
}

func TestTruncateCutsSingleOversizedTurn(t *testing.T) {
	tr := newTruncator(1500, 1000)
	content := strings.Repeat("abcd", 1000) // 1000 tokens by heuristic
	history := []conversation.Turn{
		{ID: 1, Content: "older", TokenCount: 2},
		{ID: 2, Content: content, TokenCount: 1000},
	}
	got := tr.Truncate(history, "")
	if len(got) != 1 {
		t.Fatalf("got %d turns, want 1", len(got))
	}
	if got[0].ID != 2 {
		t.Fatalf("expected the most recent turn, got id %d", got[0].ID)
	}
	if !strings.HasSuffix(got[0].Content, Ellipsis) {
		t.Errorf("expected ellipsis suffix")
	}
	// available 500, minus margin 400 tokens -> 1600 chars + ellipsis.
	if want := 1600 + len(Ellipsis); len(got[0].Content) != want {
		t.Errorf("content length = %d, want %d", len(got[0].Content), want)
	}
	if history[1].Content != content {
		t.Errorf("input history was modified")
	}
}

func TestTruncateNegativeBudgetKeepsLastTurn(t *testing.T) {
	tr := newTruncator(100, 1000)
	history := makeHistory(3, 10)
	got := tr.Truncate(history, "")
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected the last turn, got %+v", got)
	}
	if got[0].Content != Ellipsis {
		t.Errorf("content = %q, want %q", got[0].Content, Ellipsis)
	}
}

func TestTruncateUsesCounterWhenTokenCountMissing(t *testing.T) {
	tr := newTruncator(1100, 1000)
	history := []conversation.Turn{
		{ID: 1, Content: strings.Repeat("abcd", 60)},
		{ID: 2, Content: strings.Repeat("abcd", 60)},
	}
	got := tr.Truncate(history, "")
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected only turn 2, got %d turns", len(got))
	}
}

func TestTruncateDeterministic(t *testing.T) {
	tr := newTruncator(3000, 500)
	history := makeHistory(40, 75)
	a := tr.Truncate(history, fixedInstruction(300))
	b := tr.Truncate(history, fixedInstruction(300))
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Content != b[i].Content {
			t.Fatalf("results differ at %d", i)
		}
	}
}

func TestTruncateBudgetProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(30) + 1
		history := make([]conversation.Turn, n)
		for i := range history {
			tok := rng.Intn(300) + 1
			history[i] = conversation.Turn{
				ID:         int64(i + 1),
				Content:    strings.Repeat("abcd", tok),
				TokenCount: tok,
			}
		}
		instrTokens := rng.Intn(500)
		maxReply := rng.Intn(1000)
		// Keep the budget large enough for the cut path's safety margin.
		maxTotal := instrTokens + maxReply + SafetyMargin + 1 + rng.Intn(4000)
		tr := newTruncator(maxTotal, maxReply)
		instruction := fixedInstruction(instrTokens)

		got := tr.Truncate(history, instruction)
		if len(got) == 0 {
			t.Fatalf("iter %d: empty result for non-empty history", iter)
		}
		if total := sumTokens(got) + instrTokens + maxReply; total > maxTotal {
			t.Fatalf("iter %d: %d tokens exceed budget %d", iter, total, maxTotal)
		}
		// The result is a chronological suffix (the last element may be cut).
		offset := n - len(got)
		for i, turn := range got {
			if turn.ID != history[offset+i].ID {
				t.Fatalf("iter %d: not a suffix at %d", iter, i)
			}
		}
	}
}
