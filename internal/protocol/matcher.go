package protocol

import (
	"sort"
	"strings"
)

// DefaultMatchCap is the most protocols a single message can pull in.
const DefaultMatchCap = 3

// Matcher selects the protocols that apply to a message.
type Matcher struct {
	cap int
}

// NewMatcher creates a matcher returning at most limit protocols.
func NewMatcher(limit int) *Matcher {
	if limit <= 0 {
		limit = DefaultMatchCap
	}
	return &Matcher{cap: limit}
}

// Match returns summaries of the protocols matching message, highest
// priority first. Each protocol is judged on its own: a keyword must occur
// in the message, and when the protocol declares trigger phrases one of
// those must occur as well. Comparison is case-insensitive substring.
func (m *Matcher) Match(message string, protocols []Protocol) []Summary {
	candidates := make([]Protocol, 0, len(protocols))
	for _, p := range protocols {
		if p.Active {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	text := strings.ToLower(message)
	var matched []Summary
	for _, p := range candidates {
		if len(matched) >= m.cap {
			break
		}
		if !containsAny(text, p.Keywords) {
			continue
		}
		if len(p.TriggerPhrases) > 0 && !containsAny(text, p.TriggerPhrases) {
			continue
		}
		matched = append(matched, p.Summarize())
	}
	return matched
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
