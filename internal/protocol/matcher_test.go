package protocol

import (
	"testing"
)

func TestMatchFeverBeforeHeadache(t *testing.T) {
	m := NewMatcher(DefaultMatchCap)
	got := m.Match("I have a fever and headache", DefaultProtocols())

	names := Names(got)
	if len(names) != 2 {
		t.Fatalf("got %v, want [Fever Management Headache]", names)
	}
	if names[0] != "Fever Management" || names[1] != "Headache" {
		t.Errorf("got %v, want [Fever Management Headache]", names)
	}
	if got[0].Priority != 8 || got[1].Priority != 6 {
		t.Errorf("priorities = %d,%d want 8,6", got[0].Priority, got[1].Priority)
	}
}

func TestMatchKeywordOnlyWithoutTriggers(t *testing.T) {
	m := NewMatcher(3)
	protocols := []Protocol{
		{Name: "Sleep", Keywords: []string{"sleep"}, Priority: 1, Active: true},
	}
	if got := m.Match("I can't SLEEP at night", protocols); len(got) != 1 {
		t.Fatalf("expected keyword-only match, got %d", len(got))
	}
}

func TestMatchRequiresTriggerWhenDeclared(t *testing.T) {
	m := NewMatcher(3)
	protocols := []Protocol{
		{Name: "Fever", Keywords: []string{"fever"}, TriggerPhrases: []string{"running fever"}, Priority: 1, Active: true},
	}
	if got := m.Match("fever?", protocols); len(got) != 0 {
		t.Fatalf("expected no match without trigger phrase, got %v", Names(got))
	}
	if got := m.Match("I am Running Fever since morning", protocols); len(got) != 1 {
		t.Fatalf("expected match with trigger phrase")
	}
}

func TestMatchSkipsInactive(t *testing.T) {
	m := NewMatcher(3)
	protocols := []Protocol{
		{Name: "Off", Keywords: []string{"refund"}, Priority: 9, Active: false},
		{Name: "On", Keywords: []string{"refund"}, Priority: 1, Active: true},
	}
	got := Names(m.Match("refund please", protocols))
	if len(got) != 1 || got[0] != "On" {
		t.Fatalf("got %v, want [On]", got)
	}
}

func TestMatchCapAndOrder(t *testing.T) {
	m := NewMatcher(3)
	protocols := []Protocol{
		{Name: "p1", Keywords: []string{"x"}, Priority: 1, Active: true},
		{Name: "p5a", Keywords: []string{"x"}, Priority: 5, Active: true},
		{Name: "p9", Keywords: []string{"x"}, Priority: 9, Active: true},
		{Name: "p5b", Keywords: []string{"x"}, Priority: 5, Active: true},
		{Name: "p3", Keywords: []string{"x"}, Priority: 3, Active: true},
	}
	got := m.Match("x", protocols)
	names := Names(got)
	want := []string{"p9", "p5a", "p5b"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Priority > got[i-1].Priority {
			t.Fatalf("not sorted by priority: %v", names)
		}
	}
}

func TestMatchEmergency(t *testing.T) {
	m := NewMatcher(DefaultMatchCap)
	got := Names(m.Match("I have chest pain and severe headache", DefaultProtocols()))
	if len(got) == 0 || got[0] != "Emergency Symptoms" {
		t.Fatalf("expected Emergency Symptoms first, got %v", got)
	}
}

func TestMatchNothing(t *testing.T) {
	m := NewMatcher(DefaultMatchCap)
	if got := m.Match("Hi", DefaultProtocols()); len(got) != 0 {
		t.Fatalf("expected no matches, got %v", Names(got))
	}
}

func TestDefaultProtocolsUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range DefaultProtocols() {
		if seen[p.Name] {
			t.Fatalf("duplicate protocol name %q", p.Name)
		}
		seen[p.Name] = true
		if !p.Active || p.Template == "" || len(p.Keywords) == 0 {
			t.Errorf("protocol %q is incomplete", p.Name)
		}
	}
}
