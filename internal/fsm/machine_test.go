package fsm

import "testing"

func testRows() []Transition {
	return []Transition{
		{From: "idle", Event: "start", To: "running", Guard: "has_fuel"},
		{From: "idle", Event: "start", To: "blocked"},
		{From: "running", Event: "stop", To: "idle"},
	}
}

func testGuards() Guards {
	return Guards{
		"has_fuel": func(ctx Context) bool {
			fuel, ok := ctx["fuel"].(float64)
			return ok && fuel > 0
		},
	}
}

func TestNextGuardSelection(t *testing.T) {
	m, err := New(testRows(), testGuards())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	next, ok := m.Next("idle", "start", Context{"fuel": 10.0})
	if !ok || next != "running" {
		t.Fatalf("expected running, got %q ok=%v", next, ok)
	}

	next, ok = m.Next("idle", "start", Context{"fuel": 0.0})
	if !ok || next != "blocked" {
		t.Fatalf("expected fallback to blocked, got %q ok=%v", next, ok)
	}

	// missing context key fails the guard rather than panicking
	next, ok = m.Next("idle", "start", nil)
	if !ok || next != "blocked" {
		t.Fatalf("expected blocked with nil context, got %q ok=%v", next, ok)
	}
}

func TestNextUnknownPair(t *testing.T) {
	m, err := New(testRows(), testGuards())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := m.Next("idle", "stop", nil); ok {
		t.Fatalf("expected no transition for (idle,stop)")
	}
	if m.CanTransition("nowhere", "start", nil) {
		t.Fatalf("expected no transition from unknown state")
	}
}

func TestNewRejectsIncompleteRow(t *testing.T) {
	_, err := New([]Transition{{From: "idle", Event: "", To: "running"}}, nil)
	if err == nil {
		t.Fatalf("expected error for empty event")
	}
}

func TestNewRejectsUnknownGuard(t *testing.T) {
	rows := []Transition{{From: "idle", Event: "start", To: "running", Guard: "nope"}}
	if _, err := New(rows, testGuards()); err == nil {
		t.Fatalf("expected error for unknown guard")
	}
}

func TestNewRejectsShadowedRow(t *testing.T) {
	rows := []Transition{
		{From: "idle", Event: "start", To: "running"},
		{From: "idle", Event: "start", To: "blocked", Guard: "has_fuel"},
	}
	if _, err := New(rows, testGuards()); err == nil {
		t.Fatalf("expected error for row behind unguarded row")
	}
}

func TestNewRejectsDuplicateRow(t *testing.T) {
	rows := []Transition{
		{From: "idle", Event: "start", To: "running", Guard: "has_fuel"},
		{From: "idle", Event: "start", To: "blocked", Guard: "has_fuel"},
	}
	if _, err := New(rows, testGuards()); err == nil {
		t.Fatalf("expected error for duplicate guarded row")
	}
}

func TestEventsFrom(t *testing.T) {
	m, err := New(testRows(), testGuards())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	evs := m.EventsFrom("idle")
	if len(evs) != 1 || evs[0] != "start" {
		t.Fatalf("unexpected events: %v", evs)
	}
	if got := m.EventsFrom("nowhere"); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
}
