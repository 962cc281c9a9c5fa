package gateway

import "testing"

func TestMutationLifecycle(t *testing.T) {
	m := newMutation(7, "update", "role")
	if m.ID == "" {
		t.Fatal("expected a mutation id")
	}
	if m.State() != StatePending {
		t.Fatalf("expected pending, got %s", m.State())
	}

	m.advance(StateValidating)
	m.advance(StateApplying)
	m.advance(StateInvalidating)
	m.advance(StateCommitted)

	want := []State{StatePending, StateValidating, StateApplying, StateInvalidating, StateCommitted}
	got := m.History()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if m.State() != StateCommitted {
		t.Fatalf("expected committed, got %s", m.State())
	}
}

func TestMutationHistoryIsCopied(t *testing.T) {
	m := newMutation(7, "create", "group")
	h := m.History()
	h[0] = StateRejected
	if m.History()[0] != StatePending {
		t.Fatal("history must not be mutable from outside")
	}
}
