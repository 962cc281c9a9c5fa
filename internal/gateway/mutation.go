package gateway

import (
	"time"

	"github.com/google/uuid"
)

// State tracks a mutation through its lifecycle. Every mutation ends in
// Committed or Rejected; a failure after validation aborts the store
// transaction, so no partial application is ever observable.
type State string

// Mutation states.
const (
	StatePending      State = "pending"
	StateValidating   State = "validating"
	StateApplying     State = "applying"
	StateInvalidating State = "invalidating"
	StateCommitted    State = "committed"
	StateRejected     State = "rejected"
)

// Mutation is one gateway operation with its audit identity.
type Mutation struct {
	ID        string
	ActorID   int64
	Verb      string
	Entity    string
	EntityID  int64
	StartedAt time.Time

	state   State
	history []State
}

func newMutation(actorID int64, verb, entity string) *Mutation {
	m := &Mutation{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Verb:      verb,
		Entity:    entity,
		StartedAt: time.Now().UTC(),
		state:     StatePending,
	}
	m.history = append(m.history, StatePending)
	return m
}

func (m *Mutation) advance(next State) {
	m.state = next
	m.history = append(m.history, next)
}

// State returns the current lifecycle state.
func (m *Mutation) State() State {
	return m.state
}

// History returns the states the mutation passed through, in order.
func (m *Mutation) History() []State {
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}
