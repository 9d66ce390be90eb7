package statemachine

// StateFn is a state function following Rob Pike's pattern: the states are
// the functions themselves, and each returns the next state (nil terminates).
type StateFn[T any] func(*T) StateFn[T]

// Machine steps an entity through a chain of state functions. It carries no
// locking of its own; callers serialize access to the entity.
type Machine[T any] struct {
	entity *T
	state  StateFn[T]
}

// New creates a machine positioned at the initial state.
func New[T any](entity *T, initial StateFn[T]) *Machine[T] {
	return &Machine[T]{entity: entity, state: initial}
}

// Step executes the current state function once and advances to the state it
// returns. It reports false when the machine has terminated.
func (m *Machine[T]) Step() bool {
	if m.state == nil {
		return false
	}
	m.state = m.state(m.entity)
	return m.state != nil
}

// Run steps the machine until it terminates.
func (m *Machine[T]) Run() {
	for m.Step() {
	}
}
