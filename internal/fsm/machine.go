// Package fsm is a small finite-state machine keyed by a comparable state id.
// States receive their owner on every call instead of capturing it.
package fsm

// State is one behaviour of an owner.
type State[O any] interface {
	Enter(owner O)
	Update(owner O, dt float64)
	Exit(owner O)
}

// Hooks observe transitions. Like states they are handed the owner.
type Hooks[ID comparable, O any] struct {
	// Changed runs after the new state's Enter. hadPrevious is false on the
	// first transition.
	Changed func(owner O, from, to ID, hadPrevious bool)
	// Unknown runs when ChangeState names an unregistered state.
	Unknown func(owner O, id ID)
}

// Machine holds one active state at a time.
type Machine[ID comparable, O any] struct {
	owner   O
	states  map[ID]State[O]
	current ID
	active  State[O]
	hooks   Hooks[ID, O]
}

func New[ID comparable, O any](owner O, hooks Hooks[ID, O]) *Machine[ID, O] {
	return &Machine[ID, O]{
		owner:  owner,
		states: make(map[ID]State[O]),
		hooks:  hooks,
	}
}

// Add registers or replaces the state for id.
func (m *Machine[ID, O]) Add(id ID, state State[O]) {
	m.states[id] = state
}

// ChangeState exits the active state and enters id. Changing to the active
// state does nothing; an unknown id leaves the machine untouched and reports
// through Hooks.Unknown. It returns whether a transition happened.
func (m *Machine[ID, O]) ChangeState(id ID) bool {
	if m.active != nil && m.current == id {
		return false
	}
	next, ok := m.states[id]
	if !ok || next == nil {
		if m.hooks.Unknown != nil {
			m.hooks.Unknown(m.owner, id)
		}
		return false
	}
	from := m.current
	hadPrevious := m.active != nil
	if hadPrevious {
		m.active.Exit(m.owner)
	}
	m.current = id
	m.active = next
	next.Enter(m.owner)
	if m.hooks.Changed != nil {
		m.hooks.Changed(m.owner, from, id, hadPrevious)
	}
	return true
}

// Update ticks the active state.
func (m *Machine[ID, O]) Update(dt float64) {
	if m.active == nil {
		return
	}
	m.active.Update(m.owner, dt)
}

// Current returns the active state id; ok is false before the first change.
func (m *Machine[ID, O]) Current() (id ID, ok bool) {
	return m.current, m.active != nil
}
