package session

import (
	"context"
	"fmt"
	"sync"

	"confessions/internal/models"
)

// State is where a client is in the sign-in flow.
type State string

const (
	StateUnknown                 State = "unknown"
	StateAnonymous               State = "anonymous"
	StateAuthenticatedIncomplete State = "authenticated_incomplete"
	StateAuthenticatedComplete   State = "authenticated_complete"
)

// Event drives State changes.
type Event string

const (
	EventResolvedAnonymous Event = "resolved_anonymous"
	EventResolvedUser      Event = "resolved_user"
	EventProfileCompleted  Event = "profile_completed"
	EventSignedOut         Event = "signed_out"
)

// ErrInvalidTransition is returned for events that do not apply to a state.
type ErrInvalidTransition struct {
	From  State
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("session: %s does not accept %s", e.From, e.Event)
}

var transitions = map[State]map[Event]State{
	StateUnknown: {
		EventResolvedAnonymous: StateAnonymous,
		EventResolvedUser:      StateAuthenticatedIncomplete,
	},
	StateAnonymous: {
		EventResolvedAnonymous: StateAnonymous,
		EventResolvedUser:      StateAuthenticatedIncomplete,
	},
	StateAuthenticatedIncomplete: {
		EventResolvedUser:     StateAuthenticatedIncomplete,
		EventProfileCompleted: StateAuthenticatedComplete,
		EventSignedOut:        StateAnonymous,
	},
	StateAuthenticatedComplete: {
		EventResolvedUser:     StateAuthenticatedComplete,
		EventProfileCompleted: StateAuthenticatedComplete,
		EventSignedOut:        StateAnonymous,
	},
}

// Transition returns the state that follows from applying ev to s.
func Transition(s State, ev Event) (State, error) {
	next, ok := transitions[s][ev]
	if !ok {
		return s, &ErrInvalidTransition{From: s, Event: ev}
	}
	return next, nil
}

// Snapshot is the externally visible session.
type Snapshot struct {
	State State        `json:"state"`
	User  *models.User `json:"user,omitempty"`
}

// Machine tracks one client's session, driven by the Gate.
type Machine struct {
	gate Gate

	mu    sync.Mutex
	state State
	user  *models.User
}

// NewMachine returns a Machine in StateUnknown.
func NewMachine(gate Gate) *Machine {
	return &Machine{gate: gate, state: StateUnknown}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) fire(ev Event) error {
	next, err := Transition(m.state, ev)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

// Resolve asks the Gate who is signed in and moves the machine accordingly.
// A gate failure leaves the state unchanged.
func (m *Machine) Resolve(ctx context.Context) (Snapshot, error) {
	u, err := m.gate.CurrentUser(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		return m.snapshot(), err
	}
	if err := m.apply(u); err != nil {
		return m.snapshot(), err
	}
	return m.snapshot(), nil
}

func (m *Machine) apply(u *models.User) error {
	if u == nil {
		if m.state == StateAuthenticatedIncomplete || m.state == StateAuthenticatedComplete {
			if err := m.fire(EventSignedOut); err != nil {
				return err
			}
		}
		m.user = nil
		return m.fire(EventResolvedAnonymous)
	}

	if err := m.fire(EventResolvedUser); err != nil {
		return err
	}
	m.user = u
	if u.IsComplete() && m.state == StateAuthenticatedIncomplete {
		return m.fire(EventProfileCompleted)
	}
	return nil
}

// CompleteProfile runs setup for the signed-in user and, once the stored
// profile is complete, fires EventProfileCompleted.
func (m *Machine) CompleteProfile(ctx context.Context, setup func(context.Context) (*models.User, error)) (Snapshot, error) {
	if m.State() == StateUnknown {
		if _, err := m.Resolve(ctx); err != nil {
			return Snapshot{State: m.State()}, err
		}
	}

	m.mu.Lock()
	anonymous := m.state == StateAnonymous
	m.mu.Unlock()
	if anonymous {
		return Snapshot{State: StateAnonymous}, m.gate.RequireLogin(ctx)
	}

	u, err := setup(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		return m.snapshot(), err
	}
	m.user = u
	if u.IsComplete() {
		if err := m.fire(EventProfileCompleted); err != nil {
			return m.snapshot(), err
		}
	}
	return m.snapshot(), nil
}

// SignOut forgets the user.
func (m *Machine) SignOut() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fire(EventSignedOut); err != nil {
		return err
	}
	m.user = nil
	return nil
}

func (m *Machine) snapshot() Snapshot {
	return Snapshot{State: m.state, User: m.user}
}
