package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tessera/internal/credential/models"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the holder has no credential row
// - Return sentinel.ErrConflict when a create collides with an active credential
// - Pass validation errors from Execute callbacks through unchanged
// - Return wrapped errors with context for infrastructure failures

// InMemory keeps credentials and their event history in process memory.
// Used by tests and by deployments without a Postgres URL configured.
type InMemory struct {
	mu           sync.RWMutex
	credentials  map[id.Holder]*models.Credential
	accruals     map[id.Holder][]models.AccrualEvent
	terminations map[id.Holder][]models.TerminationEvent
	nextEventID  int64
}

// NewInMemory constructs an empty in-memory credential store.
func NewInMemory() *InMemory {
	return &InMemory{
		credentials:  make(map[id.Holder]*models.Credential),
		accruals:     make(map[id.Holder][]models.AccrualEvent),
		terminations: make(map[id.Holder][]models.TerminationEvent),
	}
}

// FindByHolder returns a copy of the holder's credential row. Mutations must
// go through Execute so invariants are checked under the store lock.
func (s *InMemory) FindByHolder(_ context.Context, holder id.Holder) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[holder]
	if !ok {
		return nil, fmt.Errorf("credential not found for holder %q: %w", holder, sentinel.ErrNotFound)
	}
	out := *cred
	return &out, nil
}

// Create inserts the credential row, replacing a terminated row if one exists.
// An active row for the same holder is a conflict.
func (s *InMemory) Create(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.credentials[cred.Holder]; ok && existing.Active {
		return fmt.Errorf("active credential exists for holder %q: %w", cred.Holder, sentinel.ErrConflict)
	}
	stored := *cred
	s.credentials[cred.Holder] = &stored
	return nil
}

// Execute atomically validates and mutates the holder's credential.
// Both callbacks run under the store lock: validateFn sees the current state
// and its error aborts without mutation; mutateFn is applied to a working
// copy which replaces the stored row only after CheckInvariants passes.
func (s *InMemory) Execute(
	_ context.Context,
	holder id.Holder,
	validateFn func(*models.Credential) error,
	mutateFn func(*models.Credential),
) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[holder]
	if !ok {
		return nil, fmt.Errorf("credential not found for holder %q: %w", holder, sentinel.ErrNotFound)
	}

	working := *cred
	if err := validateFn(&working); err != nil {
		return nil, err
	}
	mutateFn(&working)
	if err := working.CheckInvariants(); err != nil {
		return nil, err
	}

	s.credentials[holder] = &working
	out := working
	return &out, nil
}

// AppendAccrualEvent journals an executed accrual and assigns the event ID.
func (s *InMemory) AppendAccrualEvent(_ context.Context, ev *models.AccrualEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.accruals[ev.Holder] = append(s.accruals[ev.Holder], *ev)
	return nil
}

// AppendTerminationEvent journals an executed termination settlement and
// assigns the event ID.
func (s *InMemory) AppendTerminationEvent(_ context.Context, ev *models.TerminationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.terminations[ev.Holder] = append(s.terminations[ev.Holder], *ev)
	return nil
}

// ListAccrualEvents returns the holder's accrual history in execution order.
// History spans credential lifecycles; an empty slice is not an error.
func (s *InMemory) ListAccrualEvents(_ context.Context, holder id.Holder) ([]models.AccrualEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.accruals[holder]
	out := make([]models.AccrualEvent, len(events))
	copy(out, events)
	return out, nil
}

// ListTerminationEvents returns the holder's termination history in execution order.
func (s *InMemory) ListTerminationEvents(_ context.Context, holder id.Holder) ([]models.TerminationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.terminations[holder]
	out := make([]models.TerminationEvent, len(events))
	copy(out, events)
	return out, nil
}

// List returns all credential rows ordered by holder.
func (s *InMemory) List(_ context.Context) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Credential, 0, len(s.credentials))
	for _, cred := range s.credentials {
		c := *cred
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	return out, nil
}
