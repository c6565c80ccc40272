package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tessera/internal/coordinator/models"
	"tessera/internal/platform/stream"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the nonce has no operation record
// - Return sentinel.ErrDuplicate when a create collides on the nonce
// - Return wrapped errors with context for infrastructure failures

// InMemory keeps operation records in process memory. Used by tests and by
// deployments without a Postgres URL configured.
type InMemory struct {
	mu         sync.RWMutex
	operations map[id.Nonce]*models.OperationRecord
}

// NewInMemory constructs an empty in-memory operation store.
func NewInMemory() *InMemory {
	return &InMemory{operations: make(map[id.Nonce]*models.OperationRecord)}
}

func cloneRecord(r *models.OperationRecord) *models.OperationRecord {
	out := *r
	if r.ConsensusPosition != nil {
		p := *r.ConsensusPosition
		out.ConsensusPosition = &p
	}
	if r.Result != nil {
		res := *r.Result
		if res.Steps != nil {
			res.Steps = append([]string(nil), res.Steps...)
		}
		out.Result = &res
	}
	return &out
}

// Create inserts a new operation record. The nonce is the idempotency key,
// so an existing record of any status is a duplicate.
func (s *InMemory) Create(_ context.Context, rec *models.OperationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.operations[rec.Nonce]; ok {
		return fmt.Errorf("operation %q already recorded: %w", rec.Nonce, sentinel.ErrDuplicate)
	}
	s.operations[rec.Nonce] = cloneRecord(rec)
	return nil
}

func (s *InMemory) FindByNonce(_ context.Context, nonce id.Nonce) (*models.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.operations[nonce]
	if !ok {
		return nil, fmt.Errorf("operation %q not found: %w", nonce, sentinel.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

func (s *InMemory) Update(_ context.Context, rec *models.OperationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.operations[rec.Nonce]; !ok {
		return fmt.Errorf("operation %q not found: %w", rec.Nonce, sentinel.ErrNotFound)
	}
	s.operations[rec.Nonce] = cloneRecord(rec)
	return nil
}

// ResumePosition returns the log position consumption should restart from:
// the earliest position of an unfinished record, else one past the highest
// position seen, else the start of the log. Redelivered entries below the
// resume point are absorbed by the terminal-status check on execution.
func (s *InMemory) ResumePosition(_ context.Context) (stream.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var minPending, maxSeen *int64
	for _, rec := range s.operations {
		if rec.ConsensusPosition == nil {
			continue
		}
		p := *rec.ConsensusPosition
		if maxSeen == nil || p > *maxSeen {
			maxSeen = &p
		}
		if !rec.IsTerminal() && (minPending == nil || p < *minPending) {
			minPending = &p
		}
	}
	if minPending != nil {
		return stream.Position(*minPending), nil
	}
	if maxSeen != nil {
		return stream.Position(*maxSeen + 1), nil
	}
	return stream.PositionStart, nil
}

// ListByStatuses returns records in any of the given statuses, most
// recently updated first.
func (s *InMemory) ListByStatuses(_ context.Context, statuses []models.OperationStatus) ([]*models.OperationRecord, error) {
	wanted := make(map[models.OperationStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.OperationRecord, 0)
	for _, rec := range s.operations {
		if wanted[rec.Status] {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Nonce < out[j].Nonce
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > operationListLimit {
		out = out[:operationListLimit]
	}
	return out, nil
}
