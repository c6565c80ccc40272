// Package status is the read-only query facade over credential and operation
// state. It never mutates anything; every answer reflects what the
// coordinator's execution sequences have persisted.
package status

import (
	"context"
	"errors"
	"log/slog"
	"time"

	coordmodels "tessera/internal/coordinator/models"
	credmodels "tessera/internal/credential/models"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
)

// CredentialReader is the read slice of the credential store.
type CredentialReader interface {
	FindByHolder(ctx context.Context, holder id.Holder) (*credmodels.Credential, error)
	ListAccrualEvents(ctx context.Context, holder id.Holder) ([]credmodels.AccrualEvent, error)
	ListTerminationEvents(ctx context.Context, holder id.Holder) ([]credmodels.TerminationEvent, error)
}

// OperationReader is the read slice of the operation store.
type OperationReader interface {
	FindByNonce(ctx context.Context, nonce id.Nonce) (*coordmodels.OperationRecord, error)
}

// CredentialStatus is the externally visible credential view. A holder with
// no credential row reads as NOT_ISSUED rather than an error, since never
// having held a credential is a regular lifecycle position.
type CredentialStatus struct {
	Holder         id.Holder         `json:"holder"`
	Status         credmodels.Status `json:"status"`
	MaxQuota       int64             `json:"max_quota,omitempty"`
	TotalAccrued   int64             `json:"total_accrued,omitempty"`
	RemainingQuota int64             `json:"remaining_quota,omitempty"`
	CapReached     bool              `json:"cap_reached,omitempty"`
	LifecycleCount int               `json:"lifecycle_count,omitempty"`
	IssuedAt       *time.Time        `json:"issued_at,omitempty"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
}

// History is the append-only audit trail for a holder, spanning credential
// lifecycles.
type History struct {
	Holder       id.Holder                     `json:"holder"`
	Accruals     []credmodels.AccrualEvent     `json:"accruals"`
	Terminations []credmodels.TerminationEvent `json:"terminations"`
}

// Service answers status queries.
type Service struct {
	credentials CredentialReader
	operations  OperationReader
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs the facade.
func New(credentials CredentialReader, operations OperationReader, opts ...Option) *Service {
	s := &Service{
		credentials: credentials,
		operations:  operations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCredentialStatus returns the holder's credential view.
func (s *Service) GetCredentialStatus(ctx context.Context, holder id.Holder) (*CredentialStatus, error) {
	cred, err := s.credentials.FindByHolder(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &CredentialStatus{Holder: holder, Status: credmodels.StatusNotIssued}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	issued := cred.IssuedAt
	updated := cred.UpdatedAt
	return &CredentialStatus{
		Holder:         cred.Holder,
		Status:         cred.Status(),
		MaxQuota:       cred.MaxQuota,
		TotalAccrued:   cred.TotalAccrued,
		RemainingQuota: cred.RemainingQuota,
		CapReached:     cred.CapReached,
		LifecycleCount: cred.LifecycleCount,
		IssuedAt:       &issued,
		UpdatedAt:      &updated,
	}, nil
}

// GetOperationStatus returns the operation record for a nonce.
func (s *Service) GetOperationStatus(ctx context.Context, nonce id.Nonce) (*coordmodels.OperationRecord, error) {
	rec, err := s.operations.FindByNonce(ctx, nonce)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "operation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation record")
	}
	return rec, nil
}

// GetHistory returns the holder's accrual and termination events in
// execution order. A holder with no events gets empty slices, not an error.
func (s *Service) GetHistory(ctx context.Context, holder id.Holder) (*History, error) {
	accruals, err := s.credentials.ListAccrualEvents(ctx, holder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accrual events")
	}
	terminations, err := s.credentials.ListTerminationEvents(ctx, holder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list termination events")
	}
	if accruals == nil {
		accruals = []credmodels.AccrualEvent{}
	}
	if terminations == nil {
		terminations = []credmodels.TerminationEvent{}
	}
	return &History{Holder: holder, Accruals: accruals, Terminations: terminations}, nil
}
