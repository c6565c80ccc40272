// Package coordinator turns submitted intents into a globally ordered
// sequence of executed credential operations. Submissions validate
// advisorily, append to the consensus log, and return immediately;
// execution happens when the log confirms the entry, with authoritative
// re-validation against current store state.
package coordinator

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tessera/internal/coordinator/intent"
	"tessera/internal/coordinator/metrics"
	"tessera/internal/coordinator/models"
	credmodels "tessera/internal/credential/models"
	"tessera/internal/ledger"
	"tessera/internal/platform/config"
	"tessera/internal/platform/middleware"
	"tessera/internal/platform/stream"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/requestcontext"
)

// CredentialStore is the quota store contract the coordinator mutates
// through. Execute serializes per-holder validate-then-mutate transitions.
type CredentialStore interface {
	FindByHolder(ctx context.Context, holder id.Holder) (*credmodels.Credential, error)
	Create(ctx context.Context, cred *credmodels.Credential) error
	Execute(ctx context.Context, holder id.Holder, validateFn func(*credmodels.Credential) error, mutateFn func(*credmodels.Credential)) (*credmodels.Credential, error)
	AppendAccrualEvent(ctx context.Context, ev *credmodels.AccrualEvent) error
	AppendTerminationEvent(ctx context.Context, ev *credmodels.TerminationEvent) error
}

// OperationStore tracks per-nonce operation records.
type OperationStore interface {
	Create(ctx context.Context, rec *models.OperationRecord) error
	FindByNonce(ctx context.Context, nonce id.Nonce) (*models.OperationRecord, error)
	Update(ctx context.Context, rec *models.OperationRecord) error
	ResumePosition(ctx context.Context) (stream.Position, error)
	ListByStatuses(ctx context.Context, statuses []models.OperationStatus) ([]*models.OperationRecord, error)
}

// Service owns submission, confirmed execution, and status queries.
type Service struct {
	cfg         config.Coordinator
	accounts    config.Ledger
	log         stream.Log
	gateway     ledger.Ledger
	credentials CredentialStore
	operations  OperationStore
	completions *completionRegistry
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(
	cfg config.Coordinator,
	accounts config.Ledger,
	log stream.Log,
	gateway ledger.Ledger,
	credentials CredentialStore,
	operations OperationStore,
	opts ...Option,
) *Service {
	s := &Service{
		cfg:         cfg,
		accounts:    accounts,
		log:         log,
		gateway:     gateway,
		credentials: credentials,
		operations:  operations,
		completions: newCompletionRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("tessera/coordinator")
	}
	return s
}

// SubmitIssue validates and appends an ISSUE intent. The deposit amount
// must equal the issuance price exactly; partial or excess deposits are
// rejected before anything reaches the log.
func (s *Service) SubmitIssue(ctx context.Context, holder id.Holder, depositAmount int64, nonce id.Nonce) (*models.OperationRecord, error) {
	if depositAmount != s.cfg.IssuePrice {
		return nil, dErrors.Newf(dErrors.CodeValidation, "deposit amount must equal the issuance price of %d", s.cfg.IssuePrice)
	}
	cred, err := s.credentials.FindByHolder(ctx, holder)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if err == nil && cred.Active {
		return nil, dErrors.New(dErrors.CodeNotEligible, "holder already has an active credential")
	}
	return s.submit(ctx, intent.NewIssue(holder, depositAmount, nonce, requestcontext.Now(ctx)))
}

// SubmitAccrue validates and appends an ACCRUE intent. Validation here is
// advisory; the authoritative check happens against store state when the
// log confirms the entry.
func (s *Service) SubmitAccrue(ctx context.Context, holder id.Holder, amount int64, nonce id.Nonce) (*models.OperationRecord, error) {
	cred, err := s.credentials.FindByHolder(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotEligible, "holder has no active credential")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if err := cred.CanAccrue(amount, s.cfg.MaxAccrualPerRequest); err != nil {
		return nil, err
	}
	return s.submit(ctx, intent.NewAccrue(holder, amount, nonce, requestcontext.Now(ctx)))
}

// SubmitTerminate validates and appends a TERMINATE intent. A credential is
// eligible only once its quota is exhausted.
func (s *Service) SubmitTerminate(ctx context.Context, holder id.Holder, nonce id.Nonce) (*models.OperationRecord, error) {
	cred, err := s.credentials.FindByHolder(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotEligible, "holder has no active credential")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if err := cred.CanTerminate(); err != nil {
		return nil, err
	}
	return s.submit(ctx, intent.NewTerminate(holder, nonce, requestcontext.Now(ctx)))
}

// submit records the operation and appends the intent to the consensus log.
// A nonce that already has a record is answered from that record without a
// second append, whatever its status: completed operations are idempotent
// successes and failed ones require a fresh nonce by policy.
func (s *Service) submit(ctx context.Context, it intent.Intent) (*models.OperationRecord, error) {
	if existing, err := s.operations.FindByNonce(ctx, it.Nonce); err == nil {
		s.metrics.IncrementDuplicateSubmission()
		s.logAudit(ctx, "operation_resubmitted", "nonce", it.Nonce.String(), "status", existing.Status.String())
		return existing, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation record")
	}

	now := requestcontext.Now(ctx)
	rec, err := models.NewOperationRecord(it.Nonce, it.Type, now)
	if err != nil {
		return nil, err
	}
	if err := s.operations.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			existing, ferr := s.operations.FindByNonce(ctx, it.Nonce)
			if ferr != nil {
				return nil, dErrors.Wrap(ferr, dErrors.CodeInternal, "failed to load operation record")
			}
			s.metrics.IncrementDuplicateSubmission()
			return existing, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record operation")
	}

	payload, err := it.Encode()
	if err != nil {
		return nil, err
	}

	appendCtx := ctx
	if s.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		appendCtx, cancel = context.WithTimeout(ctx, s.cfg.SubmitTimeout)
		defer cancel()
	}
	position, err := s.log.Append(appendCtx, []byte(it.Holder), payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// The append may still land; the record stays SUBMITTED and the
			// intent executes if the log later confirms it.
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for consensus confirmation")
		}
		rec.MarkFailed(nil, "consensus append failed: "+err.Error(), requestcontext.Now(ctx))
		if uerr := s.operations.Update(ctx, rec); uerr != nil {
			s.logError(ctx, "failed to persist append failure", uerr, "nonce", it.Nonce.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "consensus append failed")
	}

	rec.RecordPosition(int64(position), requestcontext.Now(ctx))
	if err := s.operations.Update(ctx, rec); err != nil {
		// The intent is in the log; execution will still find the record by
		// nonce, so surface but do not fail the submission.
		s.logError(ctx, "failed to persist consensus position", err, "nonce", it.Nonce.String())
	}

	s.metrics.IncrementSubmitted(it.Type.String())
	s.logAudit(ctx, "operation_submitted",
		"nonce", it.Nonce.String(),
		"type", it.Type.String(),
		"holder", it.Holder.String(),
		"position", int64(position),
	)
	return rec, nil
}

// GetStatus returns the operation record for a nonce.
func (s *Service) GetStatus(ctx context.Context, nonce id.Nonce) (*models.OperationRecord, error) {
	rec, err := s.operations.FindByNonce(ctx, nonce)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "operation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation record")
	}
	return rec, nil
}

// ListOperations returns records in the given statuses for admin views.
func (s *Service) ListOperations(ctx context.Context, statuses []models.OperationStatus) ([]*models.OperationRecord, error) {
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown operation status %q", st.String())
		}
	}
	if len(statuses) == 0 {
		statuses = []models.OperationStatus{models.StatusSubmitted, models.StatusExecuting, models.StatusCompleted, models.StatusFailed}
	}
	out, err := s.operations.ListByStatuses(ctx, statuses)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list operations")
	}
	return out, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attributes ...any) {
	if s.logger == nil {
		return
	}
	args := append(attributes, "error", err)
	s.logger.ErrorContext(ctx, msg, args...)
}
