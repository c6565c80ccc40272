package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	coordmodels "tessera/internal/coordinator/models"
	"tessera/internal/platform/config"
	"tessera/internal/platform/stream"
	"tessera/internal/relay/metrics"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// queueDepth bounds how far the deposit subscription can run ahead of the
// slowest worker.
const queueDepth = 64

// Coordinator is the slice of the coordinator the relay drives.
type Coordinator interface {
	SubmitIssue(ctx context.Context, holder id.Holder, depositAmount int64, nonce id.Nonce) (*coordmodels.OperationRecord, error)
	AwaitOutcome(ctx context.Context, nonce id.Nonce, timeout time.Duration) (*coordmodels.OperationRecord, error)
}

// Service consumes deposit notifications and relays them as ISSUE intents.
//
// The dedup set is the only consumption state the relay keeps: the stream is
// re-read from the start on every boot and claims absorb everything already
// handled, so the dedup TTL must cover the longest acceptable restart-plus-
// redelivery window.
type Service struct {
	deposits    stream.Log
	coordinator Coordinator
	dedup       Dedup
	reporter    Reporter

	issuePrice   int64
	awaitTimeout time.Duration
	workers      int

	mu         sync.Mutex
	deliveries map[string]*Delivery

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

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

// New constructs the relay. issuePrice is the fixed deposit amount a
// notification must carry to be relayed.
func New(
	cfg config.Relay,
	issuePrice int64,
	deposits stream.Log,
	coordinator Coordinator,
	dedup Dedup,
	reporter Reporter,
	opts ...Option,
) *Service {
	s := &Service{
		deposits:     deposits,
		coordinator:  coordinator,
		dedup:        dedup,
		reporter:     reporter,
		issuePrice:   issuePrice,
		awaitTimeout: cfg.AwaitTimeout,
		workers:      cfg.Workers,
		deliveries:   make(map[string]*Delivery),
	}
	if s.workers < 1 {
		s.workers = 1
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run consumes the deposit stream until ctx is canceled. Malformed
// notifications are counted and skipped; duplicate deliveries are absorbed;
// infrastructure failures (dedup set unavailable) halt the relay so a
// restart can retry the unclaimed deposit.
func (s *Service) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "relaying deposit notifications",
		"workers", s.workers,
		"issue_price", s.issuePrice,
	)

	g, ctx := errgroup.WithContext(ctx)
	queue := make(chan stream.Entry, queueDepth)

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case e := <-queue:
					if err := s.handle(ctx, e.Value); err != nil {
						return err
					}
				}
			}
		})
	}

	g.Go(func() error {
		return s.deposits.Subscribe(ctx, stream.PositionStart, stream.HandlerFunc(func(ctx context.Context, e stream.Entry) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case queue <- e:
				return nil
			}
		}))
	})

	return g.Wait()
}

// handle processes one deposit notification through the full handshake.
func (s *Service) handle(ctx context.Context, payload []byte) error {
	start := time.Now()
	s.metrics.IncrementReceived()

	n, err := DecodeNotification(payload)
	if err != nil {
		// The deposit stream is external input; one bad payload must not
		// wedge every deposit behind it. Without a trustworthy event ID
		// there is nothing to dedup or report against.
		s.metrics.IncrementInvalid()
		s.logger.WarnContext(ctx, "dropping malformed deposit notification", "error", err)
		return nil
	}

	first, err := s.dedup.MarkSeen(ctx, n.EventID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "deposit dedup set unavailable")
	}
	if !first {
		s.metrics.IncrementDuplicate()
		s.logAudit(ctx, "deposit_duplicate", "event_id", n.EventID, "depositor", n.Depositor.String())
		return nil
	}

	s.track(n)
	s.logAudit(ctx, "deposit_received",
		"event_id", n.EventID,
		"depositor", n.Depositor.String(),
		"amount", n.Amount,
	)

	if n.Amount != s.issuePrice {
		err := dErrors.Newf(dErrors.CodeValidation, "deposit amount must equal the issuance price of %d", s.issuePrice)
		s.finish(ctx, n, "", StateFailed, err.Error(), start)
		return nil
	}

	nonce := id.NewNonce()
	if _, err := s.coordinator.SubmitIssue(ctx, n.Depositor, n.Amount, nonce); err != nil {
		// A timed-out append may still land, so the outcome wait below
		// remains meaningful. Any other submission error is final.
		if !dErrors.HasCode(err, dErrors.CodeTimeout) {
			s.finish(ctx, n, nonce, StateFailed, err.Error(), start)
			return nil
		}
	}
	s.transition(n.EventID, nonce, StateSubmitted)
	s.logAudit(ctx, "deposit_relayed",
		"event_id", n.EventID,
		"depositor", n.Depositor.String(),
		"nonce", nonce.String(),
	)

	rec, err := s.coordinator.AwaitOutcome(ctx, nonce, s.awaitTimeout)
	if err != nil {
		// Client-side timeout only: the intent stays in the log and may
		// still complete. The upstream is told FAILED; reconciliation
		// catches the case where the issue lands afterwards.
		s.finish(ctx, n, nonce, StateFailed, err.Error(), start)
		return nil
	}
	if rec.Status == coordmodels.StatusCompleted {
		s.finish(ctx, n, nonce, StateCompleted, "", start)
	} else {
		s.finish(ctx, n, nonce, StateFailed, rec.Error, start)
	}
	return nil
}

// finish publishes the terminal report and retires the delivery entry. A
// failed publish is logged and counted but does not halt the relay; the
// claim already stands, so a halt could not replay the deposit anyway.
func (s *Service) finish(ctx context.Context, n Notification, nonce id.Nonce, state State, errMsg string, start time.Time) {
	s.transition(n.EventID, nonce, state)

	report := Report{
		EventID:    n.EventID,
		Depositor:  n.Depositor,
		Nonce:      nonce,
		State:      state,
		Error:      errMsg,
		ReportedAt: time.Now().UTC(),
	}
	if err := s.reporter.Report(ctx, report); err != nil {
		s.metrics.IncrementReportFailure()
		s.logger.ErrorContext(ctx, "failed to publish deposit report",
			"event_id", n.EventID,
			"state", state.String(),
			"error", err,
		)
	}

	s.metrics.ObserveReport(state.String(), time.Since(start))
	s.logAudit(ctx, "deposit_reported",
		"event_id", n.EventID,
		"state", state.String(),
		"error", errMsg,
	)

	s.mu.Lock()
	delete(s.deliveries, n.EventID)
	s.mu.Unlock()
}

func (s *Service) track(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries[n.EventID] = &Delivery{
		EventID:   n.EventID,
		Depositor: n.Depositor,
		Amount:    n.Amount,
		State:     StateReceived,
		UpdatedAt: time.Now().UTC(),
	}
}

func (s *Service) transition(eventID string, nonce id.Nonce, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[eventID]
	if !ok {
		return
	}
	if nonce != "" {
		d.Nonce = nonce
	}
	d.State = state
	d.UpdatedAt = time.Now().UTC()
}

// Delivery returns the in-flight view of a deposit, if the relay is still
// working on it.
func (s *Service) Delivery(eventID string) (Delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[eventID]
	if !ok {
		return Delivery{}, false
	}
	return *d, true
}

// PendingCount reports how many deposits are between first sight and their
// terminal report.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
