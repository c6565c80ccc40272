// Package orchestrator offers synchronous entry points over the asynchronous
// deposit-to-credential flow, for callers that cannot consume streams: one
// call in, one aggregated outcome out. It also carries the reconciliation
// check operators run after a FAILED execution leaves partial ledger effects.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	credmodels "tessera/internal/credential/models"
	"tessera/internal/ledger"
	"tessera/internal/platform/stream"
	"tessera/internal/relay"
	"tessera/internal/status"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// errReportFound stops the results subscription once the awaited report is in.
var errReportFound = errors.New("report found")

// StatusReader is the slice of the status facade the orchestrator reads.
type StatusReader interface {
	GetCredentialStatus(ctx context.Context, holder id.Holder) (*status.CredentialStatus, error)
	GetHistory(ctx context.Context, holder id.Holder) (*status.History, error)
}

// Outcome is the aggregated result of one deposit driven end to end.
type Outcome struct {
	EventID    string                   `json:"event_id"`
	Nonce      id.Nonce                 `json:"nonce,omitempty"`
	Completed  bool                     `json:"completed"`
	Error      string                   `json:"error,omitempty"`
	Credential *status.CredentialStatus `json:"credential,omitempty"`
}

// Check is one reconciliation comparison between store state and the ledger.
type Check struct {
	Name     string `json:"name"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
	Match    bool   `json:"match"`
}

// VerifyReport is the drift report for one holder. Reward drift can be
// legitimate movement of holder-owned units; membership drift never is.
type VerifyReport struct {
	Holder id.Holder         `json:"holder"`
	Status credmodels.Status `json:"status"`
	Checks []Check           `json:"checks"`
	Clean  bool              `json:"clean"`
}

// Service drives deposits end to end and verifies holder state.
type Service struct {
	deposits stream.Log
	results  stream.Log
	status   StatusReader
	gateway  ledger.Ledger
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTimeout bounds how long DepositAndAwait waits for the terminal report.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New constructs the orchestrator over the deposit and results streams.
func New(deposits, results stream.Log, statusReader StatusReader, gateway ledger.Ledger, opts ...Option) *Service {
	s := &Service{
		deposits: deposits,
		results:  results,
		status:   statusReader,
		gateway:  gateway,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DepositAndAwait publishes a deposit notification and blocks until the relay
// reports its terminal outcome. A FAILED outcome is a regular result, not an
// error; the error return covers infrastructure problems and the bounded
// wait expiring.
func (s *Service) DepositAndAwait(ctx context.Context, depositor id.Holder, amount int64) (*Outcome, error) {
	n := relay.Notification{
		EventID:     uuid.NewString(),
		Depositor:   depositor,
		Amount:      amount,
		DepositedAt: time.Now().UTC(),
	}
	payload, err := n.Encode()
	if err != nil {
		return nil, err
	}
	if _, err := s.deposits.Append(ctx, []byte(n.EventID), payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "publish deposit notification")
	}
	s.logInfo(ctx, "deposit published", "event_id", n.EventID, "depositor", depositor.String(), "amount", amount)

	report, err := s.awaitReport(ctx, n.EventID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		EventID:   report.EventID,
		Nonce:     report.Nonce,
		Completed: report.State == relay.StateCompleted,
		Error:     report.Error,
	}
	if out.Completed {
		if cs, err := s.status.GetCredentialStatus(ctx, depositor); err == nil {
			out.Credential = cs
		}
	}
	return out, nil
}

// awaitReport replays the results stream until the event's terminal report
// appears or the bounded wait expires.
func (s *Service) awaitReport(ctx context.Context, eventID string) (*relay.Report, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var report *relay.Report
	err := s.results.Subscribe(waitCtx, stream.PositionStart, stream.HandlerFunc(func(_ context.Context, e stream.Entry) error {
		var r relay.Report
		if err := json.Unmarshal(e.Value, &r); err != nil {
			return nil
		}
		if r.EventID != eventID {
			return nil
		}
		report = &r
		return errReportFound
	}))
	switch {
	case errors.Is(err, errReportFound):
		return report, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for deposit outcome")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "consume deposit results")
	default:
		return nil, dErrors.New(dErrors.CodeInternal, "results subscription ended without the awaited report")
	}
}

// VerifyHolder cross-checks the holder's ledger balances against quota-store
// state. Membership units must be exactly one while a credential is held and
// zero otherwise; reward units are compared against the sum of all recorded
// accruals across lifecycles.
func (s *Service) VerifyHolder(ctx context.Context, holder id.Holder) (*VerifyReport, error) {
	cs, err := s.status.GetCredentialStatus(ctx, holder)
	if err != nil {
		return nil, err
	}
	hist, err := s.status.GetHistory(ctx, holder)
	if err != nil {
		return nil, err
	}

	membership, err := s.gateway.Balance(ctx, holder.String(), ledger.TokenMembership)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedger, "query membership balance")
	}
	rewards, err := s.gateway.Balance(ctx, holder.String(), ledger.TokenReward)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedger, "query reward balance")
	}

	var expectedMembership int64
	if cs.Status == credmodels.StatusActiveAccruing || cs.Status == credmodels.StatusCapReached {
		expectedMembership = 1
	}
	var accruedTotal int64
	for _, ev := range hist.Accruals {
		accruedTotal += ev.Amount
	}

	report := &VerifyReport{
		Holder: holder,
		Status: cs.Status,
		Checks: []Check{
			{Name: "membership_units", Expected: expectedMembership, Actual: membership, Match: membership == expectedMembership},
			{Name: "reward_units", Expected: accruedTotal, Actual: rewards, Match: rewards == accruedTotal},
		},
	}
	report.Clean = true
	for _, c := range report.Checks {
		if !c.Match {
			report.Clean = false
			s.logInfo(ctx, "holder state drift",
				"holder", holder.String(),
				"check", c.Name,
				"expected", c.Expected,
				"actual", c.Actual,
			)
		}
	}
	return report, nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}
