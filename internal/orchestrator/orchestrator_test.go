package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/coordinator"
	opstore "tessera/internal/coordinator/store"
	credmodels "tessera/internal/credential/models"
	credstore "tessera/internal/credential/store"
	"tessera/internal/ledger"
	"tessera/internal/platform/config"
	"tessera/internal/platform/stream"
	"tessera/internal/relay"
	"tessera/internal/status"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// OrchestratorSuite runs the whole deposit-to-credential pipeline on memory
// infrastructure: consensus log, deposit and results streams, ledger, and
// stores, with the real consumer and relay loops running.
type OrchestratorSuite struct {
	suite.Suite
	ctx      context.Context
	intents  *stream.MemoryLog
	deposits *stream.MemoryLog
	results  *stream.MemoryLog
	gateway  *ledger.Memory
	creds    *credstore.InMemory
	ops      *opstore.InMemory

	coordinator *coordinator.Service
	service     *Service

	cancel       context.CancelFunc
	consumerDone chan error
	relayDone    chan error
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.intents = stream.NewMemoryLog()
	s.deposits = stream.NewMemoryLog()
	s.results = stream.NewMemoryLog()
	s.gateway = ledger.NewMemory("treasury")
	s.creds = credstore.NewInMemory()
	s.ops = opstore.NewInMemory()
	s.gateway.Credit(ledger.TokenDeposit, "vault", 1000)

	cfg := config.Coordinator{
		MaxQuota:             1000,
		IssuePrice:           100,
		MaxAccrualPerRequest: 1000,
		RefundShareBps:       8000,
		FeeShareBps:          2000,
		SubmitTimeout:        time.Second,
		AwaitTimeout:         2 * time.Second,
	}
	accounts := config.Ledger{TreasuryAccount: "treasury", VaultAccount: "vault", FeeAccount: "fees"}
	s.coordinator = coordinator.New(cfg, accounts, s.intents, s.gateway, s.creds, s.ops)

	relayService := relay.New(
		config.Relay{Workers: 2, AwaitTimeout: 2 * time.Second},
		cfg.IssuePrice,
		s.deposits,
		s.coordinator,
		relay.NewMemoryDedup(time.Hour),
		relay.NewStreamReporter(s.results),
	)
	statusService := status.New(s.creds, s.ops)
	s.service = New(s.deposits, s.results, statusService, s.gateway, WithTimeout(5*time.Second))

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.consumerDone = make(chan error, 1)
	s.relayDone = make(chan error, 1)
	go func() {
		s.consumerDone <- coordinator.NewConsumer(s.coordinator, s.intents).Run(runCtx)
	}()
	go func() {
		s.relayDone <- relayService.Run(runCtx)
	}()
}

func (s *OrchestratorSuite) TearDownTest() {
	s.cancel()
	for _, done := range []chan error{s.consumerDone, s.relayDone} {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.FailNow("background loop did not stop")
		}
	}
}

func (s *OrchestratorSuite) TestDepositIssuesCredential() {
	out, err := s.service.DepositAndAwait(s.ctx, "holder-1", 100)
	s.Require().NoError(err)

	s.True(out.Completed)
	s.Empty(out.Error)
	s.False(out.Nonce.IsNil())
	s.Require().NotNil(out.Credential)
	s.Equal(credmodels.StatusActiveAccruing, out.Credential.Status)
	s.Equal(int64(1000), out.Credential.RemainingQuota)

	report, err := s.service.VerifyHolder(s.ctx, "holder-1")
	s.Require().NoError(err)
	s.True(report.Clean, "fresh issuance must reconcile: %+v", report.Checks)
}

func (s *OrchestratorSuite) TestWrongAmountFailsWithoutSideEffects() {
	out, err := s.service.DepositAndAwait(s.ctx, "holder-1", 250)
	s.Require().NoError(err)

	s.False(out.Completed)
	s.Contains(out.Error, "issuance price")
	s.Nil(out.Credential)
	s.Empty(s.gateway.Calls(), "a rejected deposit must not touch the ledger")
}

func (s *OrchestratorSuite) TestSecondDepositWhileActiveFails() {
	first, err := s.service.DepositAndAwait(s.ctx, "holder-1", 100)
	s.Require().NoError(err)
	s.Require().True(first.Completed)

	second, err := s.service.DepositAndAwait(s.ctx, "holder-1", 100)
	s.Require().NoError(err)
	s.False(second.Completed)
	s.Contains(second.Error, "active credential")
}

func (s *OrchestratorSuite) TestInvalidDepositorRejectedLocally() {
	_, err := s.service.DepositAndAwait(s.ctx, "", 100)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(0, s.deposits.Len())
}

func (s *OrchestratorSuite) TestVerifyHolderDetectsMembershipDrift() {
	out, err := s.service.DepositAndAwait(s.ctx, "holder-1", 100)
	s.Require().NoError(err)
	s.Require().True(out.Completed)

	// A membership unit that appeared outside the coordinator's sequences.
	s.gateway.Credit(ledger.TokenMembership, "holder-1", 1)

	report, err := s.service.VerifyHolder(s.ctx, "holder-1")
	s.Require().NoError(err)
	s.False(report.Clean)
	var membership *Check
	for i := range report.Checks {
		if report.Checks[i].Name == "membership_units" {
			membership = &report.Checks[i]
		}
	}
	s.Require().NotNil(membership)
	s.False(membership.Match)
	s.Equal(int64(1), membership.Expected)
	s.Equal(int64(2), membership.Actual)
}

func (s *OrchestratorSuite) TestFullLifecycleReconciles() {
	out, err := s.service.DepositAndAwait(s.ctx, "holder-1", 100)
	s.Require().NoError(err)
	s.Require().True(out.Completed)

	// Accrue to the cap; the inline termination settles the payout.
	rec, err := s.coordinator.SubmitAccrue(s.ctx, "holder-1", 1000, id.NewNonce())
	s.Require().NoError(err)
	awaited, err := s.coordinator.AwaitOutcome(s.ctx, rec.Nonce.Derive(), 5*time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(awaited.Result)
	s.Equal(int64(80), awaited.Result.RefundAmount)

	report, err := s.service.VerifyHolder(s.ctx, "holder-1")
	s.Require().NoError(err)
	s.Equal(credmodels.StatusTerminated, report.Status)
	s.True(report.Clean, "terminated holder must reconcile: %+v", report.Checks)

	refund, err := s.gateway.Balance(s.ctx, "holder-1", ledger.TokenDeposit)
	s.Require().NoError(err)
	s.Equal(int64(80), refund)

	// The holder can go around again.
	again, err := s.service.DepositAndAwait(s.ctx, "holder-1", 100)
	s.Require().NoError(err)
	s.True(again.Completed)
	s.Require().NotNil(again.Credential)
	s.Equal(2, again.Credential.LifecycleCount)
}
