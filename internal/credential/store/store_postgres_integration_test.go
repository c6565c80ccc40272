//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/credential/models"
	"tessera/internal/credential/store"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "accrual_events", "termination_events", "credentials")
	s.Require().NoError(err)
}

func newTestCredential(t *testing.T, holder string, maxQuota int64) *models.Credential {
	t.Helper()
	cred, err := models.NewCredential(id.Holder(holder), maxQuota, 0, time.Now().UTC())
	if err != nil {
		t.Fatalf("new credential: %v", err)
	}
	return cred
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	cred := newTestCredential(s.T(), "holder-1", 1000)

	s.Require().NoError(s.store.Create(ctx, cred))

	found, err := s.store.FindByHolder(ctx, cred.Holder)
	s.Require().NoError(err)
	s.Equal(cred.Holder, found.Holder)
	s.Equal(int64(1000), found.MaxQuota)
	s.Equal(int64(1000), found.RemainingQuota)
	s.True(found.Active)

	_, err = s.store.FindByHolder(ctx, id.Holder("nobody"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCreateConflictAndReissue() {
	ctx := context.Background()
	cred := newTestCredential(s.T(), "holder-1", 100)
	s.Require().NoError(s.store.Create(ctx, cred))

	err := s.store.Create(ctx, newTestCredential(s.T(), "holder-1", 100))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// Terminate through Execute, then re-issue replaces the row.
	_, err = s.store.Execute(ctx, cred.Holder,
		func(c *models.Credential) error { return c.CanAccrue(100, 100) },
		func(c *models.Credential) { c.ApplyAccrual(100, time.Now().UTC()) },
	)
	s.Require().NoError(err)
	_, err = s.store.Execute(ctx, cred.Holder,
		func(c *models.Credential) error { return c.CanTerminate() },
		func(c *models.Credential) { c.ApplyTermination(time.Now().UTC()) },
	)
	s.Require().NoError(err)

	reissued, err := models.NewCredential(cred.Holder, 100, 2, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, reissued))

	found, err := s.store.FindByHolder(ctx, cred.Holder)
	s.Require().NoError(err)
	s.True(found.Active)
	s.Equal(2, found.LifecycleCount)
}

// TestConcurrentAccrual verifies that FOR UPDATE serializes quota consumption:
// with 200 units of quota and fifty 10-unit accruals, exactly twenty succeed.
func (s *PostgresStoreSuite) TestConcurrentAccrual() {
	ctx := context.Background()
	cred := newTestCredential(s.T(), "holder-1", 200)
	s.Require().NoError(s.store.Create(ctx, cred))

	const goroutines = 50
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var exceededCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, cred.Holder,
				func(c *models.Credential) error { return c.CanAccrue(10, 1000) },
				func(c *models.Credential) { c.ApplyAccrual(10, time.Now().UTC()) },
			)
			if err == nil {
				successCount.Add(1)
			} else if dErrors.HasCode(err, dErrors.CodeQuotaExceeded) {
				exceededCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(20), successCount.Load(), "exactly 20 accruals should fit the quota")
	s.Equal(int32(goroutines-20), exceededCount.Load(), "remaining accruals should exceed quota")

	found, err := s.store.FindByHolder(ctx, cred.Holder)
	s.Require().NoError(err)
	s.Equal(int64(200), found.TotalAccrued)
	s.Equal(int64(0), found.RemainingQuota)
	s.True(found.CapReached)
}

func (s *PostgresStoreSuite) TestEventJournal() {
	ctx := context.Background()
	holder := id.Holder("holder-1")
	occurred := time.Now().UTC().Truncate(time.Microsecond)

	first := &models.AccrualEvent{Holder: holder, Amount: 300, Cumulative: 300, Remaining: 700, OpNonce: id.NewNonce(), OccurredAt: occurred}
	second := &models.AccrualEvent{Holder: holder, Amount: 700, Cumulative: 1000, Remaining: 0, OpNonce: id.NewNonce(), OccurredAt: occurred.Add(time.Second)}
	s.Require().NoError(s.store.AppendAccrualEvent(ctx, first))
	s.Require().NoError(s.store.AppendAccrualEvent(ctx, second))
	s.Greater(second.ID, first.ID)

	events, err := s.store.ListAccrualEvents(ctx, holder)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(int64(300), events[0].Amount)
	s.Equal(first.OpNonce, events[0].OpNonce)
	s.Equal(occurred, events[0].OccurredAt.UTC())

	term := &models.TerminationEvent{Holder: holder, RefundAmount: 80, FeeAmount: 20, OpNonce: id.NewNonce(), OccurredAt: occurred}
	s.Require().NoError(s.store.AppendTerminationEvent(ctx, term))
	s.NotZero(term.ID)

	terms, err := s.store.ListTerminationEvents(ctx, holder)
	s.Require().NoError(err)
	s.Require().Len(terms, 1)
	s.Equal(int64(80), terms[0].RefundAmount)
}
