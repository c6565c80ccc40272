package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/credential/models"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
)

type CredentialStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestCredentialStoreSuite(t *testing.T) {
	suite.Run(t, new(CredentialStoreSuite))
}

func (s *CredentialStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func (s *CredentialStoreSuite) newCredential(holder string, maxQuota int64) *models.Credential {
	cred, err := models.NewCredential(id.Holder(holder), maxQuota, 0, s.now)
	s.Require().NoError(err)
	return cred
}

func (s *CredentialStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds credential by holder", func() {
		cred := s.newCredential("holder-1", 1000)
		s.Require().NoError(s.store.Create(s.ctx, cred))

		found, err := s.store.FindByHolder(s.ctx, cred.Holder)
		s.Require().NoError(err)
		s.Equal(cred.Holder, found.Holder)
		s.Equal(int64(1000), found.RemainingQuota)
	})

	s.Run("returns ErrNotFound for unknown holder", func() {
		_, err := s.store.FindByHolder(s.ctx, id.Holder("nobody"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects create when active credential exists", func() {
		cred := s.newCredential("holder-2", 1000)
		s.Require().NoError(s.store.Create(s.ctx, cred))

		err := s.store.Create(s.ctx, s.newCredential("holder-2", 1000))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("replaces terminated credential on re-issue", func() {
		cred := s.newCredential("holder-3", 100)
		s.Require().NoError(cred.Accrue(100, 100, s.now))
		s.Require().NoError(cred.Terminate(s.now))
		s.Require().NoError(s.store.Create(s.ctx, cred))

		reissued, err := models.NewCredential(cred.Holder, 100, cred.LifecycleCount+1, s.now.Add(time.Hour))
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(s.ctx, reissued))

		found, err := s.store.FindByHolder(s.ctx, cred.Holder)
		s.Require().NoError(err)
		s.True(found.Active)
		s.Equal(2, found.LifecycleCount)
		s.Equal(int64(100), found.RemainingQuota)
	})

	s.Run("find returns a copy insulated from caller mutation", func() {
		cred := s.newCredential("holder-4", 1000)
		s.Require().NoError(s.store.Create(s.ctx, cred))

		found, err := s.store.FindByHolder(s.ctx, cred.Holder)
		s.Require().NoError(err)
		found.RemainingQuota = 0

		again, err := s.store.FindByHolder(s.ctx, cred.Holder)
		s.Require().NoError(err)
		s.Equal(int64(1000), again.RemainingQuota)
	})
}

func (s *CredentialStoreSuite) TestExecute() {
	s.Run("applies mutation after validation passes", func() {
		cred := s.newCredential("holder-1", 1000)
		s.Require().NoError(s.store.Create(s.ctx, cred))

		updated, err := s.store.Execute(s.ctx, cred.Holder,
			func(c *models.Credential) error { return c.CanAccrue(300, 1000) },
			func(c *models.Credential) { c.ApplyAccrual(300, s.now) },
		)
		s.Require().NoError(err)
		s.Equal(int64(300), updated.TotalAccrued)

		found, err := s.store.FindByHolder(s.ctx, cred.Holder)
		s.Require().NoError(err)
		s.Equal(int64(700), found.RemainingQuota)
	})

	s.Run("returns ErrNotFound for unknown holder", func() {
		_, err := s.store.Execute(s.ctx, id.Holder("nobody"),
			func(c *models.Credential) error { return nil },
			func(c *models.Credential) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("validation error passes through and leaves state unchanged", func() {
		cred := s.newCredential("holder-2", 100)
		s.Require().NoError(s.store.Create(s.ctx, cred))

		_, err := s.store.Execute(s.ctx, cred.Holder,
			func(c *models.Credential) error { return c.CanAccrue(500, 1000) },
			func(c *models.Credential) { c.ApplyAccrual(500, s.now) },
		)
		s.Require().Error(err)
		s.Equal(dErrors.CodeQuotaExceeded, dErrors.CodeOf(err))

		found, err := s.store.FindByHolder(s.ctx, cred.Holder)
		s.Require().NoError(err)
		s.Equal(int64(0), found.TotalAccrued)
	})

	s.Run("invariant violation blocks the commit", func() {
		cred := s.newCredential("holder-3", 100)
		s.Require().NoError(s.store.Create(s.ctx, cred))

		_, err := s.store.Execute(s.ctx, cred.Holder,
			func(c *models.Credential) error { return nil },
			func(c *models.Credential) { c.RemainingQuota = 999 },
		)
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvariantViolation, dErrors.CodeOf(err))

		found, err := s.store.FindByHolder(s.ctx, cred.Holder)
		s.Require().NoError(err)
		s.Equal(int64(100), found.RemainingQuota)
	})
}

func (s *CredentialStoreSuite) TestEventJournal() {
	s.Run("assigns IDs and lists accruals in execution order", func() {
		holder := id.Holder("holder-1")
		first := &models.AccrualEvent{Holder: holder, Amount: 300, Cumulative: 300, Remaining: 700, OpNonce: id.NewNonce(), OccurredAt: s.now}
		second := &models.AccrualEvent{Holder: holder, Amount: 700, Cumulative: 1000, Remaining: 0, OpNonce: id.NewNonce(), OccurredAt: s.now.Add(time.Minute)}

		s.Require().NoError(s.store.AppendAccrualEvent(s.ctx, first))
		s.Require().NoError(s.store.AppendAccrualEvent(s.ctx, second))
		s.Greater(second.ID, first.ID)

		events, err := s.store.ListAccrualEvents(s.ctx, holder)
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(int64(300), events[0].Amount)
		s.Equal(int64(700), events[1].Amount)
	})

	s.Run("keeps history per holder", func() {
		s.Require().NoError(s.store.AppendAccrualEvent(s.ctx, &models.AccrualEvent{Holder: "holder-a", Amount: 10}))
		s.Require().NoError(s.store.AppendAccrualEvent(s.ctx, &models.AccrualEvent{Holder: "holder-b", Amount: 20}))

		events, err := s.store.ListAccrualEvents(s.ctx, id.Holder("holder-a"))
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(int64(10), events[0].Amount)
	})

	s.Run("journals termination settlements", func() {
		holder := id.Holder("holder-1")
		ev := &models.TerminationEvent{Holder: holder, RefundAmount: 80, FeeAmount: 20, OpNonce: id.NewNonce(), OccurredAt: s.now}
		s.Require().NoError(s.store.AppendTerminationEvent(s.ctx, ev))
		s.NotZero(ev.ID)

		events, err := s.store.ListTerminationEvents(s.ctx, holder)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(int64(80), events[0].RefundAmount)
		s.Equal(int64(20), events[0].FeeAmount)
	})

	s.Run("listing an unknown holder returns empty history", func() {
		events, err := s.store.ListAccrualEvents(s.ctx, id.Holder("nobody"))
		s.Require().NoError(err)
		s.Empty(events)
	})
}

func (s *CredentialStoreSuite) TestList() {
	s.Require().NoError(s.store.Create(s.ctx, s.newCredential("zeta", 100)))
	s.Require().NoError(s.store.Create(s.ctx, s.newCredential("alpha", 100)))
	s.Require().NoError(s.store.Create(s.ctx, s.newCredential("mid", 100)))

	creds, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(creds, 3)
	s.Equal(id.Holder("alpha"), creds[0].Holder)
	s.Equal(id.Holder("mid"), creds[1].Holder)
	s.Equal(id.Holder("zeta"), creds[2].Holder)
}
