package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/coordinator/intent"
	"tessera/internal/coordinator/models"
	"tessera/internal/platform/stream"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

type OperationStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestOperationStoreSuite(t *testing.T) {
	suite.Run(t, new(OperationStoreSuite))
}

func (s *OperationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func (s *OperationStoreSuite) newRecord(typ intent.Type) *models.OperationRecord {
	rec, err := models.NewOperationRecord(id.NewNonce(), typ, s.now)
	s.Require().NoError(err)
	return rec
}

func (s *OperationStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds record by nonce", func() {
		rec := s.newRecord(intent.TypeIssue)
		s.Require().NoError(s.store.Create(s.ctx, rec))

		found, err := s.store.FindByNonce(s.ctx, rec.Nonce)
		s.Require().NoError(err)
		s.Equal(rec.Nonce, found.Nonce)
		s.Equal(models.StatusSubmitted, found.Status)
	})

	s.Run("rejects duplicate nonce", func() {
		rec := s.newRecord(intent.TypeAccrue)
		s.Require().NoError(s.store.Create(s.ctx, rec))

		err := s.store.Create(s.ctx, rec)
		s.Require().ErrorIs(err, sentinel.ErrDuplicate)
	})

	s.Run("returns ErrNotFound for unknown nonce", func() {
		_, err := s.store.FindByNonce(s.ctx, id.NewNonce())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("find returns a copy insulated from caller mutation", func() {
		rec := s.newRecord(intent.TypeIssue)
		rec.MarkExecuting(5, s.now)
		rec.MarkCompleted(&models.Result{Holder: "holder-1", Steps: []string{"mint"}}, s.now)
		s.Require().NoError(s.store.Create(s.ctx, rec))

		found, err := s.store.FindByNonce(s.ctx, rec.Nonce)
		s.Require().NoError(err)
		found.Result.Steps[0] = "tampered"
		*found.ConsensusPosition = 99

		again, err := s.store.FindByNonce(s.ctx, rec.Nonce)
		s.Require().NoError(err)
		s.Equal("mint", again.Result.Steps[0])
		s.Equal(int64(5), *again.ConsensusPosition)
	})
}

func (s *OperationStoreSuite) TestUpdate() {
	s.Run("persists status transitions", func() {
		rec := s.newRecord(intent.TypeAccrue)
		s.Require().NoError(s.store.Create(s.ctx, rec))

		rec.MarkExecuting(11, s.now.Add(time.Second))
		s.Require().NoError(s.store.Update(s.ctx, rec))

		rec.MarkCompleted(&models.Result{Holder: "holder-1", TotalAccrued: 300, RemainingQuota: 700}, s.now.Add(2*time.Second))
		s.Require().NoError(s.store.Update(s.ctx, rec))

		found, err := s.store.FindByNonce(s.ctx, rec.Nonce)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, found.Status)
		s.Equal(int64(11), *found.ConsensusPosition)
		s.Equal(int64(300), found.Result.TotalAccrued)
	})

	s.Run("returns ErrNotFound for unknown record", func() {
		rec := s.newRecord(intent.TypeIssue)
		err := s.store.Update(s.ctx, rec)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *OperationStoreSuite) TestResumePosition() {
	s.Run("empty store resumes from the start", func() {
		pos, err := s.store.ResumePosition(s.ctx)
		s.Require().NoError(err)
		s.Equal(stream.PositionStart, pos)
	})

	s.Run("all terminal resumes past the highest position", func() {
		for i, typ := range []intent.Type{intent.TypeIssue, intent.TypeAccrue} {
			rec := s.newRecord(typ)
			rec.MarkExecuting(int64(i+3), s.now)
			rec.MarkCompleted(&models.Result{Holder: "holder-1"}, s.now)
			s.Require().NoError(s.store.Create(s.ctx, rec))
		}

		pos, err := s.store.ResumePosition(s.ctx)
		s.Require().NoError(err)
		s.Equal(stream.Position(5), pos)
	})

	s.Run("unfinished record wins over terminal ones", func() {
		done := s.newRecord(intent.TypeAccrue)
		done.MarkExecuting(7, s.now)
		done.MarkFailed(nil, "gateway unavailable", s.now)
		s.Require().NoError(s.store.Create(s.ctx, done))

		stuck := s.newRecord(intent.TypeAccrue)
		stuck.MarkExecuting(4, s.now)
		s.Require().NoError(s.store.Create(s.ctx, stuck))

		pos, err := s.store.ResumePosition(s.ctx)
		s.Require().NoError(err)
		s.Equal(stream.Position(4), pos)
	})

	s.Run("records without positions are ignored", func() {
		// Sibling subtests share the suite store; this check needs a store
		// whose only record is positionless.
		s.store = NewInMemory()
		s.Require().NoError(s.store.Create(s.ctx, s.newRecord(intent.TypeIssue)))

		pos, err := s.store.ResumePosition(s.ctx)
		s.Require().NoError(err)
		s.Equal(stream.PositionStart, pos)
	})
}

func (s *OperationStoreSuite) TestListByStatuses() {
	submitted := s.newRecord(intent.TypeIssue)
	s.Require().NoError(s.store.Create(s.ctx, submitted))

	failed := s.newRecord(intent.TypeAccrue)
	failed.MarkExecuting(1, s.now)
	failed.MarkFailed(nil, "gateway unavailable", s.now.Add(time.Minute))
	s.Require().NoError(s.store.Create(s.ctx, failed))

	completed := s.newRecord(intent.TypeAccrue)
	completed.MarkExecuting(2, s.now)
	completed.MarkCompleted(&models.Result{Holder: "holder-1"}, s.now.Add(2*time.Minute))
	s.Require().NoError(s.store.Create(s.ctx, completed))

	s.Run("filters by status set", func() {
		out, err := s.store.ListByStatuses(s.ctx, []models.OperationStatus{models.StatusFailed, models.StatusSubmitted})
		s.Require().NoError(err)
		s.Require().Len(out, 2)
		// Most recently updated first.
		s.Equal(failed.Nonce, out[0].Nonce)
		s.Equal(submitted.Nonce, out[1].Nonce)
	})

	s.Run("empty filter matches nothing", func() {
		out, err := s.store.ListByStatuses(s.ctx, nil)
		s.Require().NoError(err)
		s.Empty(out)
	})
}
