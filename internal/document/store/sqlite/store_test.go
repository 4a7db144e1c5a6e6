package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	"docflow/internal/document/service"
	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
	"docflow/pkg/platform/sentinel"
)

type SQLiteStoreSuite struct {
	suite.Suite
	ctx       context.Context
	store     *Store
	sequences *SequenceAllocator
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := Open(s.ctx, filepath.Join(s.T().TempDir(), "docflow.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.store = New(db)
	s.sequences = NewSequenceAllocator(db)
}

func (s *SQLiteStoreSuite) newDocument(docNo string) *models.Document {
	now := time.Now().UTC()
	effective := models.TruncateDate(now.AddDate(0, 1, 0))
	approver := "director"
	return &models.Document{
		ID:            id.NewDocumentID(),
		DocType:       models.DocTypeForm,
		DocNo:         docNo,
		Subject:       "Leave form",
		Content:       "body",
		IssueDate:     models.TruncateDate(now),
		EffectiveDate: &effective,
		Status:        models.StatusApproved,
		Attachment:    &models.Attachment{Path: "forms/leave.pdf", Name: "leave.pdf", Size: 7},
		CreatedBy:     "clerk",
		ApprovedBy:    &approver,
		ApprovedAt:    &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *SQLiteStoreSuite) TestDocumentRoundTrip() {
	doc := s.newDocument("BM-001/2025")
	s.Require().NoError(s.store.Documents().Create(s.ctx, doc))

	found, err := s.store.Documents().FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.ID, found.ID)
	s.Equal(doc.DocType, found.DocType)
	s.Equal(doc.Attachment, found.Attachment)
	s.True(doc.IssueDate.Equal(found.IssueDate))
	s.True(doc.EffectiveDate.Equal(*found.EffectiveDate))
	s.True(doc.ApprovedAt.Equal(*found.ApprovedAt))
	s.True(doc.CreatedAt.Equal(found.CreatedAt))
	s.Nil(found.EmployeeID)

	found.Subject = "Renamed"
	found.Attachment = nil
	s.Require().NoError(s.store.Documents().Update(s.ctx, found))
	again, err := s.store.Documents().FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", again.Subject)
	s.Nil(again.Attachment)
}

func (s *SQLiteStoreSuite) TestConstraints() {
	s.Run("duplicate doc_no conflicts", func() {
		s.Require().NoError(s.store.Documents().Create(s.ctx, s.newDocument("BM-002/2025")))
		err := s.store.Documents().Create(s.ctx, s.newDocument("BM-002/2025"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing rows are not found", func() {
		_, err := s.store.Documents().FindByID(s.ctx, id.NewDocumentID())
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.store.Documents().Update(s.ctx, s.newDocument("BM-404/2025")), sentinel.ErrNotFound)
		s.ErrorIs(s.store.Documents().Delete(s.ctx, id.NewDocumentID()), sentinel.ErrNotFound)
		_, err = s.store.Versions().FindByID(s.ctx, id.NewDocumentID(), id.NewVersionID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("version for unknown document is rejected", func() {
		orphan := s.newDocument("BM-999/2025")
		_, err := s.store.Versions().Append(s.ctx, models.NewVersion(orphan, models.ActionEdit, "clerk", "x", time.Now()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("version rows cannot be updated", func() {
		doc := s.newDocument("BM-003/2025")
		s.Require().NoError(s.store.Documents().Create(s.ctx, doc))
		_, err := s.store.Versions().Append(s.ctx, models.NewVersion(doc, models.ActionEdit, "clerk", "x", time.Now()))
		s.Require().NoError(err)
		_, err = s.store.db.ExecContext(s.ctx, `UPDATE document_versions SET change_note = 'y'`)
		s.Error(err)
	})
}

func (s *SQLiteStoreSuite) TestVersionsPageNewestFirst() {
	doc := s.newDocument("BM-004/2025")
	s.Require().NoError(s.store.Documents().Create(s.ctx, doc))
	for i := 0; i < 5; i++ {
		n, err := s.store.Versions().Append(s.ctx, models.NewVersion(doc, models.ActionEdit, "clerk", "edit", time.Now()))
		s.Require().NoError(err)
		s.Equal(i+1, n)
	}

	page, total, err := s.store.Versions().ListByDocument(s.ctx, doc.ID, 2, 1)
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(page, 2)
	s.Equal(4, page[0].VersionNumber)
	s.Equal(3, page[1].VersionNumber)
	s.Equal(doc.Attachment, page[0].Attachment)

	s.Require().NoError(s.store.Documents().Delete(s.ctx, doc.ID))
	_, total, err = s.store.Versions().ListByDocument(s.ctx, doc.ID, 10, 0)
	s.Require().NoError(err)
	s.Zero(total, "versions cascade with their document")
}

func (s *SQLiteStoreSuite) TestRunInTxRollsBack() {
	doc := s.newDocument("BM-005/2025")
	s.Require().NoError(s.store.Documents().Create(s.ctx, doc))

	err := s.store.RunInTx(s.ctx, func(ctx context.Context, stores ports.Stores) error {
		head, err := stores.Documents.FindByIDForUpdate(ctx, doc.ID)
		if err != nil {
			return err
		}
		if _, err := stores.Versions.Append(ctx, models.NewVersion(head, models.ActionEdit, "clerk", "x", time.Now())); err != nil {
			return err
		}
		head.Subject = "changed"
		if err := stores.Documents.Update(ctx, head); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)

	head, err := s.store.Documents().FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal("Leave form", head.Subject)
	_, total, err := s.store.Versions().ListByDocument(s.ctx, doc.ID, 10, 0)
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *SQLiteStoreSuite) TestRunInTxAppliesTimeout() {
	deadlineIn := func(ctx context.Context, store *Store) time.Duration {
		var left time.Duration
		s.Require().NoError(store.RunInTx(ctx, func(ctx context.Context, _ ports.Stores) error {
			deadline, ok := ctx.Deadline()
			s.Require().True(ok, "transaction context has a deadline")
			left = time.Until(deadline)
			return nil
		}))
		return left
	}

	s.Run("default", func() {
		s.LessOrEqual(deadlineIn(s.ctx, s.store), DefaultTxTimeout)
	})

	s.Run("configured", func() {
		store := New(s.store.db, WithTxTimeout(time.Minute))
		left := deadlineIn(s.ctx, store)
		s.Greater(left, DefaultTxTimeout)
		s.LessOrEqual(left, time.Minute)
	})

	s.Run("caller deadline wins", func() {
		store := New(s.store.db, WithTxTimeout(time.Minute))
		ctx, cancel := context.WithTimeout(s.ctx, time.Second)
		defer cancel()
		s.LessOrEqual(deadlineIn(ctx, store), time.Second)
	})
}

func (s *SQLiteStoreSuite) TestSequences() {
	last, err := s.sequences.Peek(s.ctx, models.DocTypeNotice, 2025)
	s.Require().NoError(err)
	s.Zero(last)

	for want := int64(1); want <= 3; want++ {
		n, err := s.sequences.Next(s.ctx, models.DocTypeNotice, 2025)
		s.Require().NoError(err)
		s.Equal(want, n)
	}
	n, err := s.sequences.Next(s.ctx, models.DocTypeNotice, 2026)
	s.Require().NoError(err)
	s.Equal(int64(1), n, "each year has its own counter")

	last, err = s.sequences.Peek(s.ctx, models.DocTypeNotice, 2025)
	s.Require().NoError(err)
	s.Equal(int64(3), last)
}

func (s *SQLiteStoreSuite) TestServiceConcurrentTransitions() {
	svc, err := service.New(s.store.Documents(), s.store.Versions(), s.sequences, s.store)
	s.Require().NoError(err)

	doc, err := svc.Create(s.ctx, &models.CreateRequest{
		DocType:   models.DocTypeDecision,
		Subject:   "Bonus",
		Content:   "draft",
		CreatedBy: "clerk",
	})
	s.Require().NoError(err)

	// Only one submit can win; the rest see Pending and fail the transition.
	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(s.ctx, doc.ID, "clerk", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	page, err := svc.ListVersions(s.ctx, doc.ID, models.PageRequest{})
	s.Require().NoError(err)
	s.Equal(1, page.Total)
	s.Equal(models.StatusDraft, page.Versions[0].Status)
}
