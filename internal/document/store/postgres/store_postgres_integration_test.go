//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	"docflow/internal/document/service"
	"docflow/internal/document/store/postgres"
	"docflow/internal/platform/database"
	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
	"docflow/pkg/platform/sentinel"
	"docflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *postgres.Store
	sequences *postgres.SequenceAllocator
	svc       *service.Service
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
	s.Require().NoError(postgres.Migrate(context.Background(), s.postgres.DB))

	s.store = postgres.New(s.postgres.DB)
	s.sequences = postgres.NewSequenceAllocator(s.postgres.DB)
	svc, err := service.New(s.store.Documents(), s.store.Versions(), s.sequences, s.store)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "document_versions", "documents", "document_sequences")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newDocument(docNo string) *models.Document {
	now := time.Now().UTC().Truncate(time.Microsecond)
	effective := models.TruncateDate(now.AddDate(0, 0, 7))
	employee := "E-17"
	return &models.Document{
		ID:            id.NewDocumentID(),
		DocType:       models.DocTypeContract,
		DocNo:         docNo,
		Subject:       "Lease",
		Content:       "terms",
		IssueDate:     models.TruncateDate(now),
		EffectiveDate: &effective,
		Status:        models.StatusDraft,
		Attachment:    &models.Attachment{Path: "docs/a.pdf", Name: "a.pdf", Size: 42, MimeType: "application/pdf"},
		EmployeeID:    &employee,
		CreatedBy:     "clerk",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *PostgresStoreSuite) TestDocumentRoundTrip() {
	ctx := context.Background()
	doc := s.newDocument("HĐ-001/2025")
	s.Require().NoError(s.store.Documents().Create(ctx, doc))

	found, err := s.store.Documents().FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.DocNo, found.DocNo)
	s.Equal(doc.Attachment, found.Attachment)
	s.Equal(*doc.EmployeeID, *found.EmployeeID)
	s.True(doc.IssueDate.Equal(found.IssueDate))
	s.True(doc.EffectiveDate.Equal(*found.EffectiveDate))
	s.Nil(found.ApprovedBy)

	err = s.store.Documents().Create(ctx, s.newDocument("HĐ-001/2025"))
	s.ErrorIs(err, sentinel.ErrConflict, "doc_no is unique")

	_, err = s.store.Documents().FindByID(ctx, id.NewDocumentID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteCascadesToVersions() {
	ctx := context.Background()
	doc := s.newDocument("HĐ-002/2025")
	s.Require().NoError(s.store.Documents().Create(ctx, doc))
	_, err := s.store.Versions().Append(ctx, models.NewVersion(doc, models.ActionEdit, "clerk", "edit", time.Now()))
	s.Require().NoError(err)

	s.Require().NoError(s.store.Documents().Delete(ctx, doc.ID))

	versions, total, err := s.store.Versions().ListByDocument(ctx, doc.ID, 10, 0)
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(versions)
}

func (s *PostgresStoreSuite) TestVersionRowsAreImmutable() {
	ctx := context.Background()
	doc := s.newDocument("HĐ-003/2025")
	s.Require().NoError(s.store.Documents().Create(ctx, doc))
	_, err := s.store.Versions().Append(ctx, models.NewVersion(doc, models.ActionEdit, "clerk", "edit", time.Now()))
	s.Require().NoError(err)

	_, err = s.postgres.DB.ExecContext(ctx, `UPDATE document_versions SET change_note = 'rewritten'`)
	s.Error(err)
}

func (s *PostgresStoreSuite) TestRollbackLeavesNoVersion() {
	ctx := context.Background()
	doc := s.newDocument("HĐ-004/2025")
	s.Require().NoError(s.store.Documents().Create(ctx, doc))

	err := s.store.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		head, err := stores.Documents.FindByIDForUpdate(ctx, doc.ID)
		if err != nil {
			return err
		}
		if _, err := stores.Versions.Append(ctx, models.NewVersion(head, models.ActionEdit, "clerk", "edit", time.Now())); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, total, err := s.store.Versions().ListByDocument(ctx, doc.ID, 10, 0)
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *PostgresStoreSuite) TestSequenceAllocatorIsUniqueUnderContention() {
	ctx := context.Background()
	const workers = 40

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.sequences.Next(ctx, models.DocTypeDecision, 2025)
			s.NoError(err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(seen, workers)
	for n := int64(1); n <= workers; n++ {
		s.True(seen[n], "number %d issued", n)
	}
	last, err := s.sequences.Peek(ctx, models.DocTypeDecision, 2025)
	s.Require().NoError(err)
	s.Equal(int64(workers), last)

	other, err := s.sequences.Peek(ctx, models.DocTypeNotice, 2025)
	s.Require().NoError(err)
	s.Zero(other)
}

func (s *PostgresStoreSuite) TestServiceLifecycle() {
	ctx := context.Background()
	doc, err := s.svc.Create(ctx, &models.CreateRequest{
		DocType:   models.DocTypeDecision,
		Subject:   "Appointment",
		Content:   "v1",
		IssueDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedBy: "clerk",
	})
	s.Require().NoError(err)
	s.Equal("QĐ-001/2025", doc.DocNo)

	for _, step := range []func(context.Context, id.DocumentID, string, string) (*models.Document, error){
		s.svc.Submit, s.svc.Approve, s.svc.Publish, s.svc.Archive,
	} {
		_, err := step(ctx, doc.ID, "manager", "")
		s.Require().NoError(err)
	}

	head, err := s.svc.Get(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, head.Status)
	s.Require().NotNil(head.ApprovedBy)
	s.Equal("manager", *head.ApprovedBy)

	page, err := s.svc.ListVersions(ctx, doc.ID, models.PageRequest{})
	s.Require().NoError(err)
	s.Equal(4, page.Total)
	s.Equal(4, page.Versions[0].VersionNumber)
	s.Equal(models.ActionArchive, page.Versions[0].Action)
	s.Equal(models.StatusPublished, page.Versions[0].Status)

	_, err = s.svc.Submit(ctx, doc.ID, "manager", "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *PostgresStoreSuite) TestConcurrentEditsProduceGaplessHistory() {
	ctx := context.Background()
	doc, err := s.svc.Create(ctx, &models.CreateRequest{
		DocType:   models.DocTypeNotice,
		Subject:   "Holiday",
		Content:   "draft",
		CreatedBy: "clerk",
	})
	s.Require().NoError(err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content := "edit"
			_, err := s.svc.Update(ctx, doc.ID, &models.UpdateRequest{Content: &content, ChangeNote: "concurrent"}, "clerk")
			s.NoError(err)
		}()
	}
	wg.Wait()

	page, err := s.svc.ListVersions(ctx, doc.ID, models.PageRequest{Limit: models.MaxPageLimit})
	s.Require().NoError(err)
	s.Equal(writers, page.Total)
	for i, v := range page.Versions {
		s.Equal(writers-i, v.VersionNumber)
	}
}

func (s *PostgresStoreSuite) TestLibPQDriverClassifiesErrors() {
	ctx := context.Background()
	db, err := database.Open(ctx, s.postgres.DSN, database.Options{Driver: database.DriverPQ, MaxOpenConns: 4})
	s.Require().NoError(err)
	defer db.Close()

	store := postgres.New(db)
	doc := s.newDocument("HĐ-010/2025")
	s.Require().NoError(store.Documents().Create(ctx, doc))

	err = store.Documents().Create(ctx, s.newDocument("HĐ-010/2025"))
	s.ErrorIs(err, sentinel.ErrConflict)

	missing := s.newDocument("HĐ-011/2025")
	s.ErrorIs(store.Documents().Update(ctx, missing), sentinel.ErrNotFound)

	orphan := models.NewVersion(missing, models.ActionEdit, "clerk", "edit", time.Now())
	_, err = store.Versions().Append(ctx, orphan)
	s.ErrorIs(err, sentinel.ErrNotFound, "foreign key violation")

	n, err := postgres.NewSequenceAllocator(db).Next(ctx, models.DocTypeContract, 2025)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}
