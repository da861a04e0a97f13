package document

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/blobstore"
)

type mockDocumentRepo struct {
	items     map[uuid.UUID]*Document
	clock     time.Time
	createErr error
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{
		items: make(map[uuid.UUID]*Document),
		clock: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *mockDocumentRepo) Create(_ context.Context, d *Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	d.ID = uuid.New()
	m.clock = m.clock.Add(time.Minute)
	d.CreatedAt = m.clock
	cp := *d
	m.items[d.ID] = &cp
	return nil
}

func (m *mockDocumentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Document, error) {
	var result []*Document
	for _, d := range m.items {
		if d.PatientID == patientID {
			cp := *d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockDocumentRepo) GetForPatient(_ context.Context, id, patientID uuid.UUID) (*Document, error) {
	d, ok := m.items[id]
	if !ok || d.PatientID != patientID {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, id, patientID uuid.UUID) error {
	d, ok := m.items[id]
	if !ok || d.PatientID != patientID {
		return pgx.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockDocumentRepo) CountByBlob(_ context.Context, blobID string) (int, error) {
	n := 0
	for _, d := range m.items {
		if d.BlobID != nil && *d.BlobID == blobID {
			n++
		}
	}
	return n, nil
}

func newTestService() (*Service, *mockDocumentRepo, *blobstore.InMemoryBlobStore) {
	repo := newMockDocumentRepo()
	store := blobstore.NewInMemoryBlobStore(1024)
	return NewService(repo, store, zerolog.Nop()), repo, store
}

func TestService_List_Empty(t *testing.T) {
	svc, _, _ := newTestService()
	items, err := svc.List(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil list, got %v", items)
	}
}

func TestService_AddLink(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	svc.AddLink(ctx, patient, LinkRequest{Title: "X-Ray", URL: "https://files.example.com/xray.png"})
	items, err := svc.AddLink(ctx, patient, LinkRequest{Title: "Blood test", URL: "https://files.example.com/blood.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(items))
	}
	if items[0].Title != "Blood test" {
		t.Errorf("expected newest first, got %s", items[0].Title)
	}
	if items[0].BlobID != nil {
		t.Error("external link must not reference a blob")
	}
}

func TestService_AddLink_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.AddLink(ctx, uuid.New(), LinkRequest{URL: "https://x"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for missing title, got %v", err)
	}
	if _, err := svc.AddLink(ctx, uuid.New(), LinkRequest{Title: "x"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for missing url, got %v", err)
	}
}

func TestService_AddLink_LinksOwnBlob(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	meta, err := store.Upload(ctx, blobstore.BlobMetadata{FileName: "scan.pdf", ContentType: "application/pdf", OwnerID: patient.String()},
		strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	items, err := svc.AddLink(ctx, patient, LinkRequest{Title: "Scan", URL: blobstore.URLFor(meta.ID)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].BlobID == nil || *items[0].BlobID != meta.ID {
		t.Errorf("expected blob id %s, got %v", meta.ID, items[0].BlobID)
	}

	_, err = svc.AddLink(ctx, uuid.New(), LinkRequest{Title: "Stolen", URL: blobstore.URLFor(meta.ID)})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for another patient's blob, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	meta, _ := store.Upload(ctx, blobstore.BlobMetadata{FileName: "scan.pdf", ContentType: "application/pdf", OwnerID: patient.String()},
		strings.NewReader("%PDF"))
	items, err := svc.AddLink(ctx, patient, LinkRequest{Title: "Scan", URL: blobstore.URLFor(meta.ID)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err = svc.Delete(ctx, patient, items[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list, got %d", len(items))
	}
	if _, err := store.GetMetadata(ctx, meta.ID); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Errorf("expected blob to be removed, got %v", err)
	}
}

func TestService_Delete_NotOwned(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()
	items, _ := svc.AddLink(ctx, owner, LinkRequest{Title: "X", URL: "https://x"})

	_, err := svc.Delete(ctx, uuid.New(), items[0].ID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(repo.items) != 1 {
		t.Error("document of another patient must survive")
	}

	if _, err := svc.Delete(ctx, owner, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for missing document, got %v", err)
	}
}

func TestService_Delete_KeepsSharedBlob(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	meta, err := store.Upload(ctx, blobstore.BlobMetadata{FileName: "scan.pdf", ContentType: "application/pdf", OwnerID: patient.String()},
		strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := svc.AddLink(ctx, patient, LinkRequest{Title: "A", URL: blobstore.URLFor(meta.ID)}); err != nil {
		t.Fatalf("link A: %v", err)
	}
	items, err := svc.AddLink(ctx, patient, LinkRequest{Title: "B", URL: blobstore.URLFor(meta.ID)})
	if err != nil {
		t.Fatalf("link B: %v", err)
	}

	var first, second *Document
	for _, d := range items {
		switch d.Title {
		case "A":
			first = d
		case "B":
			second = d
		}
	}

	items, err = svc.Delete(ctx, patient, first.ID)
	if err != nil {
		t.Fatalf("delete A: %v", err)
	}
	if len(items) != 1 || items[0].ID != second.ID {
		t.Fatalf("expected only B to remain, got %v", items)
	}
	if _, err := store.GetMetadata(ctx, meta.ID); err != nil {
		t.Fatalf("blob still linked from B must survive, got %v", err)
	}

	if _, err := svc.Delete(ctx, patient, second.ID); err != nil {
		t.Fatalf("delete B: %v", err)
	}
	if _, err := store.GetMetadata(ctx, meta.ID); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Errorf("expected blob removed with its last document, got %v", err)
	}
}
