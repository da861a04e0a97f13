package document

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/blobstore"
)

type Service struct {
	documents DocumentRepository
	blobs     blobstore.BlobStore
	logger    zerolog.Logger
}

func NewService(documents DocumentRepository, blobs blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{
		documents: documents,
		blobs:     blobs,
		logger:    logger.With().Str("component", "document").Logger(),
	}
}

// List returns the patient's documents, newest first.
func (s *Service) List(ctx context.Context, patientID uuid.UUID) ([]*Document, error) {
	items, err := s.documents.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.FromDB(err, "documents")
	}
	if items == nil {
		items = []*Document{}
	}
	return items, nil
}

// AddLink stores document metadata only. A URL served by the blob store is
// linked to its blob when the patient uploaded it.
func (s *Service) AddLink(ctx context.Context, patientID uuid.UUID, req LinkRequest) ([]*Document, error) {
	title := strings.TrimSpace(req.Title)
	url := strings.TrimSpace(req.URL)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}
	if url == "" {
		return nil, apperr.Validation("URL is required")
	}

	d := &Document{PatientID: patientID, Title: title, URL: url}
	if blobID, ok := blobstore.IDFromURL(url); ok {
		meta, err := s.blobs.GetMetadata(ctx, blobID)
		switch {
		case errors.Is(err, blobstore.ErrBlobNotFound):
			return nil, apperr.NotFound("file not found")
		case err != nil:
			return nil, apperr.Persistence("read file metadata", err)
		case meta.OwnerID != patientID.String():
			return nil, apperr.NotFound("file not found")
		}
		d.BlobID = &meta.ID
	}

	if err := s.documents.Create(ctx, d); err != nil {
		return nil, apperr.FromDB(err, "document")
	}
	return s.List(ctx, patientID)
}

// AddFile stores the uploaded bytes in the blob store and records a
// document pointing at them. An empty title falls back to the file name.
func (s *Service) AddFile(ctx context.Context, patientID uuid.UUID, title string, fh *multipart.FileHeader) ([]*Document, error) {
	meta, err := blobstore.StoreUpload(ctx, s.blobs, fh, patientID.String())
	if err != nil {
		return nil, blobstore.UploadError(err)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = meta.FileName
	}
	d := &Document{PatientID: patientID, Title: title, URL: blobstore.URLFor(meta.ID), BlobID: &meta.ID}
	if err := s.documents.Create(ctx, d); err != nil {
		if delErr := s.blobs.Delete(ctx, meta.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("blob_id", meta.ID).Msg("remove orphaned blob")
		}
		return nil, apperr.FromDB(err, "document")
	}
	return s.List(ctx, patientID)
}

// Delete removes one of the patient's documents, and its blob when no other
// document links to it.
func (s *Service) Delete(ctx context.Context, patientID, id uuid.UUID) ([]*Document, error) {
	d, err := s.documents.GetForPatient(ctx, id, patientID)
	if err != nil {
		if err = apperr.FromDB(err, "document"); apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Document not found")
		}
		return nil, err
	}
	if err := s.documents.Delete(ctx, id, patientID); err != nil {
		if err = apperr.FromDB(err, "document"); apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Document not found")
		}
		return nil, err
	}
	if d.BlobID != nil {
		s.releaseBlob(ctx, *d.BlobID)
	}
	return s.List(ctx, patientID)
}

// releaseBlob deletes the blob once no document links to it. Failures are
// logged only: the document row is already gone.
func (s *Service) releaseBlob(ctx context.Context, blobID string) {
	refs, err := s.documents.CountByBlob(ctx, blobID)
	if err != nil {
		s.logger.Error().Err(err).Str("blob_id", blobID).Msg("count blob references")
		return
	}
	if refs > 0 {
		s.logger.Debug().Str("blob_id", blobID).Int("refs", refs).Msg("blob still linked, kept")
		return
	}
	if err := s.blobs.Delete(ctx, blobID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Error().Err(err).Str("blob_id", blobID).Msg("delete document blob")
	}
}
