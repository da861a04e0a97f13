package document

import (
	"context"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, d *Document) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Document, error)
	// GetForPatient returns pgx.ErrNoRows when the document belongs to
	// someone else.
	GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*Document, error)
	Delete(ctx context.Context, id, patientID uuid.UUID) error
	// CountByBlob counts the documents that still reference blobID.
	CountByBlob(ctx context.Context, blobID string) (int, error)
}
