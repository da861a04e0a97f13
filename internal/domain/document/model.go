package document

import (
	"time"

	"github.com/google/uuid"
)

// Document is a file or link a patient keeps with their records. BlobID is
// set when the bytes live in the blob store.
type Document struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Title     string    `db:"title" json:"title"`
	URL       string    `db:"url" json:"url"`
	BlobID    *string   `db:"blob_id" json:"blob_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LinkRequest is the JSON form of the upload body.
type LinkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
