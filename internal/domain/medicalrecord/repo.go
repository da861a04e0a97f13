package medicalrecord

import (
	"context"

	"github.com/google/uuid"
)

// RecordRepository stores records as given; PHI columns arrive encrypted.
type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*RecordView, error)
}
