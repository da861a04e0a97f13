package appointment

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetForUpdate locks the row when ctx carries a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ListItem, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ListItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error)
	// TransitionStatus writes to only while the row is still in from. It
	// returns pgx.ErrNoRows when the row is missing or has moved on.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID) error
	CountAll(ctx context.Context) (int, error)
}
