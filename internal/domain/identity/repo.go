package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateContact(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// ListByRole returns users newest first. An empty role lists every user.
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	CountByRole(ctx context.Context, role string) (int, error)
}

type ProfileRepository interface {
	CreatePatient(ctx context.Context, p *PatientProfile) error
	CreateDoctor(ctx context.Context, d *DoctorProfile) error
	CreateAdmin(ctx context.Context, a *AdminProfile) error
	GetDoctor(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
	ListDoctors(ctx context.Context) ([]*DoctorProfile, error)
	UpdateAvailability(ctx context.Context, userID uuid.UUID, availability []AvailabilityDay) error
	ApproveDoctor(ctx context.Context, userID uuid.UUID) error
}
