// Package admin exposes account moderation and system overview endpoints.
// It owns no tables; every read and write goes through the identity,
// appointment and audit services.
package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/domain/auditlog"
	"github.com/carebook/carebook/internal/domain/identity"
	"github.com/carebook/carebook/internal/platform/auth"
)

// Accounts is implemented by identity.Service.
type Accounts interface {
	ListUsers(ctx context.Context, role string, limit, offset int) ([]*identity.User, int, error)
	CountByRole(ctx context.Context, role string) (int, error)
	ToggleAccess(ctx context.Context, id uuid.UUID) (*identity.User, error)
	ApproveDoctor(ctx context.Context, userID uuid.UUID) (*identity.DoctorProfile, error)
}

// AppointmentCounter is implemented by appointment.Service.
type AppointmentCounter interface {
	Count(ctx context.Context) (int, error)
}

// AuditReader is implemented by auditlog.Service.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]*auditlog.EntryView, error)
}

// Stats is the dashboard summary.
type Stats struct {
	Patients     int `json:"patients"`
	Doctors      int `json:"doctors"`
	Appointments int `json:"appointments"`
}

type Service struct {
	accounts     Accounts
	appointments AppointmentCounter
	audit        AuditReader
}

func NewService(accounts Accounts, appointments AppointmentCounter, audit AuditReader) *Service {
	return &Service{accounts: accounts, appointments: appointments, audit: audit}
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var err error
	if st.Patients, err = s.accounts.CountByRole(ctx, auth.RolePatient); err != nil {
		return nil, err
	}
	if st.Doctors, err = s.accounts.CountByRole(ctx, auth.RoleDoctor); err != nil {
		return nil, err
	}
	if st.Appointments, err = s.appointments.Count(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}

// ListUsers returns users newest first. An empty role lists everyone.
func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*identity.User, int, error) {
	users, total, err := s.accounts.ListUsers(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if users == nil {
		users = []*identity.User{}
	}
	return users, total, nil
}

func (s *Service) ToggleAccess(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return s.accounts.ToggleAccess(ctx, id)
}

func (s *Service) ApproveDoctor(ctx context.Context, id uuid.UUID) (*identity.DoctorProfile, error) {
	return s.accounts.ApproveDoctor(ctx, id)
}

func (s *Service) AuditLogs(ctx context.Context) ([]*auditlog.EntryView, error) {
	return s.audit.ListRecent(ctx, auditlog.RecentLimit)
}
