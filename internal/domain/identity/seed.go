package identity

import (
	"context"
	"time"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
)

// DemoPassword is shared by every demo account.
const DemoPassword = "password123"

// SeedAccount is a user plus the profile row for its role.
type SeedAccount struct {
	User    User
	Patient *PatientProfile
	Doctor  *DoctorProfile
	Admin   *AdminProfile
}

func strPtr(s string) *string { return &s }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// DemoAccounts returns one admin, two doctors and two patients.
func DemoAccounts() []SeedAccount {
	return []SeedAccount{
		{
			User: User{Name: "Super Admin", Email: "admin@hospital.com", Role: auth.RoleAdmin, Phone: "9999999999"},
			Admin: &AdminProfile{
				Department:  "IT & Operations",
				Permissions: []string{"MANAGE_USERS", "VIEW_APPOINTMENTS", "VIEW_AUDIT_LOGS"},
			},
		},
		{
			User: User{Name: "Dr. Sarah Smith", Email: "sarah@hospital.com", Role: auth.RoleDoctor, Phone: "8888888888"},
			Doctor: &DoctorProfile{
				Specialization:  "Cardiology",
				Qualification:   "MD, FACC",
				Experience:      15,
				ApprovedByAdmin: true,
				Availability: []AvailabilityDay{
					{Day: "Monday", Slots: []string{"09:00 - 09:30", "09:30 - 10:00", "10:00 - 10:30"}},
					{Day: "Wednesday", Slots: []string{"09:00 - 09:30", "09:30 - 10:00"}},
				},
			},
		},
		{
			User: User{Name: "Dr. John Doe", Email: "john@hospital.com", Role: auth.RoleDoctor, Phone: "7777777777"},
			Doctor: &DoctorProfile{
				Specialization:  "Pediatrics",
				Qualification:   "MBBS, MD",
				Experience:      8,
				ApprovedByAdmin: true,
				Availability: []AvailabilityDay{
					{Day: "Tuesday", Slots: []string{"14:00 - 14:30", "14:30 - 15:00"}},
					{Day: "Thursday", Slots: []string{"14:00 - 14:30", "14:30 - 15:00"}},
				},
			},
		},
		{
			User: User{Name: "Rahul Kumar", Email: "rahul@gmail.com", Role: auth.RolePatient, Phone: "9876543210"},
			Patient: &PatientProfile{
				DateOfBirth:      datePtr(1990, time.May, 15),
				Gender:           "Male",
				BloodGroup:       strPtr("B+"),
				Address:          strPtr("123, Main St, Delhi"),
				EmergencyContact: strPtr("9123456780"),
			},
		},
		{
			User: User{Name: "Neha Gupta", Email: "neha@gmail.com", Role: auth.RolePatient, Phone: "9876543211"},
			Patient: &PatientProfile{
				DateOfBirth:      datePtr(1995, time.October, 20),
				Gender:           "Female",
				BloodGroup:       strPtr("O+"),
				Address:          strPtr("456, Park Ave, Mumbai"),
				EmergencyContact: strPtr("9123456789"),
			},
		},
	}
}

// Seed creates the accounts that do not exist yet and returns how many were
// created. Existing emails are skipped.
func (s *Service) Seed(ctx context.Context, password string, accounts []SeedAccount) (int, error) {
	created := 0
	for _, acc := range accounts {
		u := acc.User
		u.Email = normalizeEmail(u.Email)

		profile := roleProfile{patient: acc.Patient, doctor: acc.Doctor, admin: acc.Admin}
		if profile.patient == nil && profile.doctor == nil && profile.admin == nil {
			profile = defaultProfile(u.Role)
		}

		err := s.createAccount(ctx, &u, password, profile)
		if apperr.Is(err, apperr.KindConflict) {
			s.logger.Info().Str("email", u.Email).Msg("seed account exists, skipping")
			continue
		}
		if err != nil {
			return created, err
		}
		s.logger.Info().Str("email", u.Email).Str("role", u.Role).Msg("seed account created")
		created++
	}
	return created, nil
}
