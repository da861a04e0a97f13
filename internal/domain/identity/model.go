package identity

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProfileImage is assigned to new accounts.
const DefaultProfileImage = "https://cdn-icons-png.flaticon.com/512/149/149071.png"

// User is an account of any role. PasswordHash never leaves the service.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Phone        string    `db:"phone" json:"phone"`
	ProfileImage string    `db:"profile_image" json:"profile_image"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Identity is the read-only directory view of a user.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// AvailabilityDay lists the bookable slots of one weekday.
type AvailabilityDay struct {
	Day   string   `json:"day"`
	Slots []string `json:"slots"`
}

// PatientProfile holds patient demographics.
type PatientProfile struct {
	UserID           uuid.UUID  `db:"user_id" json:"user_id"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender           string     `db:"gender" json:"gender"`
	BloodGroup       *string    `db:"blood_group" json:"blood_group,omitempty"`
	Address          *string    `db:"address" json:"address,omitempty"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
}

// DoctorProfile is the practice profile of a doctor. Name and Email are
// joined from users on reads.
type DoctorProfile struct {
	UserID          uuid.UUID         `db:"user_id" json:"user_id"`
	Name            string            `json:"name,omitempty"`
	Email           string            `json:"email,omitempty"`
	Specialization  string            `db:"specialization" json:"specialization"`
	Qualification   string            `db:"qualification" json:"qualification"`
	Experience      int               `db:"experience" json:"experience"`
	Availability    []AvailabilityDay `db:"availability" json:"availability"`
	ApprovedByAdmin bool              `db:"approved_by_admin" json:"approved_by_admin"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// Card is the public listing entry for a doctor.
func (d *DoctorProfile) Card() DoctorCard {
	availability := d.Availability
	if availability == nil {
		availability = []AvailabilityDay{}
	}
	return DoctorCard{
		ID:             d.UserID,
		Name:           d.Name,
		Email:          d.Email,
		Specialization: d.Specialization,
		Experience:     d.Experience,
		Availability:   availability,
	}
}

// DoctorCard is what patients see when picking a doctor.
type DoctorCard struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Specialization string            `json:"specialization"`
	Experience     int               `json:"experience"`
	Availability   []AvailabilityDay `json:"availability"`
}

// AdminProfile holds an administrator's department and permissions.
type AdminProfile struct {
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Department  string    `db:"department" json:"department"`
	Permissions []string  `db:"permissions" json:"permissions"`
}

// Profile defaults applied at registration.
const (
	DefaultGender         = "Other"
	DefaultSpecialization = "General Physician"
	DefaultQualification  = "MBBS"
	DefaultDepartment     = "Operations"
)

// DefaultAdminPermissions is granted to every new admin.
var DefaultAdminPermissions = []string{"MANAGE_USERS", "VIEW_APPOINTMENTS", "VIEW_AUDIT_LOGS"}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
}

// ProfileUpdate changes contact details. Empty fields are left untouched.
type ProfileUpdate struct {
	ProfileImage string `json:"profile_image"`
	Phone        string `json:"phone"`
}

type AvailabilityUpdate struct {
	Availability []AvailabilityDay `json:"availability"`
}
