package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/db"
)

const minPasswordLength = 6

// PasswordHasher is satisfied by auth.PasswordHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

// TokenIssuer is satisfied by auth.TokenIssuer.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role, name string) (string, time.Time, error)
}

type Service struct {
	users    UserRepository
	profiles ProfileRepository
	tx       db.TxRunner
	hasher   PasswordHasher
	tokens   TokenIssuer
	logger   zerolog.Logger
}

func NewService(
	users UserRepository,
	profiles ProfileRepository,
	tx db.TxRunner,
	hasher PasswordHasher,
	tokens TokenIssuer,
	logger zerolog.Logger,
) *Service {
	return &Service{
		users:    users,
		profiles: profiles,
		tx:       tx,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger.With().Str("component", "identity").Logger(),
	}
}

// roleProfile carries the profile row created together with a user. Only the
// field matching the user's role is used.
type roleProfile struct {
	patient *PatientProfile
	doctor  *DoctorProfile
	admin   *AdminProfile
}

func defaultProfile(role string) roleProfile {
	switch role {
	case auth.RolePatient:
		return roleProfile{patient: &PatientProfile{Gender: DefaultGender}}
	case auth.RoleDoctor:
		return roleProfile{doctor: &DoctorProfile{
			Specialization: DefaultSpecialization,
			Qualification:  DefaultQualification,
			Availability:   []AvailabilityDay{},
		}}
	default:
		perms := make([]string, len(DefaultAdminPermissions))
		copy(perms, DefaultAdminPermissions)
		return roleProfile{admin: &AdminProfile{Department: DefaultDepartment, Permissions: perms}}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(req *RegisterRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.Name == "" {
		return apperr.Validation("Name is required")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return apperr.Validation("Please include a valid email")
	}
	if len(req.Password) < minPasswordLength {
		return apperr.Validation("Please enter a password with 6 or more characters")
	}
	if !auth.ValidRole(req.Role) {
		return apperr.Validation("Role must be patient, doctor or admin")
	}
	if req.Phone == "" {
		return apperr.Validation("Phone number is required")
	}
	return nil
}

// Register creates the account and its role profile in one transaction and
// returns a session token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := validateRegistration(&req); err != nil {
		return nil, err
	}
	u := &User{Name: req.Name, Email: req.Email, Role: req.Role, Phone: req.Phone}
	if err := s.createAccount(ctx, u, req.Password, defaultProfile(req.Role)); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("account registered")
	return s.issue(u)
}

func (s *Service) createAccount(ctx context.Context, u *User, password string, profile roleProfile) error {
	if _, err := s.users.GetByEmail(ctx, u.Email); err == nil {
		return apperr.Conflict("User already exists")
	} else if err = apperr.FromDB(err, "user"); !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperr.Persistence("hash password", err)
	}
	u.PasswordHash = hash
	u.IsActive = true
	if u.ProfileImage == "" {
		u.ProfileImage = DefaultProfileImage
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		switch {
		case profile.patient != nil:
			profile.patient.UserID = u.ID
			return s.profiles.CreatePatient(ctx, profile.patient)
		case profile.doctor != nil:
			profile.doctor.UserID = u.ID
			return s.profiles.CreateDoctor(ctx, profile.doctor)
		case profile.admin != nil:
			profile.admin.UserID = u.ID
			return s.profiles.CreateAdmin(ctx, profile.admin)
		}
		return nil
	})
	if err != nil {
		err = apperr.FromDB(err, "user")
		if apperr.Is(err, apperr.KindConflict) {
			return apperr.Conflict("User already exists")
		}
		return err
	}
	return nil
}

// Login verifies credentials. Unknown emails and wrong passwords produce the
// same error.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("Please include a valid email")
	}
	if req.Password == "" {
		return nil, apperr.Validation("Password is required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err = apperr.FromDB(err, "user"); apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("Invalid Credentials")
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(u.PasswordHash, req.Password)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID.String()).Msg("stored password hash is unusable")
		return nil, apperr.Unauthorized("Invalid Credentials")
	}
	if !ok {
		return nil, apperr.Unauthorized("Invalid Credentials")
	}
	if !u.IsActive {
		return nil, apperr.Forbidden("account is deactivated")
	}
	return s.issue(u)
}

func (s *Service) issue(u *User) (*AuthResponse, error) {
	token, exp, err := s.tokens.Issue(u.ID, u.Role, u.Name)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInternal, Code: apperr.CodeInternal, Message: "issue token", Err: err}
	}
	return &AuthResponse{Token: token, ExpiresAt: exp, Role: u.Role, UserID: u.ID, Name: u.Name}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return u, nil
}

// UpdateProfile changes the image and phone. Empty values are ignored.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(upd.ProfileImage); v != "" {
		u.ProfileImage = v
	}
	if v := strings.TrimSpace(upd.Phone); v != "" {
		u.Phone = v
	}
	if err := s.users.UpdateContact(ctx, u); err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return u, nil
}

// -- Doctors --

func (s *Service) ListDoctors(ctx context.Context) ([]DoctorCard, error) {
	doctors, err := s.profiles.ListDoctors(ctx)
	if err != nil {
		return nil, apperr.FromDB(err, "doctors")
	}
	cards := make([]DoctorCard, 0, len(doctors))
	for _, d := range doctors {
		cards = append(cards, d.Card())
	}
	return cards, nil
}

func (s *Service) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	d, err := s.profiles.GetDoctor(ctx, userID)
	if err != nil {
		if err = apperr.FromDB(err, "doctor profile"); apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Doctor profile not found")
		}
		return nil, err
	}
	return d, nil
}

func validWeekday(day string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == day {
			return true
		}
	}
	return false
}

// UpdateAvailability replaces the calling doctor's weekly slots.
func (s *Service) UpdateAvailability(ctx context.Context, caller auth.Caller, days []AvailabilityDay) (*DoctorProfile, error) {
	if caller.Role != auth.RoleDoctor {
		return nil, apperr.Forbidden("Not authorized")
	}
	for i := range days {
		if !validWeekday(days[i].Day) {
			return nil, apperr.Validation("invalid day %q", days[i].Day)
		}
		if days[i].Slots == nil {
			days[i].Slots = []string{}
		}
	}
	if days == nil {
		days = []AvailabilityDay{}
	}

	if err := s.profiles.UpdateAvailability(ctx, caller.ID, days); err != nil {
		if err = apperr.FromDB(err, "doctor profile"); apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Doctor profile not found")
		}
		return nil, err
	}
	return s.GetDoctorProfile(ctx, caller.ID)
}

// -- Directory --

// Lookup returns the directory view of one user.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Identity, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: u.ID, Name: u.Name, Role: u.Role}, nil
}

// IsActive reports whether id may keep using tokens issued to it. A missing
// account is reported as inactive.
func (s *Service) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := s.GetUser(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsActive, nil
}

// ListIdentitiesByRole returns one page of users holding role.
func (s *Service) ListIdentitiesByRole(ctx context.Context, role string, limit, offset int) ([]Identity, int, error) {
	users, total, err := s.users.ListByRole(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, apperr.FromDB(err, "users")
	}
	out := make([]Identity, 0, len(users))
	for _, u := range users {
		out = append(out, Identity{ID: u.ID, Name: u.Name, Role: u.Role})
	}
	return out, total, nil
}

// -- Administration --

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !auth.ValidRole(role) {
		return nil, 0, apperr.Validation("invalid role %q", role)
	}
	users, total, err := s.users.ListByRole(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, apperr.FromDB(err, "users")
	}
	return users, total, nil
}

func (s *Service) CountByRole(ctx context.Context, role string) (int, error) {
	n, err := s.users.CountByRole(ctx, role)
	if err != nil {
		return 0, apperr.FromDB(err, "users")
	}
	return n, nil
}

// ToggleAccess flips is_active and returns the updated user.
func (s *Service) ToggleAccess(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	u.IsActive = !u.IsActive
	if err := s.users.SetActive(ctx, u.ID, u.IsActive); err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	s.logger.Info().Str("user_id", u.ID.String()).Bool("is_active", u.IsActive).Msg("account access changed")
	return u, nil
}

// ApproveDoctor marks the doctor approved and re-activates the account.
func (s *Service) ApproveDoctor(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.ApproveDoctor(ctx, userID); err != nil {
			return err
		}
		return s.users.SetActive(ctx, userID, true)
	})
	if err != nil {
		if err = apperr.FromDB(err, "doctor profile"); apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Doctor profile not found")
		}
		return nil, err
	}
	return s.GetDoctorProfile(ctx, userID)
}
