package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/db"
)

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, name, email, password_hash, role, phone, profile_image,
	is_active, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Phone,
		&u.ProfileImage, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, phone, profile_image, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Phone, u.ProfileImage, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *userRepoPG) UpdateContact(ctx context.Context, u *User) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET profile_image=$2, phone=$3, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.ProfileImage, u.Phone,
	).Scan(&u.UpdatedAt)
}

func (r *userRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET is_active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepoPG) ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	const filter = ` WHERE ($1::text = '' OR role = $1)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+filter, role).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM users`+filter+
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n)
	return n, err
}

// =========== Profile Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *profileRepoPG) CreatePatient(ctx context.Context, p *PatientProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_profile (user_id, date_of_birth, gender, blood_group, address, emergency_contact)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.UserID, p.DateOfBirth, p.Gender, p.BloodGroup, p.Address, p.EmergencyContact)
	return err
}

func (r *profileRepoPG) CreateDoctor(ctx context.Context, d *DoctorProfile) error {
	availability, err := encodeAvailability(d.Availability)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_profile (user_id, specialization, qualification, experience,
			availability, approved_by_admin)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		d.UserID, d.Specialization, d.Qualification, d.Experience, availability, d.ApprovedByAdmin,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *profileRepoPG) CreateAdmin(ctx context.Context, a *AdminProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admin_profile (user_id, department, permissions)
		VALUES ($1,$2,$3)`,
		a.UserID, a.Department, a.Permissions)
	return err
}

const doctorCols = `d.user_id, u.name, u.email, d.specialization, d.qualification, d.experience,
	d.availability, d.approved_by_admin, d.created_at, d.updated_at`

func (r *profileRepoPG) scanDoctor(row pgx.Row) (*DoctorProfile, error) {
	var d DoctorProfile
	var availability []byte
	err := row.Scan(&d.UserID, &d.Name, &d.Email, &d.Specialization, &d.Qualification,
		&d.Experience, &availability, &d.ApprovedByAdmin, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(availability, &d.Availability); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	return &d, nil
}

func (r *profileRepoPG) GetDoctor(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, `
		SELECT `+doctorCols+`
		FROM doctor_profile d JOIN users u ON u.id = d.user_id
		WHERE d.user_id = $1`, userID))
}

func (r *profileRepoPG) ListDoctors(ctx context.Context) ([]*DoctorProfile, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+doctorCols+`
		FROM doctor_profile d JOIN users u ON u.id = d.user_id
		ORDER BY u.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DoctorProfile
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *profileRepoPG) UpdateAvailability(ctx context.Context, userID uuid.UUID, availability []AvailabilityDay) error {
	encoded, err := encodeAvailability(availability)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctor_profile SET availability=$2, updated_at=NOW() WHERE user_id = $1`,
		userID, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *profileRepoPG) ApproveDoctor(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctor_profile SET approved_by_admin=TRUE, updated_at=NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func encodeAvailability(days []AvailabilityDay) ([]byte, error) {
	if days == nil {
		days = []AvailabilityDay{}
	}
	b, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("encode availability: %w", err)
	}
	return b, nil
}
