package appointment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const appointmentCols = `id, patient_id, doctor_id, date, time_slot, reason, status, reminded, created_at, updated_at`

// Same columns qualified for joins.
const appointmentColsA = `a.id, a.patient_id, a.doctor_id, a.date, a.time_slot, a.reason, a.status, a.reminded, a.created_at, a.updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	if err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.TimeSlot, &a.Reason,
		&status, &a.Reminded, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, date, time_slot, reason, status, reminded)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.TimeSlot, a.Reason, string(a.Status), a.Reminded,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	q := `SELECT ` + appointmentCols + ` FROM appointment WHERE id = $1`
	if db.TxFromContext(ctx) != nil {
		q += ` FOR UPDATE`
	}
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ListItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+appointmentColsA+`, u.id, u.name, u.email, u.phone
		FROM appointment a JOIN users u ON u.id = a.patient_id
		WHERE a.doctor_id = $1
		ORDER BY a.date ASC, a.created_at ASC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ListItem
	for rows.Next() {
		var it ListItem
		var status string
		p := &Party{}
		if err := rows.Scan(&it.ID, &it.PatientID, &it.DoctorID, &it.Date, &it.TimeSlot, &it.Reason,
			&status, &it.Reminded, &it.CreatedAt, &it.UpdatedAt,
			&p.ID, &p.Name, &p.Email, &p.Phone); err != nil {
			return nil, err
		}
		it.Status = Status(status)
		it.Patient = p
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ListItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+appointmentColsA+`, u.id, u.name, COALESCE(d.specialization, '')
		FROM appointment a
		JOIN users u ON u.id = a.doctor_id
		LEFT JOIN doctor_profile d ON d.user_id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.date DESC, a.created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ListItem
	for rows.Next() {
		var it ListItem
		var status string
		d := &Party{}
		if err := rows.Scan(&it.ID, &it.PatientID, &it.DoctorID, &it.Date, &it.TimeSlot, &it.Reason,
			&status, &it.Reminded, &it.CreatedAt, &it.UpdatedAt,
			&d.ID, &d.Name, &d.Specialization); err != nil {
			return nil, err
		}
		it.Status = Status(status)
		it.Doctor = d
		items = append(items, &it)
	}
	return items, rows.Err()
}

// UpdateStatus writes only the status column.
func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+appointmentCols, id, string(status)))
}

func (r *appointmentRepoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentCols, id, string(from), string(to)))
}

func (r *appointmentRepoPG) MarkReminded(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET reminded = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepoPG) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`).Scan(&n)
	return n, err
}
