package medicalrecord

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, patient_id, doctor_id, appointment_id, diagnosis, prescription, notes, created_at`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.AppointmentID,
		&rec.Diagnosis, &rec.Prescription, &rec.Notes, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (id, patient_id, doctor_id, appointment_id, diagnosis, prescription, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.AppointmentID, rec.Diagnosis, rec.Prescription, rec.Notes,
	).Scan(&rec.CreatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_record WHERE id = $1`, id))
}

func (r *recordRepoPG) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medical_record WHERE appointment_id = $1)`, appointmentID).Scan(&exists)
	return exists, err
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*RecordView, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT m.id, m.patient_id, m.doctor_id, m.appointment_id, m.diagnosis, m.prescription, m.notes, m.created_at,
			COALESCE(u.name, ''), COALESCE(d.specialization, ''), a.date
		FROM medical_record m
		LEFT JOIN users u ON u.id = m.doctor_id
		LEFT JOIN doctor_profile d ON d.user_id = m.doctor_id
		LEFT JOIN appointment a ON a.id = m.appointment_id
		WHERE m.patient_id = $1
		ORDER BY m.created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RecordView
	for rows.Next() {
		var v RecordView
		if err := rows.Scan(&v.ID, &v.PatientID, &v.DoctorID, &v.AppointmentID,
			&v.Diagnosis, &v.Prescription, &v.Notes, &v.CreatedAt,
			&v.DoctorName, &v.DoctorSpecialization, &v.AppointmentDate); err != nil {
			return nil, err
		}
		items = append(items, &v)
	}
	return items, rows.Err()
}
