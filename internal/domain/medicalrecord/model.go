package medicalrecord

import (
	"time"

	"github.com/google/uuid"
)

// Record is the consultation outcome of exactly one appointment. It is never
// modified after creation. Diagnosis, Prescription and Notes are PHI.
type Record struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Diagnosis     string    `db:"diagnosis" json:"diagnosis"`
	Prescription  string    `db:"prescription" json:"prescription"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// RecordView is a record in the patient's history.
type RecordView struct {
	Record
	DoctorName           string     `json:"doctor_name"`
	DoctorSpecialization string     `json:"doctor_specialization"`
	AppointmentDate      *time.Time `json:"appointment_date,omitempty"`
}

// CreateRequest is the body of POST /medical-records.
type CreateRequest struct {
	AppointmentID string `json:"appointmentId"`
	Diagnosis     string `json:"diagnosis"`
	Prescription  string `json:"prescription"`
	Notes         string `json:"notes"`
}
