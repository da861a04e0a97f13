package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusBooked    Status = "Booked"
	StatusApproved  Status = "Approved"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// DateLayout is the calendar date format used on the wire and in
// notification text.
const DateLayout = "2006-01-02"

// reminderDateLayout renders dates in reminder messages, e.g. "Wed May 01 2024".
const reminderDateLayout = "Mon Jan 02 2006"

// Appointment is a booking of a doctor by a patient. PatientID and DoctorID
// never change after creation.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date      time.Time `db:"date" json:"date"`
	TimeSlot  string    `db:"time_slot" json:"time_slot"`
	Reason    string    `db:"reason" json:"reason"`
	Status    Status    `db:"status" json:"status"`
	Reminded  bool      `db:"reminded" json:"reminded"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Party is the counterpart joined onto a listed appointment.
type Party struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
}

// ListItem is an appointment as listed for one participant. Doctors see the
// patient, everyone else sees the doctor.
type ListItem struct {
	Appointment
	Patient *Party `json:"patient,omitempty"`
	Doctor  *Party `json:"doctor,omitempty"`
}

// CreateRequest is the booking body. Date accepts YYYY-MM-DD or RFC 3339.
type CreateRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
	TimeSlot string `json:"timeSlot"`
	Reason   string `json:"reason"`
}

// StatusUpdate is the body of PUT /appointments/:id/status.
type StatusUpdate struct {
	Status string `json:"status"`
}
