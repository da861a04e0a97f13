package auditlog

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the services.
const (
	ActionCreateMedicalRecord = "CREATE_MEDICAL_RECORD"
)

// DefaultIPAddress is stored when the client address is unknown.
const DefaultIPAddress = "127.0.0.1"

// Entry is an append-only record of a sensitive action.
type Entry struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Action    string     `db:"action" json:"action"`
	TargetID  *uuid.UUID `db:"target_id" json:"target_id,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	Timestamp time.Time  `db:"timestamp" json:"timestamp"`
}

// EntryView is an entry joined with the actor's name and role.
type EntryView struct {
	Entry
	UserName string `json:"user_name"`
	UserRole string `json:"user_role"`
}
