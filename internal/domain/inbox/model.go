package inbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/pkg/pagination"
)

// Notification is one inbox row. Only Read changes after creation.
type Notification struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Message     string    `db:"message" json:"message"`
	Severity    string    `db:"severity" json:"severity"`
	Read        bool      `db:"read" json:"read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ListResponse is a page of notifications plus the caller's unread count.
type ListResponse struct {
	*pagination.Response
	Unread int `json:"unread"`
}
