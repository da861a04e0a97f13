package auditlog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/platform/apperr"
)

// RecentLimit caps the admin audit listing.
const RecentLimit = 100

type Service struct {
	entries EntryRepository
}

func NewService(entries EntryRepository) *Service {
	return &Service{entries: entries}
}

// Record appends an entry. It joins the caller's transaction when ctx
// carries one.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.UserID == uuid.Nil {
		return apperr.Validation("audit entry requires an actor")
	}
	e.Action = strings.TrimSpace(e.Action)
	if e.Action == "" {
		return apperr.Validation("audit entry requires an action")
	}
	if e.IPAddress == "" {
		e.IPAddress = DefaultIPAddress
	}
	if err := s.entries.Create(ctx, e); err != nil {
		return apperr.FromDB(err, "audit entry")
	}
	return nil
}

// ListRecent returns at most RecentLimit entries, newest first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*EntryView, error) {
	if limit <= 0 || limit > RecentLimit {
		limit = RecentLimit
	}
	items, err := s.entries.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperr.FromDB(err, "audit log")
	}
	if items == nil {
		items = []*EntryView{}
	}
	return items, nil
}
