package auditlog

import "context"

type EntryRepository interface {
	Create(ctx context.Context, e *Entry) error
	// ListRecent returns the newest entries first.
	ListRecent(ctx context.Context, limit int) ([]*EntryView, error)
}
