package inbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/notification"
	"github.com/carebook/carebook/pkg/pagination"
)

type Service struct {
	notifications NotificationRepository
}

func NewService(notifications NotificationRepository) *Service {
	return &Service{notifications: notifications}
}

var _ notification.Sink = (*Service)(nil)

// Deliver appends msg to the recipient's inbox.
func (s *Service) Deliver(ctx context.Context, msg notification.Message) error {
	if msg.RecipientID == uuid.Nil {
		return fmt.Errorf("recipient is required")
	}
	if !msg.Severity.Valid() {
		return fmt.Errorf("invalid severity: %s", msg.Severity)
	}
	n := &Notification{
		RecipientID: msg.RecipientID,
		Message:     msg.Text,
		Severity:    string(msg.Severity),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List returns one page of the recipient's notifications and the unread count.
func (s *Service) List(ctx context.Context, recipientID uuid.UUID, pg pagination.Params) (*ListResponse, error) {
	items, total, err := s.notifications.ListByRecipient(ctx, recipientID, pg.Limit, pg.Offset)
	if err != nil {
		return nil, apperr.FromDB(err, "notifications")
	}
	if items == nil {
		items = []*Notification{}
	}
	unread, err := s.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, apperr.FromDB(err, "notifications")
	}
	return &ListResponse{Response: pagination.NewResponse(items, total, pg), Unread: unread}, nil
}

// MarkRead marks one of the recipient's notifications as read. Notifications
// of other users are reported as missing.
func (s *Service) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, id, recipientID); err != nil {
		return apperr.FromDB(err, "notification")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, apperr.FromDB(err, "notifications")
	}
	return n, nil
}
