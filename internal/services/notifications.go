package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// NotificationService is the notification sink plus the owner's inbox.
type NotificationService struct {
	users UserStore
	store NotificationStore
	now   func() time.Time
}

func NewNotificationService(users UserStore, store NotificationStore) *NotificationService {
	return &NotificationService{
		users: users,
		store: store,
		now:   time.Now,
	}
}

// Notify appends an unread entry to the owner's inbox. A missing owner is
// not an error: the call reports false and nothing is written.
func (s *NotificationService) Notify(ctx context.Context, ownerID string, msg Message) (bool, error) {
	if _, err := s.users.GetUser(ctx, ownerID); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			log.FromContext(ctx, log.ComponentNotify).WarnContext(ctx, "Owner lookup failed, dropping notification",
				log.FieldOwnerID, ownerID, log.FieldError, err)
		}
		return false, nil
	}

	now := s.now()
	n := core.Notification{
		ID:            core.NewID(),
		OwnerID:       ownerID,
		Description:   msg.Description,
		TransactionID: msg.TransactionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return false, fmt.Errorf("save notification: %w", err)
	}

	log.FromContext(ctx, log.ComponentNotify).DebugContext(ctx, "Notification stored",
		log.FieldOwnerID, ownerID, "notification_id", n.ID)
	return true, nil
}

func (s *NotificationService) List(ctx context.Context, ownerID string, f core.NotificationFilter, opts core.ListOptions) ([]core.Notification, error) {
	return s.store.ListNotifications(ctx, ownerID, f, opts.Normalize())
}

// Update applies patch to one of the owner's notifications.
func (s *NotificationService) Update(ctx context.Context, ownerID, id string, patch core.NotificationPatch) (core.Notification, error) {
	n, err := s.store.GetNotification(ctx, ownerID, id)
	if err != nil {
		return core.Notification{}, err
	}
	if patch.Read != nil {
		n.Read = *patch.Read
	}
	n.UpdatedAt = s.now()
	if err := s.store.SaveNotification(ctx, n); err != nil {
		return core.Notification{}, fmt.Errorf("update notification: %w", err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteNotification(ctx, ownerID, id)
}
