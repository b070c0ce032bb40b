package repository

import (
	"context"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
)

// NotificationsRepository notifications table. Rows are only ever inserted and
// marked read.
type NotificationsRepository interface {
	CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	ListNotifications(ctx context.Context, userID string, filters NotificationFilters, page, size int) ([]*domain.Notification, int, error)
	CountUnread(ctx context.Context, userID, teamID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID, teamID string) (int, error)
}

// NotificationFilters inbox filters
type NotificationFilters struct {
	TeamID     string
	Type       string
	UnreadOnly bool
	IsPersonal *bool
}
