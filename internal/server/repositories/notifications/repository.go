// Package notifications persists durable per-user notifications.
package notifications

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	// ListByUser returns the user's notifications newest first.
	ListByUser(ctx context.Context, userID int64) ([]models.Notification, error)
	// MarkRead only touches a notification owned by userID.
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) error
	// MarkReadByToken marks the invite notification carrying token as read.
	MarkReadByToken(ctx context.Context, userID int64, token string) error
}
