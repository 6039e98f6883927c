package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
)

// NotificationService reads and acknowledges a user's own notifications.
type NotificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewNotificationService(d Deps) *NotificationService {
	return &NotificationService{db: d.DB, repomanager: d.RepoManager}
}

func (s *NotificationService) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	return s.repomanager.Notifications(s.db).ListByUser(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.repomanager.Notifications(s.db).MarkRead(ctx, notificationID, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.repomanager.Notifications(s.db).MarkAllRead(ctx, userID)
}
