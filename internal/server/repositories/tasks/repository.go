// Package tasks persists tasks. The governing project of a task is always
// resolved through its version.
package tasks

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Task) (*models.Task, error)
	// GetByID returns the task with ProjectID resolved via its version.
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	ListByVersion(ctx context.Context, versionID int64) ([]models.Task, error)
	ListByAssignee(ctx context.Context, userID int64) ([]models.Task, error)
	// Update writes every scalar column of t.
	Update(ctx context.Context, t *models.Task) error
	UpdateStatus(ctx context.Context, id int64, status models.TaskStatus) error
	Delete(ctx context.Context, id int64) error
}
