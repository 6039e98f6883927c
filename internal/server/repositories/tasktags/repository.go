// Package tasktags persists the many-to-many link between tasks and tags.
package tasktags

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	ListByTask(ctx context.Context, taskID int64) ([]models.TaskTag, error)
	// ListTags returns the tags attached to the task.
	ListTags(ctx context.Context, taskID int64) ([]models.Tag, error)
	Add(ctx context.Context, taskID, tagID int64) error
	Remove(ctx context.Context, taskID, tagID int64) error
}
