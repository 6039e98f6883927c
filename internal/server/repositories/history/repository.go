// Package history stores the append-only audit trail of task field changes.
// There is deliberately no update or delete operation.
package history

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, h *models.TaskHistory) error
	// ListByTask returns the rows newest first.
	ListByTask(ctx context.Context, taskID int64) ([]models.TaskHistory, error)
}
