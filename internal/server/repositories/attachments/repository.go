// Package attachments persists metadata of files attached to tasks. The
// bytes themselves live in a storage.FileStore.
package attachments

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error)
	GetByID(ctx context.Context, id int64) (*models.Attachment, error)
	ListByTask(ctx context.Context, taskID int64) ([]models.Attachment, error)
	Delete(ctx context.Context, id int64) error
}
