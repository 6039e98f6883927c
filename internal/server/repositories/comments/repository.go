package comments

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	GetByID(ctx context.Context, id int64) (*models.Comment, error)
	// ListByTask returns comments oldest first.
	ListByTask(ctx context.Context, taskID int64) ([]models.Comment, error)
	// UpdateContent replaces the text and marks the comment edited.
	UpdateContent(ctx context.Context, id int64, content string) (*models.Comment, error)
	Delete(ctx context.Context, id int64) error
}
