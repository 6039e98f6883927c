package versions

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Version) (*models.Version, error)
	GetByID(ctx context.Context, id int64) (*models.Version, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.Version, error)
	Update(ctx context.Context, v *models.Version) error
	Delete(ctx context.Context, id int64) error
}
