// Package projects persists projects and derives their progress from the
// tasks of their versions.
package projects

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Project) (*models.Project, error)
	GetByID(ctx context.Context, id int64) (*models.Project, error)
	// ListForUser returns projects the user created or is an accepted member
	// of, newest first, with Progress filled in.
	ListForUser(ctx context.Context, userID int64) ([]models.Project, error)
	Update(ctx context.Context, p *models.Project) error
	UpdateBanner(ctx context.Context, id int64, banner string) error
	Delete(ctx context.Context, id int64) error
	// Progress is done tasks over all tasks, 0 for a project without tasks.
	Progress(ctx context.Context, id int64) (float64, error)
}
