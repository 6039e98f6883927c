// Package participations persists project memberships and pending invites.
package participations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
)

type Repository interface {
	Create(ctx context.Context, p *models.Participation) (*models.Participation, error)
	GetByID(ctx context.Context, id int64) (*models.Participation, error)
	// Find returns the row for (userID, projectID) whether accepted or pending.
	Find(ctx context.Context, userID, projectID int64) (*models.Participation, error)
	FindByToken(ctx context.Context, token string) (*models.Participation, error)
	// Accept marks the row accepted and clears its invitation token.
	Accept(ctx context.Context, id int64, at time.Time) error
	UpdateRole(ctx context.Context, id int64, role roles.Role) error
	Delete(ctx context.Context, id int64) error
	// ListByProject returns members and pending invites ordered by role
	// then invite time, with basic user info attached.
	ListByProject(ctx context.Context, projectID int64) ([]models.Participation, error)
}
