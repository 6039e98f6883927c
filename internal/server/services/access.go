package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/server/events"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/participations"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/projects"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
)

// AccessService answers "what may this user do in this project".
type AccessService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAccessService(d Deps) *AccessService {
	return &AccessService{db: d.DB, repomanager: d.RepoManager}
}

// resolveRole returns the effective role of userID in projectID. The creator
// always holds roles.Top; a pending invite yields roles.None. "No role" is a
// normal result, not an error.
func resolveRole(ctx context.Context, pr projects.Repository, pp participations.Repository, userID, projectID int64) (roles.Role, error) {
	project, err := pr.GetByID(ctx, projectID)
	if err != nil {
		return roles.None, err
	}
	if project.CreatorID == userID {
		return roles.Top, nil
	}

	part, err := pp.Find(ctx, userID, projectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return roles.None, nil
		}
		return roles.None, err
	}
	if !part.Active() {
		return roles.None, nil
	}
	return part.Role, nil
}

// Role resolves the caller's role in a project.
func (s *AccessService) Role(ctx context.Context, userID, projectID int64) (roles.Role, error) {
	return resolveRole(ctx, s.repomanager.Projects(s.db), s.repomanager.Participations(s.db), userID, projectID)
}

// Require fails with ErrorPermissionDenied unless the caller's role allows
// required. It returns the resolved role.
func (s *AccessService) Require(ctx context.Context, userID, projectID int64, required roles.Role) (roles.Role, error) {
	role, err := s.Role(ctx, userID, projectID)
	if err != nil {
		return roles.None, err
	}
	if !roles.Allows(role, required) {
		return roles.None, common.ErrorPermissionDenied
	}
	return role, nil
}

// RequireForVersion resolves the governing project through the version.
func (s *AccessService) RequireForVersion(ctx context.Context, userID, versionID int64, required roles.Role) (*models.Version, roles.Role, error) {
	v, err := s.repomanager.Versions(s.db).GetByID(ctx, versionID)
	if err != nil {
		return nil, roles.None, err
	}
	role, err := s.Require(ctx, userID, v.ProjectID, required)
	if err != nil {
		return nil, roles.None, err
	}
	return v, role, nil
}

// RequireForTask resolves task -> version -> project before checking.
func (s *AccessService) RequireForTask(ctx context.Context, userID, taskID int64, required roles.Role) (*models.Task, roles.Role, error) {
	t, err := s.repomanager.Tasks(s.db).GetByID(ctx, taskID)
	if err != nil {
		return nil, roles.None, err
	}
	role, err := s.Require(ctx, userID, t.ProjectID, required)
	if err != nil {
		return nil, roles.None, err
	}
	return t, role, nil
}

// AuthorizeRoom is the socket join check: project rooms need an active
// role, user rooms are private to their owner.
func (s *AccessService) AuthorizeRoom(ctx context.Context, userID int64, room string) error {
	kind, id, err := events.ParseRoom(room)
	if err != nil {
		return common.ErrorValidation
	}
	switch kind {
	case events.RoomUser:
		if id != userID {
			return common.ErrorPermissionDenied
		}
		return nil
	default:
		_, err := s.Require(ctx, userID, id, roles.Viewer)
		return err
	}
}
