package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
)

type VersionInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.VersionStatus `json:"status"`
	StartDate   *time.Time           `json:"startDate"`
	EndDate     *time.Time           `json:"endDate"`
}

type VersionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	access      *AccessService
}

func NewVersionService(d Deps, access *AccessService) *VersionService {
	return &VersionService{db: d.DB, repomanager: d.RepoManager, access: access}
}

func (in *VersionInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("version name is required")
	}
	if in.Status == 0 {
		in.Status = models.VersionDraft
	}
	if !in.Status.Valid() {
		return invalid("unknown version status %d", in.Status)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return invalid("end date is before start date")
	}
	return nil
}

func (s *VersionService) Create(ctx context.Context, userID, projectID int64, in VersionInput) (*models.Version, error) {
	if _, err := s.access.Require(ctx, userID, projectID, roles.Manager); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	v, err := s.repomanager.Versions(s.db).Create(ctx, &models.Version{
		ProjectID:   projectID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating version: %w", err)
	}
	return v, nil
}

func (s *VersionService) Get(ctx context.Context, userID, versionID int64) (*models.Version, error) {
	v, _, err := s.access.RequireForVersion(ctx, userID, versionID, roles.Viewer)
	return v, err
}

func (s *VersionService) List(ctx context.Context, userID, projectID int64) ([]models.Version, error) {
	if _, err := s.access.Require(ctx, userID, projectID, roles.Viewer); err != nil {
		return nil, err
	}
	return s.repomanager.Versions(s.db).ListByProject(ctx, projectID)
}

// Update replaces every editable field of the version.
func (s *VersionService) Update(ctx context.Context, userID, versionID int64, in VersionInput) (*models.Version, error) {
	v, _, err := s.access.RequireForVersion(ctx, userID, versionID, roles.Manager)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	v.Name, v.Description, v.Status = in.Name, in.Description, in.Status
	v.StartDate, v.EndDate = in.StartDate, in.EndDate

	repo := s.repomanager.Versions(s.db)
	if err := repo.Update(ctx, v); err != nil {
		return nil, fmt.Errorf("error updating version: %w", err)
	}
	return repo.GetByID(ctx, versionID)
}

// Delete drops the version and its tasks.
func (s *VersionService) Delete(ctx context.Context, userID, versionID int64) error {
	if _, _, err := s.access.RequireForVersion(ctx, userID, versionID, roles.Admin); err != nil {
		return err
	}
	return s.repomanager.Versions(s.db).Delete(ctx, versionID)
}
