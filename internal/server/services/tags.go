package services

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
)

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type TagInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type TagService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	access      *AccessService
}

func NewTagService(d Deps, access *AccessService) *TagService {
	return &TagService{db: d.DB, repomanager: d.RepoManager, access: access}
}

func (in *TagInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if in.Name == "" {
		return invalid("tag name is required")
	}
	if in.Color != "" && !colorPattern.MatchString(in.Color) {
		return invalid("color must be a hex value like #aabbcc")
	}
	return nil
}

func (s *TagService) Create(ctx context.Context, userID, projectID int64, in TagInput) (*models.Tag, error) {
	if _, err := s.access.Require(ctx, userID, projectID, roles.Developer); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	t, err := s.repomanager.Tags(s.db).Create(ctx, &models.Tag{ProjectID: projectID, Name: in.Name, Color: in.Color})
	if err != nil {
		return nil, fmt.Errorf("error creating tag: %w", err)
	}
	return t, nil
}

func (s *TagService) List(ctx context.Context, userID, projectID int64) ([]models.Tag, error) {
	if _, err := s.access.Require(ctx, userID, projectID, roles.Viewer); err != nil {
		return nil, err
	}
	return s.repomanager.Tags(s.db).ListByProject(ctx, projectID)
}

func (s *TagService) Update(ctx context.Context, userID, tagID int64, in TagInput) (*models.Tag, error) {
	repo := s.repomanager.Tags(s.db)
	t, err := repo.GetByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Require(ctx, userID, t.ProjectID, roles.Developer); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	t.Name, t.Color = in.Name, in.Color
	if err := repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("error updating tag: %w", err)
	}
	return t, nil
}

func (s *TagService) Delete(ctx context.Context, userID, tagID int64) error {
	repo := s.repomanager.Tags(s.db)
	t, err := repo.GetByID(ctx, tagID)
	if err != nil {
		return err
	}
	if _, err := s.access.Require(ctx, userID, t.ProjectID, roles.Developer); err != nil {
		return err
	}
	return repo.Delete(ctx, tagID)
}
