package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
)

const maxCommentLength = 5000

type CommentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	access      *AccessService
}

func NewCommentService(d Deps, access *AccessService) *CommentService {
	return &CommentService{db: d.DB, repomanager: d.RepoManager, access: access}
}

func normalizeComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("comment is empty")
	}
	if len(content) > maxCommentLength {
		return "", invalid("comment is longer than %d bytes", maxCommentLength)
	}
	return content, nil
}

// Add records the comment together with the author's role at this moment.
func (s *CommentService) Add(ctx context.Context, userID, taskID int64, content string) (*models.Comment, error) {
	_, role, err := s.access.RequireForTask(ctx, userID, taskID, roles.Viewer)
	if err != nil {
		return nil, err
	}
	if content, err = normalizeComment(content); err != nil {
		return nil, err
	}

	c, err := s.repomanager.Comments(s.db).Create(ctx, &models.Comment{
		TaskID:     taskID,
		AuthorID:   userID,
		AuthorRole: &role,
		Content:    content,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating comment: %w", err)
	}
	return c, nil
}

func (s *CommentService) List(ctx context.Context, userID, taskID int64) ([]models.Comment, error) {
	if _, _, err := s.access.RequireForTask(ctx, userID, taskID, roles.Viewer); err != nil {
		return nil, err
	}
	return s.repomanager.Comments(s.db).ListByTask(ctx, taskID)
}

// Edit is allowed to the author only.
func (s *CommentService) Edit(ctx context.Context, userID, commentID int64, content string) (*models.Comment, error) {
	repo := s.repomanager.Comments(s.db)
	c, err := repo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.access.RequireForTask(ctx, userID, c.TaskID, roles.Viewer); err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, common.ErrorPermissionDenied
	}
	if content, err = normalizeComment(content); err != nil {
		return nil, err
	}
	return repo.UpdateContent(ctx, commentID, content)
}

// Delete is allowed to the author and to Managers of the project.
func (s *CommentService) Delete(ctx context.Context, userID, commentID int64) error {
	repo := s.repomanager.Comments(s.db)
	c, err := repo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	_, role, err := s.access.RequireForTask(ctx, userID, c.TaskID, roles.Viewer)
	if err != nil {
		return err
	}
	if c.AuthorID != userID && !roles.Allows(role, roles.Manager) {
		return common.ErrorPermissionDenied
	}
	return repo.Delete(ctx, commentID)
}
