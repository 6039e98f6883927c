package tasktags

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/dbx"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListByTask(ctx context.Context, taskID int64) ([]models.TaskTag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, task_id, tag_id FROM task_tags WHERE task_id = $1 ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.TaskTag, 0)
	for rows.Next() {
		var tt models.TaskTag
		if err := rows.Scan(&tt.ID, &tt.TaskID, &tt.TagID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, tt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListTags(ctx context.Context, taskID int64) ([]models.Tag, error) {
	query :=
		`SELECT g.id, g.project_id, g.name, g.color
		 FROM task_tags tt JOIN tags g ON g.id = tt.tag_id
		 WHERE tt.task_id = $1
		 ORDER BY g.name
		 `
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Tag, 0)
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Add links tagID to taskID. An existing link is reported as
// common.ErrorConflict.
func (r *PostgresRepository) Add(ctx context.Context, taskID, tagID int64) error {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2)`, taskID, tagID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, taskID, tagID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = $1 AND tag_id = $2`, taskID, tagID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
