package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/taskforge/internal/dbx"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, h *models.TaskHistory) error {
	query :=
		`INSERT INTO task_history (task_id, changed_by, field, old_value, new_value)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, changed_at
		 `
	if err := r.db.QueryRowContext(ctx, query, h.TaskID, h.ChangedBy, h.Field, h.OldValue, h.NewValue).
		Scan(&h.ID, &h.ChangedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByTask(ctx context.Context, taskID int64) ([]models.TaskHistory, error) {
	query :=
		`SELECT id, task_id, changed_by, field, old_value, new_value, changed_at
		 FROM task_history
		 WHERE task_id = $1
		 ORDER BY changed_at DESC, id DESC
		 `
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.TaskHistory, 0)
	for rows.Next() {
		var h models.TaskHistory
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&h.ID, &h.TaskID, &h.ChangedBy, &h.Field, &oldValue, &newValue, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if oldValue.Valid {
			h.OldValue = &oldValue.String
		}
		if newValue.Valid {
			h.NewValue = &newValue.String
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
