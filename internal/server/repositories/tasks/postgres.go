package tasks

import (
	"context"
	"database/sql"
	"errors"
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

const selectTask = `SELECT t.id, t.version_id, v.project_id, t.assignee_id, t.parent_task_id, t.title, t.description,
       t.priority, t.status, t.deadline, t.block_reason, t.created_at, t.updated_at
FROM tasks t JOIN versions v ON v.id = t.version_id`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	t := &models.Task{}
	var assignee, parent sql.NullInt64
	var deadline sql.NullTime
	err := row.Scan(&t.ID, &t.VersionID, &t.ProjectID, &assignee, &parent, &t.Title, &t.Description,
		&t.Priority, &t.Status, &deadline, &t.BlockReason, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.Int64
	}
	if parent.Valid {
		t.ParentTaskID = &parent.Int64
	}
	if deadline.Valid {
		t.Deadline = &deadline.Time
	}
	return t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	query :=
		`INSERT INTO tasks (version_id, assignee_id, parent_task_id, title, description, priority, status, deadline, block_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at
		 `
	err := r.db.QueryRowContext(ctx, query, t.VersionID, t.AssigneeID, t.ParentTaskID, t.Title, t.Description,
		t.Priority, t.Status, t.Deadline, t.BlockReason).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return scanTask(r.db.QueryRowContext(ctx, selectTask+` WHERE t.id = $1`, id))
}

func (r *PostgresRepository) ListByVersion(ctx context.Context, versionID int64) ([]models.Task, error) {
	return r.list(ctx, selectTask+` WHERE t.version_id = $1 ORDER BY t.created_at, t.id`, versionID)
}

func (r *PostgresRepository) ListByAssignee(ctx context.Context, userID int64) ([]models.Task, error) {
	return r.list(ctx, selectTask+` WHERE t.assignee_id = $1 ORDER BY t.deadline NULLS LAST, t.id`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, t *models.Task) error {
	query :=
		`UPDATE tasks SET version_id = $2, assignee_id = $3, title = $4, description = $5, priority = $6,
		        status = $7, deadline = $8, block_reason = $9, updated_at = now()
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, t.ID, t.VersionID, t.AssigneeID, t.Title, t.Description,
		t.Priority, t.Status, t.Deadline, t.BlockReason)
	return affected(res, err)
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status models.TaskStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return affected(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return affected(res, err)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
