// Package versions persists project versions, the containers tasks live in.
package versions

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

const selectVersion = `SELECT id, project_id, name, description, status, start_date, end_date, created_at, updated_at FROM versions`

func scanVersion(row interface{ Scan(...any) error }) (*models.Version, error) {
	v := &models.Version{}
	var start, end sql.NullTime
	if err := row.Scan(&v.ID, &v.ProjectID, &v.Name, &v.Description, &v.Status, &start, &end, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if start.Valid {
		v.StartDate = &start.Time
	}
	if end.Valid {
		v.EndDate = &end.Time
	}
	return v, nil
}

func (r *PostgresRepository) Create(ctx context.Context, v *models.Version) (*models.Version, error) {
	query :=
		`INSERT INTO versions (project_id, name, description, status, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `
	err := r.db.QueryRowContext(ctx, query, v.ProjectID, v.Name, v.Description, v.Status, v.StartDate, v.EndDate).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Version, error) {
	return scanVersion(r.db.QueryRowContext(ctx, selectVersion+` WHERE id = $1`, id))
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID int64) ([]models.Version, error) {
	rows, err := r.db.QueryContext(ctx, selectVersion+` WHERE project_id = $1 ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, v *models.Version) error {
	query :=
		`UPDATE versions SET name = $2, description = $3, status = $4, start_date = $5, end_date = $6, updated_at = now()
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, v.ID, v.Name, v.Description, v.Status, v.StartDate, v.EndDate)
	return affected(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM versions WHERE id = $1`, id)
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
