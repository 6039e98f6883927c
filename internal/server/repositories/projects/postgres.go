package projects

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

func (r *PostgresRepository) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	query :=
		`INSERT INTO projects (creator_id, name, description, status, banner, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, p.CreatorID, p.Name, p.Description, p.Status, p.Banner, p.Deadline).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query :=
		`SELECT id, creator_id, name, description, status, banner, deadline, created_at, updated_at
		 FROM projects
		 WHERE id = $1
		 `

	p := &models.Project{}
	var deadline sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.CreatorID, &p.Name, &p.Description, &p.Status, &p.Banner, &deadline, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if deadline.Valid {
		p.Deadline = &deadline.Time
	}
	return p, nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID int64) ([]models.Project, error) {
	query :=
		`SELECT p.id, p.creator_id, p.name, p.description, p.status, p.banner, p.deadline, p.created_at, p.updated_at,
		        COALESCE(s.done::float8 / NULLIF(s.total, 0), 0)
		 FROM projects p
		 LEFT JOIN (
		     SELECT v.project_id, COUNT(*) FILTER (WHERE t.status = $2) AS done, COUNT(*) AS total
		     FROM tasks t JOIN versions v ON v.id = t.version_id
		     GROUP BY v.project_id
		 ) s ON s.project_id = p.id
		 WHERE p.creator_id = $1
		    OR EXISTS (
		        SELECT 1 FROM project_participations pp
		        WHERE pp.project_id = p.id AND pp.user_id = $1
		          AND pp.accepted_at IS NOT NULL AND pp.invitation_token IS NULL
		    )
		 ORDER BY p.created_at DESC, p.id DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, models.TaskDone)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Project, 0)
	for rows.Next() {
		var p models.Project
		var deadline sql.NullTime
		if err := rows.Scan(&p.ID, &p.CreatorID, &p.Name, &p.Description, &p.Status, &p.Banner, &deadline,
			&p.CreatedAt, &p.UpdatedAt, &p.Progress); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if deadline.Valid {
			p.Deadline = &deadline.Time
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Project) error {
	query :=
		`UPDATE projects SET name = $2, description = $3, status = $4, deadline = $5, updated_at = now()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, p.ID, p.Name, p.Description, p.Status, p.Deadline)
}

func (r *PostgresRepository) UpdateBanner(ctx context.Context, id int64, banner string) error {
	return r.exec(ctx, `UPDATE projects SET banner = $2, updated_at = now() WHERE id = $1`, id, banner)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
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

func (r *PostgresRepository) Progress(ctx context.Context, id int64) (float64, error) {
	query :=
		`SELECT COUNT(*) FILTER (WHERE t.status = $2), COUNT(*)
		 FROM tasks t JOIN versions v ON v.id = t.version_id
		 WHERE v.project_id = $1
		 `

	var done, total int64
	if err := r.db.QueryRowContext(ctx, query, id, models.TaskDone).Scan(&done, &total); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(done) / float64(total), nil
}
