package participations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/dbx"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectParticipation = `SELECT id, user_id, project_id, role, invited_at, accepted_at, invitation_token FROM project_participations`

type scanner interface {
	Scan(dest ...any) error
}

func scanParticipation(row scanner, extra ...any) (*models.Participation, error) {
	p := &models.Participation{}
	var acceptedAt sql.NullTime
	var token sql.NullString

	dest := append([]any{&p.ID, &p.UserID, &p.ProjectID, &p.Role, &p.InvitedAt, &acceptedAt, &token}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if acceptedAt.Valid {
		p.AcceptedAt = &acceptedAt.Time
	}
	if token.Valid {
		p.InvitationToken = &token.String
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Participation) (*models.Participation, error) {
	query :=
		`INSERT INTO project_participations (user_id, project_id, role, accepted_at, invitation_token)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, invited_at
		 `

	err := r.db.QueryRowContext(ctx, query, p.UserID, p.ProjectID, p.Role, p.AcceptedAt, p.InvitationToken).
		Scan(&p.ID, &p.InvitedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Participation, error) {
	return scanParticipation(r.db.QueryRowContext(ctx, selectParticipation+` WHERE id = $1`, id))
}

func (r *PostgresRepository) Find(ctx context.Context, userID, projectID int64) (*models.Participation, error) {
	return scanParticipation(r.db.QueryRowContext(ctx, selectParticipation+` WHERE user_id = $1 AND project_id = $2`, userID, projectID))
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.Participation, error) {
	return scanParticipation(r.db.QueryRowContext(ctx, selectParticipation+` WHERE invitation_token = $1`, token))
}

func (r *PostgresRepository) Accept(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE project_participations SET accepted_at = $2, invitation_token = NULL WHERE id = $1`, id, at)
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, id int64, role roles.Role) error {
	return r.exec(ctx, `UPDATE project_participations SET role = $2 WHERE id = $1`, id, role)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM project_participations WHERE id = $1`, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID int64) ([]models.Participation, error) {
	query :=
		`SELECT pp.id, pp.user_id, pp.project_id, pp.role, pp.invited_at, pp.accepted_at, pp.invitation_token,
		        u.username, u.image
		 FROM project_participations pp
		 JOIN users u ON u.id = pp.user_id
		 WHERE pp.project_id = $1
		 ORDER BY pp.role, pp.invited_at
		 `

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Participation, 0)
	for rows.Next() {
		var userName, image string
		p, err := scanParticipation(rows, &userName, &image)
		if err != nil {
			return nil, err
		}
		p.User = &models.UserBasic{ID: p.UserID, UserName: userName, Image: image}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
