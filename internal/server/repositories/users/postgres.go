package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

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

const selectUser = `SELECT id, full_name_enc, email_enc, email_hash, username, password_hash, image, last_access, created_at FROM users`

func scanUser(row interface{ Scan(...any) error }) (*models.UserRow, error) {
	u := &models.UserRow{}
	var lastAccess sql.NullTime
	err := row.Scan(&u.ID, &u.FullNameEnc, &u.EmailEnc, &u.EmailHash, &u.UserName, &u.PasswordHash, &u.Image, &lastAccess, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lastAccess.Valid {
		u.LastAccess = &lastAccess.Time
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.UserRow) (*models.UserRow, error) {

	query :=
		`INSERT INTO users (full_name_enc, email_enc, email_hash, username, password_hash)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.FullNameEnc, user.EmailEnc, user.EmailHash, user.UserName, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.UserRow, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
}

func (r *PostgresRepository) GetByEmailHash(ctx context.Context, emailHash string) (*models.UserRow, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE email_hash = $1`, emailHash))
}

func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.UserRow, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE username = $1`, userName))
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.UserRow) error {
	query :=
		`UPDATE users SET full_name_enc = $2, email_enc = $3, email_hash = $4, username = $5
		 WHERE id = $1
		 `
	return r.exec(ctx, query, user.ID, user.FullNameEnc, user.EmailEnc, user.EmailHash, user.UserName)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

func (r *PostgresRepository) UpdateImage(ctx context.Context, id int64, image string) error {
	return r.exec(ctx, `UPDATE users SET image = $2 WHERE id = $1`, id, image)
}

func (r *PostgresRepository) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_access = $2 WHERE id = $1`, id, at)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// exec runs a single-row statement; zero affected rows is reported as
// common.ErrorNotFound.
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

func (r *PostgresRepository) SearchByUserName(ctx context.Context, prefix string, limit int) ([]models.UserBasic, error) {
	query :=
		`SELECT id, username, image FROM users
		 WHERE username ILIKE $1
		 ORDER BY username
		 LIMIT $2
		 `

	pattern := escapeLike(prefix) + "%"
	rows, err := r.db.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.UserBasic, 0)
	for rows.Next() {
		var u models.UserBasic
		if err := rows.Scan(&u.ID, &u.UserName, &u.Image); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
