// Package users declares and implements persistence for user accounts.
// Rows hold encrypted identity fields; decryption happens in the service
// layer.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.UserRow) (*models.UserRow, error)
	GetByID(ctx context.Context, id int64) (*models.UserRow, error)
	GetByEmailHash(ctx context.Context, emailHash string) (*models.UserRow, error)
	GetByUserName(ctx context.Context, userName string) (*models.UserRow, error)
	// Update writes the profile columns (name, e-mail, username).
	Update(ctx context.Context, user *models.UserRow) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateImage(ctx context.Context, id int64, image string) error
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	SearchByUserName(ctx context.Context, prefix string, limit int) ([]models.UserBasic, error)
}
