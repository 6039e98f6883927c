// Package services contains server-side business logic. Every service is
// built once at start-up from Deps and holds no request state.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/cryptox"
	"github.com/dmitrijs2005/taskforge/internal/logging"
	"github.com/dmitrijs2005/taskforge/internal/server/config"
	"github.com/dmitrijs2005/taskforge/internal/server/email"
	"github.com/dmitrijs2005/taskforge/internal/server/events"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/storage"
)

// Deps are the collaborators shared by the services.
type Deps struct {
	DB          *sql.DB
	RepoManager repomanager.RepositoryManager
	Config      *config.Config
	Store       storage.FileStore
	Events      events.Publisher
	Mailer      email.Sender
	Cipher      *cryptox.FieldCipher
	Logger      logging.Logger
}

func (d Deps) logger(module string) logging.Logger {
	if d.Logger == nil {
		return logging.Nop{}
	}
	return d.Logger.With("module", module)
}

func (d Deps) events() events.Publisher {
	if d.Events == nil {
		return events.Nop{}
	}
	return d.Events
}

// Upload is one incoming file. Body is read once by the store.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func saveUpload(ctx context.Context, store storage.FileStore, u *Upload) (string, error) {
	return store.Save(ctx, u.Name, u.ContentType, u.Body, u.Size)
}

// removeFiles deletes stored objects and logs the ones it could not remove.
func removeFiles(ctx context.Context, store storage.FileStore, log logging.Logger, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := store.Remove(ctx, url); err != nil {
			log.Warn(ctx, "orphaned file", "url", url, "error", err)
		}
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}
