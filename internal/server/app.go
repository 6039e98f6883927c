// Package server wires the taskforge components together: configuration,
// database and migrations, file storage, e-mail, the event hub, services
// and the HTTP API. It also handles graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/taskforge/internal/cryptox"
	"github.com/dmitrijs2005/taskforge/internal/logging"
	"github.com/dmitrijs2005/taskforge/internal/server/config"
	"github.com/dmitrijs2005/taskforge/internal/server/email"
	"github.com/dmitrijs2005/taskforge/internal/server/events"
	"github.com/dmitrijs2005/taskforge/internal/server/httpapi"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/services"
	"github.com/dmitrijs2005/taskforge/internal/server/storage"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	hub      *events.Hub
	projects *services.ProjectService
	http     *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	cipher, err := cryptox.NewFieldCipher(c.EncryptionKey, c.SearchSalt)
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, uploadDir, err := newFileStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	mailer, err := newMailer(c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mailer init error: %w", err)
	}

	deps := services.Deps{
		DB:          db,
		RepoManager: rm,
		Config:      c,
		Store:       store,
		Mailer:      mailer,
		Cipher:      cipher,
		Logger:      logger,
	}

	access := services.NewAccessService(deps)
	hub := events.NewHub(logger, events.WithAuthorizer(access.AuthorizeRoom))
	deps.Events = hub

	users := services.NewUserService(deps)
	projects := services.NewProjectService(deps, access, users)

	api := httpapi.NewServer(httpapi.Options{
		Address:         c.EndpointAddrHTTP,
		SecretKey:       c.SecretKey,
		RefreshTokenTTL: c.RefreshTokenValidityDuration,
		SecureCookies:   c.SecureCookies(),
		UploadDir:       uploadDir,
	}, logger, httpapi.Services{
		Users:         users,
		Projects:      projects,
		Versions:      services.NewVersionService(deps, access),
		Tags:          services.NewTagService(deps, access),
		Tasks:         services.NewTaskService(deps, access),
		Comments:      services.NewCommentService(deps, access),
		Notifications: services.NewNotificationService(deps),
	}, hub)

	return &App{config: c, logger: logger, db: db, hub: hub, projects: projects, http: api}, nil
}

// newFileStore returns the configured store and, for the local backend, the
// directory the HTTP server should expose.
func newFileStore(ctx context.Context, c *config.Config) (storage.FileStore, string, error) {
	switch c.StorageBackend {
	case config.StorageS3:
		s, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		return s, "", err
	case config.StorageLocal, "":
		s, err := storage.NewLocalStore(c.UploadDir)
		if err != nil {
			return nil, "", err
		}
		return s, s.Dir(), nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func newMailer(c *config.Config, logger logging.Logger) (email.Sender, error) {
	if c.BrevoAPIKey == "" {
		logger.Warn(context.Background(), "no e-mail API key configured, invitations are not mailed")
		return email.Nop{}, nil
	}
	return email.NewBrevoSender(c.BrevoAPIKey, c.EmailSender)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(ctx, "Waiting for pending e-mails...")
	app.projects.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
