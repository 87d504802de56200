// Package server initializes and runs the SCS application server. It
// prepares the storage root, wires the user and vault services together,
// handles graceful shutdown, and starts the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/scs-backend/scs/internal/filex"
	"github.com/scs-backend/scs/internal/logging"
	"github.com/scs-backend/scs/internal/server/config"
	"github.com/scs-backend/scs/internal/server/httpapi"
	"github.com/scs-backend/scs/internal/server/users"
	"github.com/scs-backend/scs/internal/server/vault"
)

// UsersFileName is the flat file under the storage root holding every
// account record.
const UsersFileName = "users.json"

type App struct {
	config       *config.Config
	logger       logging.Logger
	userService  *users.Service
	vaultService *vault.Service
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	root, err := filex.EnsureDir(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	store := users.NewStore(filepath.Join(root, UsersFileName))
	us := users.NewService(store, root, logger)
	vs := vault.NewService(root, us, cfg.MaxUploadBytes, logger)

	return &App{config: cfg, logger: logger, userService: us, vaultService: vs}, nil
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

	s := httpapi.NewServer(app.config, app.userService, app.vaultService, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDir)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
}
