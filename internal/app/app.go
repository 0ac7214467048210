package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/careledger/ndis-ledger/internal/amqp"
	"github.com/careledger/ndis-ledger/internal/config"
	"github.com/careledger/ndis-ledger/internal/database"
	"github.com/careledger/ndis-ledger/pkg/backfill"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, database, router, and server lifecycle.
type Application struct {
	cfg    config.Application
	db     *pgxpool.Pool
	deps   *Dependencies
	broker *amqp.Client
	router *mux.Router
	srv    *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// DB + migrations
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(cfg.Database); err != nil {
		db.Close()
		return nil, err
	}

	deps := BuildDependencies(db, cfg)

	var broker *amqp.Client
	if cfg.Amqp.Enabled {
		broker, err = amqp.NewClient(cfg.Amqp.Url, cfg.Amqp.Exchange, cfg.Amqp.Queue)
		if err != nil {
			db.Close()
			return nil, err
		}
		amqp.Forward(deps.EventBus, broker)
		log.Infof("Publishing ledger events to exchange %s", cfg.Amqp.Exchange)
	} else {
		log.Info("AMQP disabled - ledger events stay in process")
	}

	r := mux.NewRouter()

	// Middleware chain
	SetupMiddleware(r)

	// Routes
	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Host,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, db: db, deps: deps, broker: broker, router: r, srv: srv}, nil
}

// Run starts the HTTP server and the periodic backfill, and blocks until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	go backfill.RunPeriodically(ctx, a.deps.BackfillService, a.cfg.Backfill.Interval)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := a.srv.Shutdown(shutdownCtx)
	a.close()
	return err
}

func (a *Application) close() {
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			log.Errorf("failed to close AMQP connection: %v", err)
		}
	}
	a.db.Close()
}
