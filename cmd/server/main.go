/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the workday server: leave requests, the vacation
  ledger and the time clock over HTTP. Handles configuration, dependency
  injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, config.yaml, WORKDAY_* environment)
  2. Build the zap logger
  3. Open SQLite and apply migrations
  4. Build services, handler and router
  5. Optionally seed demo data
  6. Start the HTTP server (and the auto-close sweeper when
     attendance.sweep_interval is set)

COMMAND-LINE FLAGS:
  -config  Path to a config file (default: ./config/config.yaml or ./config.yaml)
  -seed    Provision demo employees on start (same as seed.demo)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (server.shutdown_timeout)
  3. Stop the sweeper, if running
  4. Close the database

EXAMPLES:
  WORKDAY_AUTH_JWT_SECRET=change-me-please-32 ./server -seed
  WORKDAY_DB_PATH=":memory:" ./server

SEE ALSO:
  - config/config.go: All settings
  - api/server.go: Router configuration
  - cmd/token: Mints bearer tokens for local use
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/workday/api"
	"github.com/warp/workday/attendance"
	"github.com/warp/workday/auth"
	"github.com/warp/workday/calendar"
	"github.com/warp/workday/config"
	"github.com/warp/workday/generic"
	"github.com/warp/workday/logger"
	"github.com/warp/workday/store/sqlite"
	"github.com/warp/workday/timeoff"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	seed := flag.Bool("seed", false, "provision demo employees")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logg.Sync()

	if err := run(cfg, logg, *seed || cfg.Seed.Demo); err != nil {
		logg.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logg *zap.Logger, seed bool) error {
	loc, err := cfg.Clock.Load()
	if err != nil {
		return err
	}
	stipend, err := cfg.Attendance.Stipend()
	if err != nil {
		return err
	}
	clock := generic.SystemClock{Location: loc}

	store, err := sqlite.New(cfg.Database.Path,
		sqlite.WithOpTimeout(cfg.Database.OpTimeout),
		sqlite.WithBusyTimeout(cfg.Database.BusyTimeoutMS),
	)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	cal := calendar.New()
	leave := timeoff.NewService(store, store, cal, clock, logg.Named("timeoff"))
	att := attendance.NewService(store, store, clock, logg.Named("attendance"), attendance.Options{
		Location:         loc,
		DailyStipend:     stipend,
		MinWorkedMinutes: cfg.Attendance.MinWorkedMinutes,
	})

	handler := api.NewHandler(leave, att, cal, clock, logg.Named("api"))
	if seed {
		if err := handler.SeedDemo(context.Background()); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	tokens := auth.NewManager(cfg.Auth, clock)
	router := api.NewRouter(handler, tokens, cfg.Server.CORS.AllowOrigins)

	if cfg.Attendance.SweepEnabled() {
		sweeper := api.NewSessionSweeper(att, logg.Named("sweeper"), cfg.Attendance.SweepInterval)
		sweeper.Start()
		defer sweeper.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path),
			zap.String("location", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logg.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logg.Info("server stopped")
	return nil
}
