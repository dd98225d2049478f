/*
main.go - Application entry point

PURPOSE:
  Builds the leave-engine binary: the HTTP server plus a few operator
  commands that share its configuration.

COMMANDS:
  serve      Run the HTTP API (default when no command is given)
  migrate    Create or upgrade the SQLite schema and exit
  employee   Upsert a directory entry (the identity provider boundary)
  token      Issue a bearer token for local testing

STARTUP SEQUENCE (serve):
  1. Load configuration (file, .env, LEAVE_* env vars)
  2. Build the zap logger
  3. Open the SQLite store (migrates on open)
  4. Build the catalog, RBAC enforcer, metrics and services
  5. Configure the router and start the server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Close database connection

EXAMPLES:
  leave-engine serve --config config.yaml
  LEAVE_DATABASE_PATH=":memory:" leave-engine serve
  leave-engine employee --id emp-1 --company acme --manager mgr-1 --name "Eve"
  leave-engine token --employee hr-1 --company acme --role hr_admin

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/rbac"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "leave-engine",
		Short:         "Leave request lifecycle and balance accounting",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or upgrade the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context(), configPath)
			},
		},
		employeeCmd(&configPath),
		tokenCmd(&configPath),
	)
	return cmd
}

// =============================================================================
// SERVE
// =============================================================================

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	enforcer, err := rbac.New(cfg.RBAC.Rules())
	if err != nil {
		return err
	}
	m := metrics.New()

	svc := leave.NewRequestService(store, catalog, store, leave.NewGate(store, enforcer),
		leave.WithLogger(logger),
		leave.WithObserver(m))
	handler := api.NewHandler(api.Deps{
		Requests:  svc,
		Reader:    store,
		Directory: store,
		Logger:    logger,
		Health:    store.Ping,
	})

	var limiter *api.ActorLimiter
	if cfg.RateLimit.Enabled {
		limiter = api.NewActorLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}
	router := api.NewRouter(handler, api.RouterConfig{
		Auth:           api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Limiter:        limiter,
		Metrics:        m,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("database", cfg.Database.Path),
			zap.Int("leave_types", len(catalog.List())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// =============================================================================
// OPERATOR COMMANDS
// =============================================================================

func migrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// New migrates on open.
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to migrate %s: %w", cfg.Database.Path, err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return err
	}
	fmt.Printf("schema up to date in %s\n", cfg.Database.Path)
	return nil
}

func employeeCmd(configPath *string) *cobra.Command {
	var (
		e        leave.Employee
		manager  string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "employee",
		Short: "Create or update a directory entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := sqlite.New(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if manager != "" {
				m := leave.EmployeeID(manager)
				e.ManagerID = &m
			}
			e.Active = !inactive
			if err := store.PutEmployee(cmd.Context(), e); err != nil {
				return err
			}
			fmt.Printf("saved employee %s (%s)\n", e.ID, e.CompanyID)
			return nil
		},
	}

	cmd.Flags().StringVar((*string)(&e.ID), "id", "", "Employee id")
	cmd.Flags().StringVar((*string)(&e.CompanyID), "company", "", "Company id")
	cmd.Flags().StringVar(&e.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&manager, "manager", "", "Direct manager id")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Mark the employee inactive")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func tokenCmd(configPath *string) *cobra.Command {
	var (
		actor leave.Actor
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tok, err := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Sign(actor, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar((*string)(&actor.EmployeeID), "employee", "", "Employee id")
	cmd.Flags().StringVar((*string)(&actor.CompanyID), "company", "", "Company id")
	cmd.Flags().StringSliceVar(&actor.Roles, "role", nil, "Role (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
