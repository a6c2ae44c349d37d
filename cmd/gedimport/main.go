// Command gedimport imports GEDCOM files and manages pending changes from the
// command line, against the same database as the server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gedimport/internal/config"
	"github.com/JonMunkholm/gedimport/internal/core"
	_ "github.com/JonMunkholm/gedimport/internal/core/records" // Register record types
	"github.com/JonMunkholm/gedimport/internal/logging"
)

// app carries what every subcommand needs. Tests fill service and cfg
// before executing so no database is opened.
type app struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	service *core.Service
	out     io.Writer

	envFile string
	user    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gedimport",
		Short:         "Import GEDCOM files into genealogy trees",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file to load if present")
	root.PersistentFlags().StringVar(&a.user, "user", os.Getenv("USER"), "User name recorded in the audit log")

	root.AddCommand(
		newImportCmd(a),
		newAcceptCmd(a),
		newRejectCmd(a),
		newEmptyCmd(a),
		newSettingsCmd(a),
		newTreesCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// open loads configuration and connects to the database, unless a service
// was supplied.
func (a *app) open(ctx context.Context) error {
	if a.service != nil {
		if a.cfg == nil {
			a.cfg = &config.Config{}
		}
		return nil
	}

	if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	a.pool = pool
	a.service = core.NewService(core.NewPostgres(pool), cfg)

	slog.Debug("connected to database", "record_types", core.HandlerCount())
	return nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// context attaches the CLI user to ctx for the audit log.
func (a *app) context(ctx context.Context) context.Context {
	return core.WithRequestMeta(ctx, core.RequestMeta{
		UserAgent: "gedimport-cli",
		UserName:  a.user,
	})
}
