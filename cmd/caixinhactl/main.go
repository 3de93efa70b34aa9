package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"caixinha/internal/cli"
	"caixinha/internal/config"
	applog "caixinha/internal/log"
	"caixinha/internal/services"
	"caixinha/internal/storage"
)

// app carries what every subcommand needs once flags and env are read.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	dbPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "caixinhactl",
		Short: "Operator tool for the caixinha ledger",
		Long: `caixinhactl manages the caixinha database directly: schema migrations,
global categories, summaries, orphan repair, development tokens and the
Google Sheets mirror authorization.

Settings come from the environment (and a .env file), as for the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			a.cfg = config.Load()
			if a.dbPath != "" {
				a.cfg.SQLiteDBPath = a.dbPath
			}
			a.logger = cli.SetupLogger(a.cfg, applog.ComponentCLI)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default: $SQLITE_DB_PATH)")

	root.AddCommand(migrateCmd(a))
	root.AddCommand(seedCmd(a))
	root.AddCommand(categoriesCmd(a))
	root.AddCommand(summaryCmd(a))
	root.AddCommand(repairOrphansCmd(a))
	root.AddCommand(tokenCmd(a))
	root.AddCommand(sheetsCmd(a))
	return root
}

// openLedger opens the database, applying pending migrations. The returned
// closer releases the repository.
func (a *app) openLedger(opts ...services.Option) (*services.Ledger, func(), error) {
	repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", a.cfg.SQLiteDBPath, err)
	}
	return services.NewLedger(repo, opts...), func() { _ = repo.Close() }, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
