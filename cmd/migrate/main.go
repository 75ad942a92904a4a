package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/spec-kit/jobcard-service/internal/config"
	"github.com/spec-kit/jobcard-service/internal/persistence"
)

var dsn string

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage the job-card database schema",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dsn != "" {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dsn = cfg.Postgres.DSN
		if dsn == "" {
			return errors.New("no database DSN; set POSTGRES_DSN or pass --dsn")
		}
		return nil
	},
}

var upCmd = &cobra.Command{
	Use:   "up [n]",
	Short: "Apply all pending migrations, or the next n",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(n)
			}
			return m.Up()
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [n]",
	Short: "Roll back the last migration, or the last n",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := 1
		if len(args) == 1 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil || n <= 0 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
		}
		return withMigrator(func(m *migrate.Migrate) error {
			return m.Steps(-n)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				cmd.Println("no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			cmd.Printf("version %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

func withMigrator(fn func(*migrate.Migrate) error) error {
	m, err := persistence.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to POSTGRES_DSN)")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
