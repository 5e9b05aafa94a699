package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/app"
	"github.com/abhisek/lingva/internal/config"
	"github.com/abhisek/lingva/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "lingva",
	Short:        "Language learning progress tracker",
	Long:         "Lingva schedules vocabulary reviews, walks learners through lesson blocks, runs quizzes and timed exams, and awards achievements.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides LINGVA_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("catalog", "", "Path to catalog JSON (default: built-in catalog)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "Learner id (default from config)")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(lessonCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(examCmd)
	rootCmd.AddCommand(achievementsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and applies command line overrides. The
// database path resolves as --db flag, then database.dsn, then LINGVA_DB, then
// the XDG data dir.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Database.Driver = store.DriverSQLite
		cfg.Database.DSN = p
	}
	if p, _ := cmd.Flags().GetString("catalog"); p != "" {
		cfg.Catalog.Path = p
	}
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		cfg.User = u
	}
	return cfg, nil
}

// withApp builds the application container and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, cleanup, err := app.Initialize(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, c)
}
