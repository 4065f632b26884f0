package cmd

import (
	"github.com/abhisek/investory/internal/config"
	"github.com/abhisek/investory/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "investory",
	Short: "Learn the stock market one level at a time",
	Long: "Investory is a terminal game that teaches stock market basics through levels,\n" +
		"quizzes, virtual rewards and a live market ticker.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides INVESTORY_DB env var)")
	rootCmd.PersistentFlags().String("api-url", "", "Backend base URL (overrides INVESTORY_API_URL env var)")
	rootCmd.Flags().Bool("no-splash", false, "Open the level map without the intro animation")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(levelCmd)
	rootCmd.AddCommand(tickerCmd)
	rootCmd.AddCommand(watchlistCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(devserverCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then INVESTORY_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}
