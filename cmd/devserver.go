package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abhisek/investory/internal/devserver"
	"github.com/spf13/cobra"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run the in-memory reference backend for local play",
	Long: `Serve the Investory backend API from memory: progress, level completion,
watchlist, quotes, the market websocket and a canned tutor.

State is lost when the server stops. A token for --user is printed on start;
pass it to "investory login".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.DevServer.Addr
		}
		user, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		srv, err := devserver.New(devserver.Config{
			Secret:         cfg.DevServer.Secret,
			AllowedOrigins: cfg.DevServer.AllowedOrigins,
			TickInterval:   cfg.DevServer.TickInterval,
		})
		if err != nil {
			return err
		}

		token, err := srv.IssueToken(user, email, ttl)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Printf("Listening on %s (API %s)\n", addr, devserver.APIVersion)
		fmt.Printf("Token for %s, valid %s:\n\n", user, ttl)
		fmt.Printf("  investory login %s\n\n", token)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	devserverCmd.Flags().String("addr", "", "Listen address (overrides INVESTORY_DEV_ADDR env var)")
	devserverCmd.Flags().String("user", "learner", "User ID for the printed token")
	devserverCmd.Flags().String("email", "", "Email claim for the printed token")
	devserverCmd.Flags().Duration("ttl", 24*time.Hour, "Lifetime of the printed token")
}
