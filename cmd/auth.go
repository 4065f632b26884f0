package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Sign in with a backend bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		id, err := e.session.SignIn(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s", id.UserID)
		if id.Email != "" {
			fmt.Printf(" (%s)", id.Email)
		}
		fmt.Println()

		if h, err := e.client.CheckCompatibility(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: backend check failed: %s\n", api.UserMessage(err))
		} else {
			fmt.Printf("Backend %s, API %s\n", e.cfg.APIURL, h.APIVersion)
		}

		if err := e.svc.Hydrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not load progress: %s\n", api.UserMessage(err))
			return nil
		}
		snap := e.progress.Snapshot()
		fmt.Printf("Level %d, balance %s, %d badges\n",
			snap.CurrentLevel, layout.FormatMoney(snap.TotalBalance), len(snap.Badges))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove locally saved progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.session.SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out. Local progress removed.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in learner",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if e.cfg.Token != "" {
			fmt.Println("Using token from INVESTORY_TOKEN.")
		}
		id, ok := e.session.Current()
		if !ok {
			fmt.Println("Not signed in.")
			return nil
		}

		fmt.Printf("User:     %s\n", id.UserID)
		if id.Email != "" {
			fmt.Printf("Email:    %s\n", id.Email)
		}
		if !id.ExpiresAt.IsZero() {
			status := ""
			if id.Expired(time.Now()) {
				status = " (expired)"
			}
			fmt.Printf("Expires:  %s%s\n", id.ExpiresAt.Local().Format("2006-01-02 15:04:05"), status)
		}
		fmt.Printf("Backend:  %s\n", e.cfg.APIURL)
		return nil
	},
}
