package cmd

import (
	"fmt"
	"os"

	"github.com/abhisek/investory/internal/app"
	"github.com/abhisek/investory/internal/market"
	"github.com/spf13/cobra"
)

// runApp opens the store, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command) error {
	ctx := cmd.Context()
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.signedIn() {
		fmt.Fprintln(os.Stderr, "Not signed in: progress will not sync.")
		fmt.Fprintln(os.Stderr, "Run `investory login <token>` to connect to the backend.")
	}

	events := e.store.EventRepo()
	skipSplash, _ := cmd.Flags().GetBool("no-splash")
	opts := app.Options{
		Settlement: e.svc,
		Watchlist:  e.client,
		Events:     events,
		SkipSplash: skipSplash,
	}

	if wsURL, err := market.StreamURL(e.cfg.APIURL); err != nil {
		fmt.Fprintln(os.Stderr, "Market ticker unavailable:", err)
	} else {
		opts.Feed = market.NewFeed(wsURL, market.NewBoard(),
			market.WithTokenSource(e.tokens),
			market.WithSymbols(e.cfg.Symbols),
			market.WithFeedWarnings(nil),
		)
	}

	assistant, err := e.newAssistant(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Tutor not configured:", err)
		fmt.Fprintln(os.Stderr, "Chat will be unavailable.")
	} else {
		opts.Assistant = assistant
	}

	return app.Run(opts)
}
