package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/market"
	"github.com/spf13/cobra"
)

var tickerCmd = &cobra.Command{
	Use:   "ticker [symbol]...",
	Short: "Print quotes, or stream them with --follow",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireSignIn(); err != nil {
			return err
		}

		symbols := e.cfg.Symbols
		if watched, _ := cmd.Flags().GetBool("watchlist"); watched {
			if symbols, err = e.client.Watchlist(cmd.Context()); err != nil {
				return err
			}
		}
		if len(args) > 0 {
			symbols = args
		}
		if symbols, err = market.NormalizeSymbols(symbols); err != nil {
			return err
		}

		if follow, _ := cmd.Flags().GetBool("follow"); follow {
			return followTicker(cmd.Context(), e, symbols)
		}

		quotes, err := e.client.Quotes(cmd.Context(), symbols)
		if err != nil {
			return err
		}
		if len(quotes) == 0 {
			fmt.Println("No quotes available.")
			return nil
		}
		printQuoteHeader()
		for _, q := range quotes {
			printQuote(q)
		}
		return nil
	},
}

// followTicker streams board updates until interrupted.
func followTicker(ctx context.Context, e *env, symbols []string) error {
	wsURL, err := market.StreamURL(e.cfg.APIURL)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	feed := market.NewFeed(wsURL, market.NewBoard(),
		market.WithTokenSource(e.tokens),
		market.WithSymbols(symbols),
	)
	updates := make(chan market.Entry, 64)
	unsubscribe := feed.OnUpdate(func(en market.Entry) {
		select {
		case updates <- en:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	fmt.Fprintln(os.Stderr, "Streaming quotes, Ctrl+C to stop.")
	printQuoteHeader()
	for {
		select {
		case en := <-updates:
			printQuote(en.Quote)
		case <-done:
			return nil
		}
	}
}

func printQuoteHeader() {
	fmt.Printf("%-10s  %-24s  %12s  %10s  %8s  %s\n",
		"Symbol", "Name", "Price", "Change", "%", "Updated")
	fmt.Println(strings.Repeat("─", 84))
}

func printQuote(q api.Quote) {
	arrow := "▲"
	if q.Change < 0 {
		arrow = "▼"
	}
	updated := ""
	if !q.UpdatedAt.IsZero() {
		updated = q.UpdatedAt.Local().Format("15:04:05")
	}
	fmt.Printf("%-10s  %-24s  %12.2f  %s%9.2f  %7.2f%%  %s\n",
		q.Symbol, truncate(q.Name, 24), q.Price, arrow, q.Change, q.ChangePercent, updated)
}

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage the symbols you follow",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched symbols",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWatchlist(cmd, func(ctx context.Context, c *api.Client) ([]string, error) {
			return c.Watchlist(ctx)
		})
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <symbol>",
	Short: "Watch a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := market.NormalizeSymbol(args[0])
		if err != nil {
			return err
		}
		return withWatchlist(cmd, func(ctx context.Context, c *api.Client) ([]string, error) {
			return c.AddToWatchlist(ctx, sym)
		})
	},
}

var watchlistRmCmd = &cobra.Command{
	Use:     "rm <symbol>",
	Aliases: []string{"remove"},
	Short:   "Stop watching a symbol",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := market.NormalizeSymbol(args[0])
		if err != nil {
			return err
		}
		return withWatchlist(cmd, func(ctx context.Context, c *api.Client) ([]string, error) {
			return c.RemoveFromWatchlist(ctx, sym)
		})
	},
}

// withWatchlist runs one watchlist call and prints the resulting list.
func withWatchlist(cmd *cobra.Command, call func(context.Context, *api.Client) ([]string, error)) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requireSignIn(); err != nil {
		return err
	}

	symbols, err := call(cmd.Context(), e.client)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		fmt.Println("Watchlist is empty.")
		return nil
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	return nil
}

func init() {
	tickerCmd.Flags().BoolP("follow", "f", false, "Stream live updates until interrupted")
	tickerCmd.Flags().BoolP("watchlist", "w", false, "Use the watchlist instead of the default symbols")

	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRmCmd)
}
