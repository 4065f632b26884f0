package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/abhisek/investory/internal/llm"
	"github.com/abhisek/investory/internal/store"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show progress history, backend call health and LLM cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openLocalStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		if err := printProgressHistory(ctx, s.SnapshotRepo()); err != nil {
			return err
		}
		if err := printEventStats(ctx, s.EventRepo()); err != nil {
			return err
		}
		return printLLMCost(ctx, s.EventRepo())
	},
}

func printProgressHistory(ctx context.Context, snaps store.SnapshotRepo) error {
	list, err := snaps.List(ctx, 10)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No progress recorded yet.")
		return nil
	}

	fmt.Println("Progress History")
	fmt.Println(strings.Repeat("─", 72))
	fmt.Printf("%-19s  %5s  %12s  %6s  %s\n", "Timestamp", "Level", "Balance", "Badges", "Completed")
	fmt.Println(strings.Repeat("─", 72))
	for _, sn := range list {
		completed := make([]string, len(sn.Data.CompletedLevels))
		for i, id := range sn.Data.CompletedLevels {
			completed[i] = fmt.Sprint(id)
		}
		fmt.Printf("%-19s  %5d  %12s  %6d  %s\n",
			sn.Timestamp.Local().Format("2006-01-02 15:04:05"),
			sn.Data.CurrentLevel,
			layout.FormatMoney(sn.Data.TotalBalance),
			sn.Data.BadgeCount,
			strings.Join(completed, ","))
	}
	return nil
}

func printEventStats(ctx context.Context, events store.EventRepo) error {
	stats, err := events.Stats(ctx)
	if err != nil {
		return fmt.Errorf("query event stats: %w", err)
	}
	if len(stats) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("Events by Kind")
	fmt.Println(strings.Repeat("─", 72))
	fmt.Printf("%-16s  %8s  %8s  %10s\n", "Kind", "Total", "Failed", "Avg Ms")
	fmt.Println(strings.Repeat("─", 72))
	for _, st := range stats {
		fmt.Printf("%-16s  %8d  %8d  %10.0f\n", st.Kind, st.Total, st.Failures, st.AvgMs)
	}
	return nil
}

type modelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// llmUsageByModel sums token usage of every logged LLM request.
func llmUsageByModel(ctx context.Context, events store.EventRepo) ([]modelUsage, error) {
	list, err := events.Query(ctx, store.QueryOpts{Kind: store.KindLLMRequest})
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}

	byModel := map[string]*modelUsage{}
	for _, e := range list {
		var d store.LLMRequestEventData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			continue
		}
		mu, ok := byModel[d.Model]
		if !ok {
			mu = &modelUsage{Model: d.Model}
			byModel[d.Model] = mu
		}
		mu.Calls++
		mu.InputTokens += d.InputTokens
		mu.OutputTokens += d.OutputTokens
	}

	out := make([]modelUsage, 0, len(byModel))
	for _, mu := range byModel {
		out = append(out, *mu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

func printLLMCost(ctx context.Context, events store.EventRepo) error {
	usage, err := llmUsageByModel(ctx, events)
	if err != nil {
		return err
	}
	if len(usage) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("Estimated LLM Cost (USD)")
	fmt.Println(strings.Repeat("─", 72))
	fmt.Printf("%-32s  %6s  %10s  %10s  %10s\n",
		"Model", "Calls", "Input", "Output", "Cost")
	fmt.Println(strings.Repeat("─", 72))

	var totalCost float64
	var unknownModels []string
	for _, mu := range usage {
		cost, ok := llm.LookupCost(mu.Model)
		if !ok {
			unknownModels = append(unknownModels, mu.Model)
			fmt.Printf("%-32s  %6d  %10d  %10d  %10s\n",
				truncate(mu.Model, 32), mu.Calls, mu.InputTokens, mu.OutputTokens, "?")
			continue
		}
		c := cost.Cost(mu.InputTokens, mu.OutputTokens)
		totalCost += c
		fmt.Printf("%-32s  %6d  %10d  %10d  %10s\n",
			truncate(mu.Model, 32), mu.Calls, mu.InputTokens, mu.OutputTokens, formatCost(c))
	}

	fmt.Println(strings.Repeat("─", 72))
	label := "TOTAL"
	if len(unknownModels) > 0 {
		label = "TOTAL (partial)"
	}
	fmt.Printf("%-32s  %6s  %10s  %10s  %10s\n", label, "", "", "", formatCost(totalCost))

	if len(unknownModels) > 0 {
		fmt.Printf("\nPricing unavailable for: %s\n", strings.Join(unknownModels, ", "))
	}
	return nil
}
