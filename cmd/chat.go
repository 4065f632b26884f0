package cmd

import (
	"fmt"
	"strings"

	"github.com/abhisek/investory/internal/llm"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <question>...",
	Short: "Ask the tutor a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if e.cfg.LLM.Provider == llm.ProviderBackend {
			if err := e.requireSignIn(); err != nil {
				return err
			}
		}
		// Level context for the tutor; a stale local copy is fine here.
		if e.signedIn() {
			_ = e.hydrate(ctx, true)
		}

		assistant, err := e.newAssistant(ctx)
		if err != nil {
			return fmt.Errorf("tutor not configured: %w", err)
		}
		reply, err := assistant.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Println(reply.Answer)
		if len(reply.FollowUps) > 0 {
			fmt.Println()
			fmt.Println("You could also ask:")
			for _, f := range reply.FollowUps {
				fmt.Printf("  • %s\n", f)
			}
		}
		return nil
	},
}
