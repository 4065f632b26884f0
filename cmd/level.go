package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/progress"
	"github.com/abhisek/investory/internal/quiz"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show level progress, balance and badges",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.hydrate(cmd.Context(), true); err != nil {
			return err
		}
		snap := e.progress.Snapshot()

		fmt.Printf("Level %d of %d · Balance %s · %d badges\n\n",
			min(snap.CurrentLevel, levels.Count()), levels.Count(),
			layout.FormatMoney(snap.TotalBalance), len(snap.Badges))

		fmt.Printf("%-3s  %-28s  %-16s  %-7s  %s\n", "ID", "Title", "Status", "Tasks", "Quiz")
		fmt.Println(strings.Repeat("─", 72))
		for _, l := range levels.All() {
			lp := snap.Level(l.ID)
			score := "-"
			if lp.HasQuizAttempt() {
				score = fmt.Sprintf("%d/%d", lp.QuizScore, lp.TotalQuestions)
			}
			fmt.Printf("%-3d  %-28s  %-16s  %d/%-5d  %s\n",
				l.ID, truncate(l.Title, 28), e.svc.Phase(l.ID).Label(),
				completedCount(lp, l), len(l.Tasks), score)
		}

		if len(snap.Badges) > 0 {
			fmt.Println()
			fmt.Println("Badges")
			fmt.Println(strings.Repeat("─", 72))
			for _, b := range snap.Badges {
				earned := ""
				if !b.EarnedAt.IsZero() {
					earned = b.EarnedAt.Local().Format("2006-01-02")
				}
				fmt.Printf("★ %-30s  level %d  %s\n", b.BadgeName, b.LevelID, earned)
			}
		}
		return nil
	},
}

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Work through a level from the command line",
}

var levelShowCmd = &cobra.Command{
	Use:   "show <level>",
	Short: "Show a level's story, tasks and quiz",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.hydrate(cmd.Context(), true); err != nil {
			return err
		}
		lp := e.progress.Level(level.ID)
		sep := strings.Repeat("─", 60)

		fmt.Printf("Level %d: %s\n", level.ID, level.Title)
		fmt.Printf("Status:  %s\n", e.svc.Phase(level.ID).Label())
		fmt.Printf("Reward:  %s and the %q badge\n", layout.FormatMoney(level.RewardMoney), level.BadgeName)
		fmt.Println()
		fmt.Println(level.Story)

		fmt.Println()
		fmt.Println(sep)
		fmt.Println("TASKS")
		fmt.Println(sep)
		for _, t := range level.Tasks {
			mark := "[ ]"
			if lp.TasksCompleted.Contains(t.ID) {
				mark = "[x]"
			}
			fmt.Printf("%s %d. %s\n", mark, t.ID, t.Title)
		}

		showQuiz, _ := cmd.Flags().GetBool("quiz")
		if !showQuiz {
			return nil
		}
		fmt.Println(sep)
		fmt.Println("QUIZ")
		fmt.Println(sep)
		for i, q := range level.Questions {
			fmt.Printf("%d. %s\n", i+1, q.Text)
			for j, opt := range q.Options {
				fmt.Printf("   %c) %s\n", 'a'+j, opt)
			}
		}
		if lp.HasQuizAttempt() {
			fmt.Printf("\nLast attempt: %d/%d\n", lp.QuizScore, lp.TotalQuestions)
		}
		return nil
	},
}

var levelTaskCmd = &cobra.Command{
	Use:   "task <level> <task>...",
	Short: "Toggle one or more tasks",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.hydrate(cmd.Context(), false); err != nil {
			return err
		}
		var set progress.TaskSet
		for _, a := range args[1:] {
			id, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid task %q", a)
			}
			if set, err = e.svc.ToggleTask(level.ID, id); err != nil {
				return err
			}
		}
		if err := e.svc.Flush(cmd.Context()); err != nil {
			return fmt.Errorf("save tasks: %w", err)
		}

		done := 0
		for _, t := range level.Tasks {
			mark := "[ ]"
			if set.Contains(t.ID) {
				mark = "[x]"
				done++
			}
			fmt.Printf("%s %d. %s\n", mark, t.ID, t.Title)
		}
		if done == len(level.Tasks) {
			fmt.Printf("\nAll tasks done. Take the quiz with `investory level quiz %d <answers>`.\n", level.ID)
		}
		return nil
	},
}

var levelQuizCmd = &cobra.Command{
	Use:   "quiz <level> <answers>",
	Short: "Submit quiz answers, one option letter per question (e.g. bacdbab)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(args[0])
		if err != nil {
			return err
		}
		answers, err := parseAnswers(level, args[1])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		if err := e.hydrate(ctx, false); err != nil {
			return err
		}
		if err := e.svc.StartQuiz(level.ID); err != nil {
			return err
		}
		result, err := e.svc.SubmitQuiz(ctx, level.ID, answers)
		if err != nil && result.Total == 0 {
			return err
		}

		for i, q := range level.Questions {
			mark := "✗"
			if answers[q.ID] == q.CorrectOption {
				mark = "✓"
			}
			fmt.Printf("%s %d. %s\n", mark, i+1, q.Text)
			if mark == "✗" {
				fmt.Printf("    %s\n", q.Explanation)
			}
		}
		fmt.Println()
		if result.Passed {
			fmt.Printf("Passed with %s. Claim the reward with `investory level settle %d`.\n", result.Display(), level.ID)
		} else {
			fmt.Printf("Scored %s; %.0f%% is needed. Retry with `investory level retry %d`.\n",
				result.Display(), quiz.PassThreshold, level.ID)
		}
		if err != nil {
			return fmt.Errorf("attempt recorded locally only: %w", err)
		}
		return nil
	},
}

var levelSettleCmd = &cobra.Command{
	Use:   "settle <level>",
	Short: "Claim the reward for a passed level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		if err := e.hydrate(ctx, false); err != nil {
			return err
		}
		reward, err := e.svc.Settle(ctx, level.ID)
		if err != nil {
			return err
		}

		if reward.AlreadyCompleted {
			fmt.Printf("Level %d was already completed.\n", level.ID)
		} else {
			fmt.Printf("Level %d complete! +%s\n", level.ID, layout.FormatMoney(reward.MoneyAwarded))
		}
		fmt.Printf("Badge:    ★ %s\n", reward.Badge.BadgeName)
		fmt.Printf("Balance:  %s\n", layout.FormatMoney(reward.NewBalance))
		if next, ok := levels.Get(level.ID + 1); ok {
			fmt.Printf("Unlocked: %s\n", next.Title)
		}
		return nil
	},
}

var levelRetryCmd = &cobra.Command{
	Use:   "retry <level>",
	Short: "Reset a failed quiz so it can be taken again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		if err := e.hydrate(ctx, false); err != nil {
			return err
		}
		if err := e.svc.Retry(ctx, level.ID); err != nil {
			return err
		}
		fmt.Printf("Quiz for level %d reset. Tasks are kept.\n", level.ID)
		return nil
	},
}

func init() {
	levelShowCmd.Flags().BoolP("quiz", "q", false, "Also print the quiz questions")

	levelCmd.AddCommand(levelShowCmd)
	levelCmd.AddCommand(levelTaskCmd)
	levelCmd.AddCommand(levelQuizCmd)
	levelCmd.AddCommand(levelSettleCmd)
	levelCmd.AddCommand(levelRetryCmd)
}

func parseLevel(arg string) (levels.Level, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return levels.Level{}, fmt.Errorf("invalid level %q", arg)
	}
	l, ok := levels.Get(id)
	if !ok {
		return levels.Level{}, fmt.Errorf("no level %d (levels are 1-%d)", id, levels.Count())
	}
	return l, nil
}

// parseAnswers reads one option letter per question in order. Commas and
// spaces between letters are ignored.
func parseAnswers(level levels.Level, arg string) (quiz.Answers, error) {
	var letters []rune
	for _, r := range strings.ToLower(arg) {
		if r == ',' || unicode.IsSpace(r) {
			continue
		}
		letters = append(letters, r)
	}
	if len(letters) != len(level.Questions) {
		return nil, fmt.Errorf("level %d has %d questions, got %d answers", level.ID, len(level.Questions), len(letters))
	}

	answers := make(quiz.Answers, len(letters))
	for i, q := range level.Questions {
		opt := int(letters[i] - 'a')
		if opt < 0 || opt >= len(q.Options) {
			return nil, fmt.Errorf("question %d: %q is not one of a-%c", i+1, letters[i], 'a'+len(q.Options)-1)
		}
		answers[q.ID] = opt
	}
	return answers, nil
}

func completedCount(lp progress.LevelProgress, l levels.Level) int {
	n := 0
	for _, t := range l.Tasks {
		if lp.TasksCompleted.Contains(t.ID) {
			n++
		}
	}
	return n
}

