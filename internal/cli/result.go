package cli

import (
	"fmt"
	"time"

	"learnpath-quiz/internal/attempt"

	"github.com/spf13/cobra"
)

// NewResultCmd shows the outcome of an attempt.
func NewResultCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "result <attempt-id>",
		Short: "Show the result of an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			client, err := newBackendClient(cfg)
			if err != nil {
				return err
			}
			recap, err := attempt.LoadRecap(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			printRecap(cmd, recap)
			return nil
		},
	}
}

func printRecap(cmd *cobra.Command, recap attempt.Recap) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", recap.Quiz.Title, recap.Attempt.Status)
	if !recap.Attempt.StartedAt.IsZero() {
		fmt.Fprintf(out, "started %s", recap.Attempt.StartedAt.Local().Format("2006-01-02 15:04"))
		if recap.Attempt.FinishedAt != nil {
			fmt.Fprintf(out, ", took %s", recap.Attempt.FinishedAt.Sub(recap.Attempt.StartedAt).Round(time.Second))
		}
		fmt.Fprintln(out)
	}
	if recap.Attempt.Score != nil {
		printResult(out, recap.Result)
	}

	for _, answer := range recap.Attempt.Answers {
		if answer.QuestionIndex < 0 || answer.QuestionIndex >= len(recap.Quiz.Questions) {
			continue
		}
		q := recap.Quiz.Questions[answer.QuestionIndex]
		chosen := "?"
		if answer.SelectedOption >= 0 && answer.SelectedOption < len(q.Options) {
			chosen = q.Options[answer.SelectedOption]
		}
		fmt.Fprintf(out, "  %d. %s -> %s\n", answer.QuestionIndex+1, q.Prompt, chosen)
	}
	if skipped := len(recap.Quiz.Questions) - len(recap.Attempt.Answers); skipped > 0 {
		fmt.Fprintf(out, "  %d unanswered\n", skipped)
	}
}
