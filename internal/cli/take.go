package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"learnpath-quiz/internal/attempt"
	"learnpath-quiz/internal/config"
	"learnpath-quiz/internal/domain"

	"github.com/spf13/cobra"
)

// NewTakeCmd runs a timed attempt in the terminal.
func NewTakeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "take <quiz-id>",
		Short: "Take a quiz: answer with the option number, 'f' to finish, 'q' to leave",
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
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			limit := config.TTLDuration(cfg.Attempt.DefaultTimeLimit, attempt.DefaultTimeLimit)
			result, err := runTake(ctx, client, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), attempt.WithDefaultTimeLimit(limit))
			if err != nil {
				return err
			}
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nreview later with: quizctl result %s\n", result.AttemptID)
			}
			return nil
		},
	}
}

// runTake drives one session from line input until it finishes, the user
// leaves or input ends. It returns the result when the attempt was finished.
func runTake(ctx context.Context, backend attempt.Backend, quizID string, in io.Reader, out io.Writer, opts ...attempt.Option) (*domain.Result, error) {
	session, err := attempt.Bootstrap(ctx, backend, quizID, opts...)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	updates, cancel := session.Subscribe()
	defer cancel()

	quiz := session.Quiz()
	fmt.Fprintf(out, "%s (%d questions)\n", quiz.Title, len(quiz.Questions))
	r := renderer{out: out, shown: -1, remaining: -1}
	// Subscribe always delivers the current snapshot first.
	r.render(<-updates)
	session.Start()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\ninterrupted; the attempt stays open")
			return nil, ctx.Err()

		case state, ok := <-updates:
			if !ok {
				return nil, nil
			}
			if result := r.render(state); result != nil {
				return result, nil
			}

		case line, ok := <-lines:
			if !ok {
				if state := session.State(); state.Result != nil {
					return r.render(state), nil
				}
				fmt.Fprintln(out, "input closed; the attempt stays open")
				return nil, nil
			}
			if leave := handleLine(ctx, session, line, out); leave {
				fmt.Fprintln(out, "leaving; the attempt stays open")
				return nil, nil
			}
		}
	}
}

func handleLine(ctx context.Context, session *attempt.Session, line string, out io.Writer) bool {
	switch strings.ToLower(line) {
	case "":
		return false
	case "q", "quit":
		return true
	case "f", "finish":
		if _, err := session.Finish(ctx); err != nil {
			fmt.Fprintf(out, "could not finish: %v (type f to retry)\n", err)
		}
		return false
	}

	n, err := strconv.Atoi(line)
	if err != nil {
		fmt.Fprintln(out, "type an option number, f or q")
		return false
	}
	if err := session.Select(n - 1); err != nil {
		if errors.Is(err, attempt.ErrFinishPending) {
			fmt.Fprintln(out, "answers are closed, type f to finish")
			return false
		}
		fmt.Fprintf(out, "%v\n", err)
		return false
	}
	if _, err := session.Submit(ctx); err != nil {
		switch {
		case errors.Is(err, attempt.ErrBusy):
			fmt.Fprintln(out, "still sending the previous answer")
		case errors.Is(err, domain.ErrAnswerSubmissionFailed):
			fmt.Fprintf(out, "%v (press the number again to retry)\n", err)
		default:
			fmt.Fprintf(out, "%v\n", err)
		}
	}
	return false
}

type renderer struct {
	out       io.Writer
	shown     int
	remaining int
	lastErr   string
}

// render prints what changed since the previous snapshot and returns the
// result once the attempt is finished.
func (r *renderer) render(state attempt.State) *domain.Result {
	if state.Result != nil {
		printResult(r.out, *state.Result)
		return state.Result
	}
	if state.Error != "" && state.Error != r.lastErr {
		fmt.Fprintf(r.out, "error: %s\n", state.Error)
	}
	r.lastErr = state.Error

	if state.Remaining != r.remaining {
		if r.remaining >= 0 && state.Remaining > 0 && (state.Remaining%60 == 0 || state.Remaining <= 10) {
			fmt.Fprintf(r.out, "time left %d:%02d\n", state.Remaining/60, state.Remaining%60)
		}
		r.remaining = state.Remaining
	}

	if state.Status == domain.AttemptInProgress && state.QuestionIndex != r.shown && state.Answered == state.QuestionIndex {
		r.shown = state.QuestionIndex
		q := state.Question
		fmt.Fprintf(r.out, "\n[%d/%d] %s  (%d:%02d left)\n", state.QuestionIndex+1, state.QuestionCount, q.Prompt, state.Remaining/60, state.Remaining%60)
		for i, option := range q.Options {
			fmt.Fprintf(r.out, "  %d) %s\n", i+1, option)
		}
	}
	return nil
}

func printResult(out io.Writer, result domain.Result) {
	fmt.Fprintf(out, "\nScore: %.1f%% (%d/%d correct), %s\n", result.Score, result.CorrectAnswers, result.TotalQuestions, result.Band())
	fmt.Fprintf(out, "%s Points earned: %d\n", result.Message(), result.PointsEarned())
}
