package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"learnpath-quiz/internal/catalog"
	"learnpath-quiz/internal/domain"

	"github.com/spf13/cobra"
)

// NewQuizzesCmd lists the catalog, optionally filtered.
func NewQuizzesCmd(configPath *string) *cobra.Command {
	var subject, difficulty string
	cmd := &cobra.Command{
		Use:   "quizzes",
		Short: "List available quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			client, err := newBackendClient(cfg)
			if err != nil {
				return err
			}
			all, err := client.ListQuizzes(cmd.Context())
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), all, catalog.Filter(all, subject, difficulty))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", catalog.All, "category to show")
	cmd.Flags().StringVar(&difficulty, "difficulty", catalog.All, "easy, medium or hard")
	return cmd
}

func printCatalog(out io.Writer, all, shown []domain.QuizSummary) {
	if len(shown) == 0 {
		fmt.Fprintln(out, "no quizzes match")
	} else {
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSUBJECT\tDIFFICULTY\tQUESTIONS\tMINUTES")
		for _, q := range shown {
			minutes := "-"
			if q.TimeLimit > 0 {
				minutes = fmt.Sprint(q.TimeLimit)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", q.ID, q.Title, q.Category, q.Difficulty, q.QuestionCount, minutes)
		}
		w.Flush()
	}
	if cats := catalog.Categories(all); len(cats) > 0 {
		fmt.Fprintf(out, "\nsubjects: %s\n", strings.Join(cats, ", "))
	}
}
