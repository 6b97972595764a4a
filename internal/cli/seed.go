package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"learnpath-quiz/internal/domain"
	pgloader "learnpath-quiz/internal/infra/postgres"
	infraredis "learnpath-quiz/internal/infra/redis"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewSeedCmd loads quizzes from a YAML or JSON file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Insert or replace quizzes from a YAML/JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			quizzes, err := parseSeed(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			if err := runMigrations(ctx, db); err != nil {
				return err
			}
			if err := pgloader.NewQuizWriter(db).Upsert(ctx, quizzes...); err != nil {
				return err
			}

			ids := make([]string, len(quizzes))
			for i, q := range quizzes {
				ids[i] = q.ID
			}
			if cfg.Redis.Addr != "" {
				client := newRedisClient(cfg)
				defer client.Close()
				if err := infraredis.NewQuizRepository(client, nil, 0).Invalidate(ctx, ids...); err != nil {
					log.Warn().Err(err).Msg("invalidate quiz cache")
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d quizzes\n", len(quizzes))
			return nil
		},
	}
}

// parseSeed reads a list of quizzes in any accepted document shape. JSON is
// valid YAML, so one decoder serves both.
func parseSeed(data []byte) ([]domain.Quiz, error) {
	var docs []any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	quizzes := make([]domain.Quiz, 0, len(docs))
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("quiz %d: %w", i, err)
		}
		quiz, err := domain.DecodeQuiz(raw)
		if err != nil {
			return nil, fmt.Errorf("quiz %d: %w", i, err)
		}
		if !domain.ValidIdentifier(quiz.ID) {
			return nil, fmt.Errorf("quiz %d (%q): %w", i, quiz.Title, domain.ErrInvalidIdentifier)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}
