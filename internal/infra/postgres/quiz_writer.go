package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"learnpath-quiz/internal/domain"

	"github.com/uptrace/bun"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        string          `bun:"id,pk"`
	Data      json.RawMessage `bun:"data,type:jsonb"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// QuizWriter stores quiz documents through bun.
type QuizWriter struct {
	db *bun.DB
}

func NewQuizWriter(db *bun.DB) *QuizWriter {
	return &QuizWriter{db: db}
}

// Upsert inserts the quizzes, replacing the document of any existing ID.
func (w *QuizWriter) Upsert(ctx context.Context, quizzes ...domain.Quiz) error {
	if len(quizzes) == 0 {
		return nil
	}
	rows := make([]quizRow, 0, len(quizzes))
	for _, quiz := range quizzes {
		if !domain.ValidIdentifier(quiz.ID) {
			return fmt.Errorf("quiz %q: %w", quiz.Title, domain.ErrInvalidIdentifier)
		}
		data, err := json.Marshal(quiz)
		if err != nil {
			return fmt.Errorf("marshal quiz %s: %w", quiz.ID, err)
		}
		rows = append(rows, quizRow{ID: quiz.ID, Data: data})
	}
	_, err := w.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert quizzes: %w", err)
	}
	return nil
}

// SaveQuiz stores one quiz document.
func (w *QuizWriter) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	return w.Upsert(ctx, quiz)
}

// DeleteQuiz removes a quiz row; a missing row is domain.ErrQuizNotFound.
func (w *QuizWriter) DeleteQuiz(ctx context.Context, quizID string) error {
	res, err := w.db.NewDelete().
		Model((*quizRow)(nil)).
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete quiz %s: %w", quizID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}
