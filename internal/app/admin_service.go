package app

import (
	"context"
	"fmt"

	"learnpath-quiz/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// QuizWriter persists quiz documents.
type QuizWriter interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	// DeleteQuiz returns domain.ErrQuizNotFound when nothing was removed.
	DeleteQuiz(ctx context.Context, quizID string) error
}

// QuizCache is implemented by quiz repositories that keep copies of quizzes.
type QuizCache interface {
	Invalidate(ctx context.Context, quizIDs ...string) error
}

// QuizPatch carries the fields of a partial quiz update. Nil fields are left as they are.
type QuizPatch struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Category    *string            `json:"category"`
	Difficulty  *string            `json:"difficulty"`
	TimeLimit   *int               `json:"time_limit" validate:"omitempty,gte=0"`
	Questions   *[]domain.Question `json:"questions"`
}

// AdminService manages quiz content.
type AdminService struct {
	quizzes QuizRepository
	writer  QuizWriter
	newID   func() string
}

func NewAdminService(quizzes QuizRepository, writer QuizWriter) *AdminService {
	return &AdminService{
		quizzes: quizzes,
		writer:  writer,
		newID:   func() string { return uuid.NewString() },
	}
}

// CreateQuiz validates and stores a new quiz. An empty ID gets a generated one.
func (s *AdminService) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if quiz.ID == "" {
		quiz.ID = s.newID()
	}
	if !domain.ValidIdentifier(quiz.ID) {
		return domain.Quiz{}, domain.ErrInvalidIdentifier
	}
	quiz.Difficulty = domain.NormalizeDifficulty(string(quiz.Difficulty))
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.save(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	log.Info().Str("quiz_id", quiz.ID).Msg("quiz created")
	return quiz, nil
}

// UpdateQuiz applies a patch to an existing quiz.
func (s *AdminService) UpdateQuiz(ctx context.Context, quizID string, patch QuizPatch) (domain.Quiz, error) {
	if !domain.ValidIdentifier(quizID) {
		return domain.Quiz{}, domain.ErrInvalidIdentifier
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if patch.Title != nil {
		quiz.Title = *patch.Title
	}
	if patch.Description != nil {
		quiz.Description = *patch.Description
	}
	if patch.Category != nil {
		quiz.Category = *patch.Category
	}
	if patch.Difficulty != nil {
		quiz.Difficulty = domain.NormalizeDifficulty(*patch.Difficulty)
	}
	if patch.TimeLimit != nil {
		quiz.TimeLimit = *patch.TimeLimit
	}
	if patch.Questions != nil {
		quiz.Questions = append([]domain.Question(nil), (*patch.Questions)...)
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.save(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	log.Info().Str("quiz_id", quiz.ID).Msg("quiz updated")
	return quiz, nil
}

// DeleteQuiz removes a quiz. Attempts already made on it are kept.
func (s *AdminService) DeleteQuiz(ctx context.Context, quizID string) error {
	if !domain.ValidIdentifier(quizID) {
		return domain.ErrInvalidIdentifier
	}
	if err := s.writer.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.invalidate(ctx, quizID)
	log.Info().Str("quiz_id", quizID).Msg("quiz deleted")
	return nil
}

// CatalogStats counts the catalog by category and difficulty.
func (s *AdminService) CatalogStats(ctx context.Context) (domain.CatalogStats, error) {
	list, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return domain.CatalogStats{}, err
	}
	stats := domain.CatalogStats{
		TotalQuizzes: len(list),
		ByCategory:   make(map[string]int),
		ByDifficulty: make(map[domain.Difficulty]int),
	}
	for _, quiz := range list {
		stats.ByCategory[quiz.Category]++
		stats.ByDifficulty[quiz.Difficulty]++
	}
	return stats, nil
}

func (s *AdminService) save(ctx context.Context, quiz domain.Quiz) error {
	if err := s.writer.SaveQuiz(ctx, quiz); err != nil {
		return fmt.Errorf("save quiz %s: %w", quiz.ID, err)
	}
	s.invalidate(ctx, quiz.ID)
	return nil
}

// invalidate is best effort; a stale copy expires with its TTL.
func (s *AdminService) invalidate(ctx context.Context, quizID string) {
	cache, ok := s.quizzes.(QuizCache)
	if !ok {
		return
	}
	if err := cache.Invalidate(ctx, quizID); err != nil {
		log.Warn().Err(err).Str("quiz_id", quizID).Msg("invalidate quiz cache")
	}
}
