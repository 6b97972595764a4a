package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"learnpath-quiz/internal/catalog"
	"learnpath-quiz/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

// AttemptRepository abstracts how attempts are stored (in-memory, Redis, etc).
type AttemptRepository interface {
	Create(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	// Update applies fn atomically to the stored attempt and persists the result.
	Update(ctx context.Context, attemptID string, fn func(*domain.Attempt) error) (domain.Attempt, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error)
}

// EventPublisher announces attempt lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

const (
	EventAttemptStarted  = "attempt.started"
	EventAttemptFinished = "attempt.finished"
)

// AttemptStartedEvent is published when a student opens an attempt.
type AttemptStartedEvent struct {
	AttemptID string    `json:"attempt_id"`
	QuizID    string    `json:"quiz_id"`
	UserID    string    `json:"user_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// AttemptFinishedEvent carries the score of a sealed attempt.
type AttemptFinishedEvent struct {
	domain.Result
	QuizID     string    `json:"quiz_id"`
	UserID     string    `json:"user_id,omitempty"`
	Category   string    `json:"category"`
	FinishedAt time.Time `json:"finished_at"`
}

// AttemptService contains the attempt lifecycle use cases.
type AttemptService struct {
	quizzes  QuizRepository
	attempts AttemptRepository
	events   EventPublisher
	now      func() time.Time
	newID    func() string
}

func NewAttemptService(quizzes QuizRepository, attempts AttemptRepository, events EventPublisher) *AttemptService {
	return &AttemptService{
		quizzes:  quizzes,
		attempts: attempts,
		events:   events,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(quizzes QuizRepository, attempts AttemptRepository, events EventPublisher, now func() time.Time) *AttemptService {
	s := NewAttemptService(quizzes, attempts, events)
	s.now = now
	return s
}

// ListQuizzes returns the catalog filtered by subject and difficulty ("all" matches anything).
func (s *AttemptService) ListQuizzes(ctx context.Context, subject, difficulty string) ([]domain.QuizSummary, error) {
	all, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(all, subject, difficulty), nil
}

// GetQuiz returns the full quiz, answers included. Transports must serve StudentView.
func (s *AttemptService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if !domain.ValidIdentifier(quizID) {
		return domain.Quiz{}, domain.ErrInvalidIdentifier
	}
	return s.quizzes.GetQuiz(ctx, quizID)
}

// StartAttempt opens a new in-progress attempt for a quiz.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error) {
	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.Attempt{}, domain.ErrEmptyQuiz
	}

	attempt := domain.Attempt{
		ID:        s.newID(),
		QuizID:    quiz.ID,
		UserID:    userID,
		StartedAt: s.now().UTC(),
		Status:    domain.AttemptInProgress,
		Answers:   []domain.Answer{},
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}

	s.publish(ctx, EventAttemptStarted, AttemptStartedEvent{
		AttemptID: attempt.ID,
		QuizID:    attempt.QuizID,
		UserID:    userID,
		StartedAt: attempt.StartedAt,
	})
	log.Info().Str("attempt_id", attempt.ID).Str("quiz_id", quiz.ID).Str("user_id", userID).Msg("attempt started")
	return attempt, nil
}

// SubmitAnswer records the answer for the next unanswered question. Re-sending the
// answer already recorded for a question is accepted without change.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID string, submission domain.AnswerSubmission) error {
	if !domain.ValidIdentifier(attemptID) {
		return domain.ErrInvalidIdentifier
	}
	current, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, current.QuizID)
	if err != nil {
		return err
	}

	_, err = s.attempts.Update(ctx, attemptID, func(a *domain.Attempt) error {
		if a.Status == domain.AttemptFinished {
			return domain.ErrAttemptFinished
		}
		idx := submission.QuestionIndex
		if idx < len(a.Answers) {
			if a.Answers[idx].SelectedOption == submission.SelectedOption {
				return nil
			}
			return fmt.Errorf("%w: question %d already answered", domain.ErrQuestionOutOfOrder, idx)
		}
		if idx != len(a.Answers) || idx >= len(quiz.Questions) {
			return fmt.Errorf("%w: got %d, expected %d", domain.ErrQuestionOutOfOrder, idx, len(a.Answers))
		}
		question := quiz.Questions[idx]
		if submission.SelectedOption < 0 || submission.SelectedOption >= len(question.Options) {
			return fmt.Errorf("%w: %d", domain.ErrInvalidOption, submission.SelectedOption)
		}
		a.Answers = append(a.Answers, domain.Answer{
			QuestionIndex:  idx,
			QuestionID:     question.ID,
			SelectedOption: submission.SelectedOption,
			SubmittedAt:    s.now().UTC(),
		})
		return nil
	})
	return err
}

// FinishAttempt seals the attempt and scores it. Finishing twice returns the stored score.
func (s *AttemptService) FinishAttempt(ctx context.Context, attemptID string) (domain.Result, error) {
	if !domain.ValidIdentifier(attemptID) {
		return domain.Result{}, domain.ErrInvalidIdentifier
	}
	current, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Result{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, current.QuizID)
	if err != nil {
		return domain.Result{}, err
	}

	alreadyFinished := false
	attempt, err := s.attempts.Update(ctx, attemptID, func(a *domain.Attempt) error {
		if a.Status == domain.AttemptFinished {
			alreadyFinished = true
			return nil
		}
		result := Score(quiz, *a)
		now := s.now().UTC()
		a.Status = domain.AttemptFinished
		a.FinishedAt = &now
		a.Score = &result.Score
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}

	result := Score(quiz, attempt)
	if alreadyFinished {
		return result, nil
	}

	finishedAt := s.now().UTC()
	if attempt.FinishedAt != nil {
		finishedAt = *attempt.FinishedAt
	}
	s.publish(ctx, EventAttemptFinished, AttemptFinishedEvent{
		Result:     result,
		QuizID:     quiz.ID,
		UserID:     attempt.UserID,
		Category:   quiz.Category,
		FinishedAt: finishedAt,
	})
	log.Info().Str("attempt_id", attemptID).Float64("score", result.Score).Msg("attempt finished")
	return result, nil
}

// GetAttempt returns an attempt for result redisplay.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	if !domain.ValidIdentifier(attemptID) {
		return domain.Attempt{}, domain.ErrInvalidIdentifier
	}
	return s.attempts.Get(ctx, attemptID)
}

// History lists a user's attempts.
func (s *AttemptService) History(ctx context.Context, userID string) ([]domain.Attempt, error) {
	if !domain.ValidIdentifier(userID) {
		return nil, domain.ErrInvalidIdentifier
	}
	return s.attempts.ListByUser(ctx, userID)
}

// QuizStats summarizes every attempt made on a quiz. The average covers finished
// attempts only.
func (s *AttemptService) QuizStats(ctx context.Context, quizID string) (domain.QuizStats, error) {
	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizStats{}, err
	}
	attempts, err := s.attempts.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		return domain.QuizStats{}, err
	}

	stats := domain.QuizStats{
		QuizID:        quiz.ID,
		QuizTitle:     quiz.Title,
		TotalAttempts: len(attempts),
	}
	total := 0.0
	for _, attempt := range attempts {
		if attempt.Status != domain.AttemptFinished {
			continue
		}
		stats.CompletedAttempts++
		if attempt.Score != nil {
			total += *attempt.Score
		} else {
			total += Score(quiz, attempt).Score
		}
	}
	if stats.CompletedAttempts > 0 {
		stats.AverageScore = round2(total / float64(stats.CompletedAttempts))
	}
	if stats.TotalAttempts > 0 {
		stats.CompletionRate = round2(float64(stats.CompletedAttempts) / float64(stats.TotalAttempts) * 100)
	}
	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *AttemptService) publish(ctx context.Context, key string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, payload); err != nil {
		log.Warn().Err(err).Str("event", key).Msg("publish event")
	}
}

// Score grades an attempt against the quiz: percentage of correct answers over all questions.
func Score(quiz domain.Quiz, attempt domain.Attempt) domain.Result {
	correct := 0
	for _, answer := range attempt.Answers {
		if answer.QuestionIndex < 0 || answer.QuestionIndex >= len(quiz.Questions) {
			continue
		}
		if quiz.Questions[answer.QuestionIndex].CorrectOption == answer.SelectedOption {
			correct++
		}
	}
	total := len(quiz.Questions)
	score := 0.0
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}
	return domain.Result{
		AttemptID:      attempt.ID,
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: total,
	}
}
