package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnpath-quiz/internal/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeLimit applies when a quiz has no positive time limit.
const DefaultTimeLimit = 30 * time.Minute

type options struct {
	ticker           TickerFunc
	now              func() time.Time
	defaultTimeLimit time.Duration
	logger           zerolog.Logger
}

// Option customizes Bootstrap.
type Option func(*options)

// WithTicker replaces the one-second tick source.
func WithTicker(f TickerFunc) Option {
	return func(o *options) { o.ticker = f }
}

// WithClock sets the clock used to stamp answers.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDefaultTimeLimit overrides DefaultTimeLimit.
func WithDefaultTimeLimit(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultTimeLimit = d
		}
	}
}

// WithLogger sets the logger session events are written to.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Bootstrap loads the quiz, opens a server-side attempt and returns a session
// positioned on the first question. The countdown starts with Session.Start.
func Bootstrap(ctx context.Context, backend Backend, quizID string, opts ...Option) (*Session, error) {
	o := options{
		ticker:           NewStdTicker,
		now:              time.Now,
		defaultTimeLimit: DefaultTimeLimit,
		logger:           log.With().Str("component", "attempt").Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !domain.ValidIdentifier(quizID) {
		return nil, fmt.Errorf("%w: quiz id %q", domain.ErrInvalidIdentifier, quizID)
	}

	quiz, err := backend.GetQuiz(ctx, quizID)
	if err != nil {
		o.logger.Error().Err(err).Str("quiz_id", quizID).Msg("load quiz")
		if errors.Is(err, domain.ErrQuizNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrQuizNotFound, err)
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyQuiz, quizID)
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}

	attempt, err := backend.StartAttempt(ctx, quiz.ID)
	if err != nil {
		o.logger.Error().Err(err).Str("quiz_id", quiz.ID).Msg("start attempt")
		return nil, fmt.Errorf("%w: %w", domain.ErrAttemptCreationFailed, err)
	}
	if !domain.ValidIdentifier(attempt.ID) {
		return nil, fmt.Errorf("%w: backend returned no attempt id", domain.ErrAttemptCreationFailed)
	}

	remaining := int(o.defaultTimeLimit / time.Second)
	if quiz.TimeLimit > 0 {
		remaining = quiz.TimeLimit * 60
	}

	s := newSession(backend, quiz, attempt.ID, remaining, o)
	s.log.Info().Int("questions", len(quiz.Questions)).Int("remaining", remaining).Msg("attempt started")
	return s, nil
}

// Recap is what the result view shows for an attempt.
type Recap struct {
	Attempt domain.Attempt
	Quiz    domain.Quiz
	Result  domain.Result
}

// LoadRecap fetches a finished or in-progress attempt for redisplay.
func LoadRecap(ctx context.Context, backend Backend, attemptID string) (Recap, error) {
	if !domain.ValidIdentifier(attemptID) {
		return Recap{}, fmt.Errorf("%w: attempt id %q", domain.ErrInvalidIdentifier, attemptID)
	}
	attempt, err := backend.GetAttempt(ctx, attemptID)
	if err != nil {
		return Recap{}, err
	}
	quiz, err := backend.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return Recap{}, err
	}
	recap := Recap{
		Attempt: attempt,
		Quiz:    quiz,
		Result: domain.Result{
			AttemptID:      attempt.ID,
			TotalQuestions: len(quiz.Questions),
		},
	}
	if attempt.Score != nil {
		recap.Result.Score = *attempt.Score
		recap.Result.CorrectAnswers = int(*attempt.Score*float64(len(quiz.Questions))/100 + 0.5)
	}
	return recap, nil
}
