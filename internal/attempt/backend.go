package attempt

import (
	"context"

	"learnpath-quiz/internal/domain"
)

// Backend is the server contract a session consumes.
type Backend interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	StartAttempt(ctx context.Context, quizID string) (domain.Attempt, error)
	SubmitAnswer(ctx context.Context, attemptID string, answer domain.AnswerSubmission) error
	FinishAttempt(ctx context.Context, attemptID string) (domain.Result, error)
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
}
