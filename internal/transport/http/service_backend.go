package http

import (
	"context"

	"learnpath-quiz/internal/app"
	"learnpath-quiz/internal/attempt"
	"learnpath-quiz/internal/domain"
)

// serviceBackend lets a server-hosted attempt.Session talk to the attempt
// service in-process, acting as one user.
type serviceBackend struct {
	service *app.AttemptService
	userID  string
}

var _ attempt.Backend = serviceBackend{}

func (b serviceBackend) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := b.service.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz.StudentView(), nil
}

func (b serviceBackend) StartAttempt(ctx context.Context, quizID string) (domain.Attempt, error) {
	return b.service.StartAttempt(ctx, quizID, b.userID)
}

func (b serviceBackend) SubmitAnswer(ctx context.Context, attemptID string, answer domain.AnswerSubmission) error {
	return b.service.SubmitAnswer(ctx, attemptID, answer)
}

func (b serviceBackend) FinishAttempt(ctx context.Context, attemptID string) (domain.Result, error) {
	return b.service.FinishAttempt(ctx, attemptID)
}

func (b serviceBackend) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return b.service.GetAttempt(ctx, attemptID)
}
