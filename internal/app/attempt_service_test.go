package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"learnpath-quiz/internal/app"
	"learnpath-quiz/internal/domain"
	"learnpath-quiz/internal/infra/memory"
)

func TestAttemptLifecycleAndScoring(t *testing.T) {
	ctx := context.Background()
	service, events := newTestService()

	attempt, err := service.StartAttempt(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if attempt.Status != domain.AttemptInProgress || attempt.ID == "" {
		t.Fatalf("unexpected attempt: %+v", attempt)
	}

	for i, option := range []int{1, 0, 2} {
		err := service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: i, SelectedOption: option})
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	result, err := service.FinishAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	// q1 and q2 correct, q3 wrong
	if result.CorrectAnswers != 2 || result.TotalQuestions != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Score < 66.6 || result.Score > 66.7 {
		t.Fatalf("expected 66.67%%, got %v", result.Score)
	}

	stored, err := service.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != domain.AttemptFinished || stored.FinishedAt == nil || stored.Score == nil {
		t.Fatalf("attempt not sealed: %+v", stored)
	}

	keys := events.keys()
	if len(keys) != 2 || keys[0] != app.EventAttemptStarted || keys[1] != app.EventAttemptFinished {
		t.Fatalf("unexpected events: %v", keys)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, events := newTestService()

	attempt, _ := service.StartAttempt(ctx, "quiz-1", "u1")
	_ = service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: 0, SelectedOption: 1})

	first, err := service.FinishAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	second, err := service.FinishAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("second finish failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
	// unanswered questions count as wrong
	if first.CorrectAnswers != 1 || first.TotalQuestions != 3 {
		t.Fatalf("unexpected result: %+v", first)
	}
	if n := len(events.keys()); n != 2 {
		t.Fatalf("expected one finished event, got %d events", n)
	}

	err = service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: 1, SelectedOption: 0})
	if !errors.Is(err, domain.ErrAttemptFinished) {
		t.Fatalf("expected finished error, got %v", err)
	}
}

func TestSubmitAnswerOrdering(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	attempt, _ := service.StartAttempt(ctx, "quiz-1", "u1")

	err := service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: 1, SelectedOption: 0})
	if !errors.Is(err, domain.ErrQuestionOutOfOrder) {
		t.Fatalf("expected out of order, got %v", err)
	}
	err = service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: 0, SelectedOption: 4})
	if !errors.Is(err, domain.ErrInvalidOption) {
		t.Fatalf("expected invalid option, got %v", err)
	}

	if err := service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: 0, SelectedOption: 2}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	// a retried request carrying the same answer is fine
	if err := service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: 0, SelectedOption: 2}); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	err = service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: 0, SelectedOption: 1})
	if !errors.Is(err, domain.ErrQuestionOutOfOrder) {
		t.Fatalf("expected conflicting answer to be refused, got %v", err)
	}

	stored, _ := service.GetAttempt(ctx, attempt.ID)
	if len(stored.Answers) != 1 || stored.Answers[0].QuestionID != "q1" {
		t.Fatalf("unexpected answers: %+v", stored.Answers)
	}
}

func TestStartAttemptErrors(t *testing.T) {
	ctx := context.Background()
	service, events := newTestService()

	if _, err := service.StartAttempt(ctx, "undefined", "u1"); !errors.Is(err, domain.ErrInvalidIdentifier) {
		t.Fatalf("expected invalid identifier, got %v", err)
	}
	if _, err := service.StartAttempt(ctx, "quiz-unknown", "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if _, err := service.StartAttempt(ctx, "empty", "u1"); !errors.Is(err, domain.ErrEmptyQuiz) {
		t.Fatalf("expected empty quiz, got %v", err)
	}
	if _, err := service.FinishAttempt(ctx, "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt not found, got %v", err)
	}
	if n := len(events.keys()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestListQuizzesAndHistory(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	list, err := service.ListQuizzes(ctx, "math", "all")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 math quizzes, got %+v", list)
	}
	list, _ = service.ListQuizzes(ctx, "all", "MEDIUM")
	if len(list) != 1 || list[0].ID != "quiz-1" {
		t.Fatalf("expected medium quiz, got %+v", list)
	}

	_, _ = service.StartAttempt(ctx, "quiz-1", "u1")
	_, _ = service.StartAttempt(ctx, "quiz-1", "u2")
	history, err := service.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].UserID != "u1" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestQuizStats(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	run := func(userID string, options []int, finish bool) {
		attempt, err := service.StartAttempt(ctx, "quiz-1", userID)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		for i, option := range options {
			if err := service.SubmitAnswer(ctx, attempt.ID, domain.AnswerSubmission{QuestionIndex: i, SelectedOption: option}); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		if finish {
			if _, err := service.FinishAttempt(ctx, attempt.ID); err != nil {
				t.Fatalf("finish: %v", err)
			}
		}
	}

	stats, err := service.QuizStats(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 0 || stats.AverageScore != 0 || stats.CompletionRate != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	run("u1", []int{1, 0, 1}, true)
	run("u2", []int{0, 1, 0}, true)
	run("u3", []int{1}, false)

	stats, err = service.QuizStats(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.QuizTitle != "Arithmetic" || stats.TotalAttempts != 3 || stats.CompletedAttempts != 2 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.AverageScore != 50 || stats.CompletionRate != 66.67 {
		t.Fatalf("unexpected averages: %+v", stats)
	}

	if _, err := service.QuizStats(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, key)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newTestService() (*app.AttemptService, *recordingPublisher) {
	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID:         "quiz-1",
			Title:      "Arithmetic",
			Category:   "math",
			Difficulty: domain.DifficultyMedium,
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
				{ID: "q2", Prompt: "What is 3 * 3?", Options: []string{"9", "6", "3"}, CorrectOption: 0},
				{ID: "q3", Prompt: "What is 10 / 2?", Options: []string{"2", "5", "20"}, CorrectOption: 1},
			},
		},
		"empty": {ID: "empty", Title: "Draft", Category: "math", Difficulty: domain.DifficultyEasy},
	})
	quizRepo := memory.NewQuizRepository(loader, time.Minute)
	events := &recordingPublisher{}
	clock := func() time.Time { return time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC) }
	return app.NewAttemptServiceWithClock(quizRepo, memory.NewAttemptStore(), events, clock), events
}
