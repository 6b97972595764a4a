package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"learnpath-quiz/internal/domain"
)

var errUnavailable = errors.New("backend unavailable")

type fakeBackend struct {
	mu sync.Mutex

	quizzes map[string]domain.Quiz

	getQuizErr   error
	startErr     error
	startID      string
	submitErrs   []error
	finishErrs   []error
	submitGate   chan struct{}
	finishGate   chan struct{}
	finishEnter  chan struct{}
	finishResult domain.Result

	getQuizCalls int
	startCalls   int
	submitted    []domain.AnswerSubmission
	submitCalls  int
	finishCalls  int
}

func newFakeBackend(quizzes ...domain.Quiz) *fakeBackend {
	b := &fakeBackend{
		quizzes:      make(map[string]domain.Quiz),
		startID:      "attempt-1",
		finishResult: domain.Result{Score: 100},
	}
	for _, q := range quizzes {
		b.quizzes[q.ID] = q
	}
	return b
}

func (b *fakeBackend) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getQuizCalls++
	if b.getQuizErr != nil {
		return domain.Quiz{}, b.getQuizErr
	}
	quiz, ok := b.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz.StudentView(), nil
}

func (b *fakeBackend) StartAttempt(_ context.Context, quizID string) (domain.Attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startCalls++
	if b.startErr != nil {
		return domain.Attempt{}, b.startErr
	}
	return domain.Attempt{ID: b.startID, QuizID: quizID, Status: domain.AttemptInProgress}, nil
}

func (b *fakeBackend) SubmitAnswer(_ context.Context, _ string, answer domain.AnswerSubmission) error {
	b.mu.Lock()
	b.submitCalls++
	gate := b.submitGate
	var err error
	if len(b.submitErrs) > 0 {
		err = b.submitErrs[0]
		b.submitErrs = b.submitErrs[1:]
	}
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.submitted = append(b.submitted, answer)
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) FinishAttempt(_ context.Context, attemptID string) (domain.Result, error) {
	b.mu.Lock()
	b.finishCalls++
	gate, enter := b.finishGate, b.finishEnter
	var err error
	if len(b.finishErrs) > 0 {
		err = b.finishErrs[0]
		b.finishErrs = b.finishErrs[1:]
	}
	result := b.finishResult
	b.mu.Unlock()

	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.Result{}, err
	}
	result.AttemptID = attemptID
	return result, nil
}

func (b *fakeBackend) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	score := b.finishResult.Score
	return domain.Attempt{ID: attemptID, QuizID: "quiz-1", Status: domain.AttemptFinished, Score: &score}, nil
}

func (b *fakeBackend) counts() (submits, finishes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitCalls, b.finishCalls
}

func threeQuestionQuiz(timeLimit int) domain.Quiz {
	q := func(id, prompt string, correct int) domain.Question {
		return domain.Question{ID: id, Prompt: prompt, Options: []string{"a", "b", "c", "d"}, CorrectOption: correct}
	}
	return domain.Quiz{
		ID:         "quiz-1",
		Title:      "Arithmetic",
		Category:   "math",
		Difficulty: domain.DifficultyEasy,
		TimeLimit:  timeLimit,
		Questions: []domain.Question{
			q("q1", "1 + 1", 2),
			q("q2", "2 + 2", 3),
			q("q3", "3 + 3", 1),
		},
	}
}

type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

func (m *manualTicker) factory() TickerFunc {
	return func(time.Duration) Ticker { return m }
}
