package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"learnpath-quiz/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrBusy is returned while a submission or finish call is still in flight.
var ErrBusy = errors.New("a request is already in flight")

// ErrFinishPending is returned by Select and Submit once time ran out or a finish
// was attempted; only Finish may be retried from then on.
var ErrFinishPending = errors.New("attempt is being finished")

// NoSelection marks the absence of a pending option.
const NoSelection = -1

// State is a snapshot of a session for rendering.
type State struct {
	QuizID        string               `json:"quizId"`
	QuizTitle     string               `json:"quizTitle"`
	AttemptID     string               `json:"attemptId"`
	QuestionIndex int                  `json:"questionIndex"`
	QuestionCount int                  `json:"questionCount"`
	Question      domain.Question      `json:"question"`
	Selected      int                  `json:"selected"`
	Remaining     int                  `json:"remaining"`
	Status        domain.AttemptStatus `json:"status"`
	Busy          bool                 `json:"busy"`
	Answered      int                  `json:"answered"`
	Result        *domain.Result       `json:"result,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// Session coordinates one attempt question by question.
type Session struct {
	backend   Backend
	quiz      domain.Quiz
	attemptID string
	now       func() time.Time
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	timer  *Timer
	finish singleflight.Group

	mu          sync.Mutex
	current     int
	selected    int
	remaining   int
	status      domain.AttemptStatus
	submitting  bool
	finishing   bool
	sealed      bool
	answers     []domain.Answer
	result      *domain.Result
	lastErr     error
	closed      bool
	subscribers map[chan State]struct{}
}

func newSession(backend Backend, quiz domain.Quiz, attemptID string, remaining int, o options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		backend:     backend,
		quiz:        quiz,
		attemptID:   attemptID,
		now:         o.now,
		log:         o.logger.With().Str("quiz_id", quiz.ID).Str("attempt_id", attemptID).Logger(),
		ctx:         ctx,
		cancel:      cancel,
		selected:    NoSelection,
		remaining:   remaining,
		status:      domain.AttemptInProgress,
		answers:     make([]domain.Answer, 0, len(quiz.Questions)),
		subscribers: make(map[chan State]struct{}),
	}
	s.timer = NewTimer(time.Second, o.ticker, s.tick)
	return s
}

// AttemptID returns the server-side attempt identifier.
func (s *Session) AttemptID() string { return s.attemptID }

// Quiz returns the quiz the session runs.
func (s *Session) Quiz() domain.Quiz { return s.quiz }

// Start launches the countdown.
func (s *Session) Start() {
	s.mu.Lock()
	ok := s.status == domain.AttemptInProgress && s.remaining > 0 && !s.closed
	s.mu.Unlock()
	if ok {
		s.timer.Start()
	}
}

// TimerRunning reports whether the countdown is active.
func (s *Session) TimerRunning() bool { return s.timer.IsRunning() }

// Select records the pending option for the current question.
func (s *Session) Select(option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.AttemptInProgress {
		return domain.ErrAttemptFinished
	}
	if s.sealed {
		return ErrFinishPending
	}
	if len(s.answers) == len(s.quiz.Questions) {
		return domain.ErrQuestionOutOfOrder
	}
	question := s.quiz.Questions[s.current]
	if option < 0 || option >= len(question.Options) {
		return fmt.Errorf("%w: %d of %d", domain.ErrInvalidOption, option, len(question.Options))
	}
	s.selected = option
	s.broadcastLocked()
	return nil
}

// Submit sends the pending answer and advances. With nothing selected it does nothing
// and reports false. On the last question a successful submission triggers Finish.
func (s *Session) Submit(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.status != domain.AttemptInProgress {
		s.mu.Unlock()
		return false, domain.ErrAttemptFinished
	}
	if s.sealed {
		s.mu.Unlock()
		return false, ErrFinishPending
	}
	if s.selected == NoSelection {
		s.mu.Unlock()
		return false, nil
	}
	if s.submitting || s.finishing {
		s.mu.Unlock()
		return false, ErrBusy
	}
	index, option := s.current, s.selected
	question := s.quiz.Questions[index]
	s.submitting = true
	s.broadcastLocked()
	s.mu.Unlock()

	err := s.backend.SubmitAnswer(ctx, s.attemptID, domain.AnswerSubmission{
		QuestionIndex:  index,
		QuestionID:     question.ID,
		SelectedOption: option,
	})

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.lastErr = fmt.Errorf("%w: %w", domain.ErrAnswerSubmissionFailed, err)
		wrapped := s.lastErr
		s.broadcastLocked()
		s.mu.Unlock()
		s.log.Warn().Err(err).Int("question", index).Msg("answer submission failed")
		return false, wrapped
	}
	if s.status != domain.AttemptInProgress {
		// sealed by the timer while the call was in flight
		s.broadcastLocked()
		s.mu.Unlock()
		return false, domain.ErrAttemptFinished
	}
	s.answers = append(s.answers, domain.Answer{
		QuestionIndex:  index,
		QuestionID:     question.ID,
		SelectedOption: option,
		SubmittedAt:    s.now(),
	})
	s.lastErr = nil
	s.selected = NoSelection
	last := index == len(s.quiz.Questions)-1
	if !last {
		s.current++
	}
	s.broadcastLocked()
	s.mu.Unlock()

	if last {
		if _, err := s.Finish(ctx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Finish seals the attempt. Concurrent and repeated calls share a single backend
// finalize call; after success the cached result is returned.
func (s *Session) Finish(ctx context.Context) (domain.Result, error) {
	if result, ok := s.finished(); ok {
		return result, nil
	}

	v, err, _ := s.finish.Do(s.attemptID, func() (interface{}, error) {
		if result, ok := s.finished(); ok {
			return result, nil
		}

		s.mu.Lock()
		s.finishing = true
		s.sealed = true
		s.broadcastLocked()
		s.mu.Unlock()

		result, err := s.backend.FinishAttempt(ctx, s.attemptID)

		s.mu.Lock()
		s.finishing = false
		if err != nil {
			s.lastErr = fmt.Errorf("%w: %w", domain.ErrFinishFailed, err)
			wrapped := s.lastErr
			s.broadcastLocked()
			s.mu.Unlock()
			s.log.Warn().Err(err).Msg("finish failed")
			return domain.Result{}, wrapped
		}
		if result.AttemptID == "" {
			result.AttemptID = s.attemptID
		}
		s.status = domain.AttemptFinished
		s.result = &result
		s.lastErr = nil
		s.broadcastLocked()
		s.mu.Unlock()

		s.timer.Stop()
		s.log.Info().Float64("score", result.Score).Msg("attempt finished")
		return result, nil
	})
	if err != nil {
		return domain.Result{}, err
	}
	return v.(domain.Result), nil
}

func (s *Session) finished() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.AttemptFinished && s.result != nil {
		return *s.result, true
	}
	return domain.Result{}, false
}

func (s *Session) tick() {
	s.mu.Lock()
	if s.status != domain.AttemptInProgress || s.remaining <= 0 || s.closed {
		s.mu.Unlock()
		s.timer.Stop()
		return
	}
	s.remaining--
	expired := s.remaining == 0
	if expired {
		s.sealed = true
	}
	s.broadcastLocked()
	s.mu.Unlock()

	if !expired {
		return
	}
	s.timer.Stop()
	s.log.Info().Msg("time is up, finishing attempt")
	if _, err := s.Finish(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("automatic finish failed")
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Err returns the last recoverable error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe returns a channel of state snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	s.mu.Lock()
	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the countdown and releases subscribers. The attempt stays
// in progress server-side if it was not finished.
func (s *Session) Close() {
	s.timer.Stop()
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) broadcastLocked() {
	if s.closed {
		return
	}
	state := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// drop the stale snapshot so a slow reader never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (s *Session) snapshotLocked() State {
	state := State{
		QuizID:        s.quiz.ID,
		QuizTitle:     s.quiz.Title,
		AttemptID:     s.attemptID,
		QuestionIndex: s.current,
		QuestionCount: len(s.quiz.Questions),
		Selected:      s.selected,
		Remaining:     s.remaining,
		Status:        s.status,
		Busy:          s.submitting || s.finishing,
		Answered:      len(s.answers),
	}
	if s.current < len(s.quiz.Questions) {
		q := s.quiz.Questions[s.current]
		q.Options = append([]string(nil), q.Options...)
		q.CorrectOption = domain.HiddenOption
		state.Question = q
	}
	if s.result != nil {
		r := *s.result
		state.Result = &r
	}
	if s.lastErr != nil {
		state.Error = s.lastErr.Error()
	}
	return state
}

// Answers returns a copy of the recorded answers.
func (s *Session) Answers() []domain.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Answer(nil), s.answers...)
}
