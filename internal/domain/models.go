package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Difficulty is the canonical, lower-case difficulty label of a quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question models a single-choice question. CorrectOption is an index into Options.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
}

// HiddenOption marks a question whose correct answer is withheld.
const HiddenOption = -1

// MarshalJSON leaves correct_option out entirely when the answer is hidden.
func (q Question) MarshalJSON() ([]byte, error) {
	type plain Question
	if q.CorrectOption != HiddenOption {
		return json.Marshal(plain(q))
	}
	return json.Marshal(struct {
		ID      string   `json:"id"`
		Prompt  string   `json:"prompt"`
		Options []string `json:"options"`
	}{q.ID, q.Prompt, q.Options})
}

// Quiz is an ordered set of questions with a time limit in minutes.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Difficulty  Difficulty `json:"difficulty"`
	Questions   []Question `json:"questions"`
	TimeLimit   int        `json:"time_limit"`
}

// StudentView returns a copy of the quiz with correct answers hidden.
func (q Quiz) StudentView() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		question.CorrectOption = HiddenOption
		out.Questions[i] = question
	}
	return out
}

// Validate checks quiz content before it is written.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidQuiz)
	}
	if q.TimeLimit < 0 {
		return fmt.Errorf("%w: negative time limit", ErrInvalidQuiz)
	}
	if len(q.Questions) == 0 {
		return ErrEmptyQuiz
	}
	for i, question := range q.Questions {
		if strings.TrimSpace(question.Prompt) == "" {
			return fmt.Errorf("%w: question %d has no prompt", ErrInvalidQuiz, i)
		}
		if len(question.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least two options", ErrInvalidQuiz, i)
		}
		if question.CorrectOption < 0 || question.CorrectOption >= len(question.Options) {
			return fmt.Errorf("%w: question %d correct option %d out of range", ErrInvalidQuiz, i, question.CorrectOption)
		}
	}
	return nil
}

// Summary returns the catalog view of the quiz.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:            q.ID,
		Title:         q.Title,
		Description:   q.Description,
		Category:      q.Category,
		Difficulty:    q.Difficulty,
		QuestionCount: len(q.Questions),
		TimeLimit:     q.TimeLimit,
	}
}

// QuizSummary is what the catalog lists.
type QuizSummary struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Difficulty    Difficulty `json:"difficulty"`
	QuestionCount int        `json:"question_count"`
	TimeLimit     int        `json:"time_limit"`
}

// AttemptStatus tracks the lifecycle of an attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptFinished   AttemptStatus = "finished"
)

// Answer is one recorded response within an attempt.
type Answer struct {
	QuestionIndex  int       `json:"question_index"`
	QuestionID     string    `json:"question_id,omitempty"`
	SelectedOption int       `json:"selected_option"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// AnswerSubmission is what a client sends for the current question.
type AnswerSubmission struct {
	QuestionIndex  int    `json:"question_index" validate:"gte=0"`
	QuestionID     string `json:"question_id,omitempty"`
	SelectedOption int    `json:"selected_option" validate:"gte=0"`
}

// Attempt is one student's timed run through a quiz.
type Attempt struct {
	ID         string        `json:"id"`
	QuizID     string        `json:"quiz_id"`
	UserID     string        `json:"user_id,omitempty"`
	StartedAt  time.Time     `json:"start_time"`
	FinishedAt *time.Time    `json:"end_time,omitempty"`
	Status     AttemptStatus `json:"status"`
	Answers    []Answer      `json:"answers"`
	Score      *float64      `json:"score,omitempty"`
}

// Result is the outcome of a finished attempt.
type Result struct {
	AttemptID      string  `json:"attempt_id"`
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
}

// ScoreBand groups scores for presentation.
type ScoreBand string

const (
	BandExcellent ScoreBand = "excellent"
	BandFair      ScoreBand = "fair"
	BandPoor      ScoreBand = "poor"
)

// Band maps the score onto the 80/60 thresholds.
func (r Result) Band() ScoreBand {
	switch {
	case r.Score >= 80:
		return BandExcellent
	case r.Score >= 60:
		return BandFair
	default:
		return BandPoor
	}
}

// Message is the short verdict shown with the score.
func (r Result) Message() string {
	switch {
	case r.Score >= 90:
		return "Excellent!"
	case r.Score >= 70:
		return "Good result!"
	case r.Score >= 50:
		return "Not bad!"
	default:
		return "Keep practicing!"
	}
}

// PointsEarned awards one point per full ten percent.
func (r Result) PointsEarned() int {
	if r.Score <= 0 {
		return 0
	}
	return int(math.Floor(r.Score / 10))
}

// Role is the platform role of a user.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// User is the identity the client acts as.
type User struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Login string `json:"login" yaml:"login"`
	Role  Role   `json:"role" yaml:"role"`
}

// IsAdmin reports whether the user may manage users and quizzes.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanViewStats reports whether the user may read attempt statistics of a quiz.
func (u User) CanViewStats() bool {
	return u.Role == RoleAdmin || u.Role == RoleTeacher
}

// QuizStats aggregates the attempts made on one quiz.
type QuizStats struct {
	QuizID            string  `json:"quiz_id"`
	QuizTitle         string  `json:"quiz_title"`
	TotalAttempts     int     `json:"total_attempts"`
	CompletedAttempts int     `json:"completed_attempts"`
	AverageScore      float64 `json:"average_score"`
	CompletionRate    float64 `json:"completion_rate"`
}

// CatalogStats counts quizzes by category and difficulty.
type CatalogStats struct {
	TotalQuizzes int                `json:"total_quizzes"`
	ByCategory   map[string]int     `json:"by_category"`
	ByDifficulty map[Difficulty]int `json:"by_difficulty"`
}
