package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FlexID decodes identifiers sent either as JSON strings or numbers.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

// FlexTime accepts RFC 3339 timestamps and naive ISO timestamps without a zone (read as UTC).
type FlexTime struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		// null, numbers and other shapes leave the zero time
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// RawQuestion is a question as it appears on the wire, in any of its historical shapes.
type RawQuestion struct {
	ID            FlexID   `json:"id"`
	MongoID       FlexID   `json:"_id"`
	Text          string   `json:"text"`
	Question      string   `json:"question"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correct_answer"`
	CorrectOption *int     `json:"correct_option"`
}

// RawQuiz is a quiz document as served by the backend or stored in the document table.
type RawQuiz struct {
	ID              FlexID        `json:"id"`
	MongoID         FlexID        `json:"_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Category        string        `json:"category"`
	Subject         string        `json:"subject"`
	Difficulty      string        `json:"difficulty"`
	DifficultyLevel string        `json:"difficulty_level"`
	Questions       []RawQuestion `json:"questions"`
	TimeLimit       *float64      `json:"time_limit"`
}

// RawAnswer is a recorded answer on the wire.
type RawAnswer struct {
	QuestionIndex  *int     `json:"question_index"`
	QuestionID     FlexID   `json:"question_id"`
	SelectedOption int      `json:"selected_option"`
	SubmittedAt    FlexTime `json:"submitted_at"`
}

// RawAttempt is an attempt on the wire.
type RawAttempt struct {
	ID        FlexID      `json:"id"`
	MongoID   FlexID      `json:"_id"`
	QuizID    FlexID      `json:"quiz_id"`
	UserID    FlexID      `json:"user_id"`
	StartTime FlexTime    `json:"start_time"`
	EndTime   FlexTime    `json:"end_time"`
	Status    string      `json:"status"`
	Answers   []RawAnswer `json:"answers"`
	Score     *float64    `json:"score"`
}

// Normalize maps a wire quiz onto the canonical record.
func (r RawQuiz) Normalize() Quiz {
	quiz := Quiz{
		ID:          firstNonEmpty(string(r.ID), string(r.MongoID)),
		Title:       r.Title,
		Description: r.Description,
		Category:    firstNonEmpty(r.Category, r.Subject),
		Difficulty:  NormalizeDifficulty(firstNonEmpty(r.Difficulty, r.DifficultyLevel)),
		Questions:   make([]Question, 0, len(r.Questions)),
	}
	if r.TimeLimit != nil && *r.TimeLimit > 0 {
		quiz.TimeLimit = int(*r.TimeLimit)
	}
	for i, raw := range r.Questions {
		q := Question{
			ID:            firstNonEmpty(string(raw.ID), string(raw.MongoID)),
			Prompt:        firstNonEmpty(raw.Text, raw.Question, raw.Prompt),
			Options:       append([]string(nil), raw.Options...),
			CorrectOption: HiddenOption,
		}
		if q.ID == "" {
			q.ID = strconv.Itoa(i)
		}
		switch {
		case raw.CorrectOption != nil:
			q.CorrectOption = *raw.CorrectOption
		case raw.CorrectAnswer != nil:
			q.CorrectOption = *raw.CorrectAnswer
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz
}

// Normalize maps a wire attempt onto the canonical record.
func (r RawAttempt) Normalize() Attempt {
	attempt := Attempt{
		ID:        firstNonEmpty(string(r.ID), string(r.MongoID)),
		QuizID:    string(r.QuizID),
		UserID:    string(r.UserID),
		StartedAt: r.StartTime.Time,
		Status:    NormalizeStatus(r.Status),
		Answers:   make([]Answer, 0, len(r.Answers)),
		Score:     r.Score,
	}
	if !r.EndTime.IsZero() {
		end := r.EndTime.Time
		attempt.FinishedAt = &end
	}
	for i, raw := range r.Answers {
		idx := i
		if raw.QuestionIndex != nil {
			idx = *raw.QuestionIndex
		}
		attempt.Answers = append(attempt.Answers, Answer{
			QuestionIndex:  idx,
			QuestionID:     string(raw.QuestionID),
			SelectedOption: raw.SelectedOption,
			SubmittedAt:    raw.SubmittedAt.Time,
		})
	}
	return attempt
}

// DecodeQuiz parses a quiz payload of any known shape.
func DecodeQuiz(data []byte) (Quiz, error) {
	var raw RawQuiz
	if err := json.Unmarshal(data, &raw); err != nil {
		return Quiz{}, err
	}
	return raw.Normalize(), nil
}

// DecodeAttempt parses an attempt payload of any known shape.
func DecodeAttempt(data []byte) (Attempt, error) {
	var raw RawAttempt
	if err := json.Unmarshal(data, &raw); err != nil {
		return Attempt{}, err
	}
	return raw.Normalize(), nil
}

// NormalizeDifficulty folds the historical difficulty spellings onto the canonical set.
// Unknown labels are returned trimmed and lower-cased.
func NormalizeDifficulty(label string) Difficulty {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "easy", "beginner", "basic":
		return DifficultyEasy
	case "medium", "intermediate":
		return DifficultyMedium
	case "hard", "advanced", "expert":
		return DifficultyHard
	}
	return Difficulty(l)
}

// NormalizeStatus folds backend status labels onto the two attempt states.
func NormalizeStatus(status string) AttemptStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "finished", "completed", "done":
		return AttemptFinished
	}
	return AttemptInProgress
}

// ValidIdentifier rejects empty IDs and the sentinels a broken client route produces.
func ValidIdentifier(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != "undefined" && id != "null"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
