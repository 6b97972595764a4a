package domain

import "errors"

var (
	// ErrInvalidIdentifier is returned for an empty or sentinel quiz/attempt ID.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz indicates the quiz has no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrAttemptCreationFailed is returned when the backend did not produce a usable attempt.
	ErrAttemptCreationFailed = errors.New("attempt creation failed")
	// ErrAnswerSubmissionFailed is recoverable; the session stays on the current question.
	ErrAnswerSubmissionFailed = errors.New("answer submission failed")
	// ErrFinishFailed is recoverable; finish may be retried.
	ErrFinishFailed = errors.New("finish failed")

	// ErrAttemptNotFound indicates an unknown attempt ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptFinished is returned when acting on a sealed attempt.
	ErrAttemptFinished = errors.New("attempt already finished")
	// ErrQuestionOutOfOrder is returned when an answer does not target the next unanswered question.
	ErrQuestionOutOfOrder = errors.New("question out of order")
	// ErrInvalidOption indicates the selected option index is out of range.
	ErrInvalidOption = errors.New("invalid option")

	// ErrInvalidQuiz is returned when quiz content fails validation on write.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("forbidden")
)

var errorCodes = []struct {
	code string
	err  error
}{
	{"invalid_identifier", ErrInvalidIdentifier},
	{"quiz_not_found", ErrQuizNotFound},
	{"empty_quiz", ErrEmptyQuiz},
	{"attempt_not_found", ErrAttemptNotFound},
	{"attempt_finished", ErrAttemptFinished},
	{"question_out_of_order", ErrQuestionOutOfOrder},
	{"invalid_option", ErrInvalidOption},
	{"invalid_quiz", ErrInvalidQuiz},
	{"forbidden", ErrForbidden},
}

// ErrorCode returns the stable wire code for a known error, or "".
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ""
}

// ErrorFromCode is the inverse of ErrorCode. Unknown codes yield nil.
func ErrorFromCode(code string) error {
	for _, e := range errorCodes {
		if e.code == code {
			return e.err
		}
	}
	return nil
}
