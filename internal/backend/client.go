package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"learnpath-quiz/internal/domain"

	"github.com/rs/zerolog/log"
)

// Identity supplies the caller's identity for each request.
type Identity interface {
	UserID() string
	Token() string
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op     string
	Status int
	Detail string
	kind   error
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

func (e *APIError) Unwrap() error { return e.kind }

// Client talks to the quiz backend over REST and implements attempt.Backend.
type Client struct {
	baseURL  string
	http     *http.Client
	identity Identity
}

// NewClient builds a client. A zero timeout falls back to 10 seconds.
func NewClient(baseURL string, timeout time.Duration, identity Identity) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		identity: identity,
	}
}

// ListQuizzes returns the catalog. Filtering is left to the caller.
func (c *Client) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	var raw []struct {
		domain.RawQuiz
		QuestionCount int `json:"question_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/quizzes", nil, &raw, domain.ErrQuizNotFound, "list quizzes"); err != nil {
		return nil, err
	}
	out := make([]domain.QuizSummary, 0, len(raw))
	for _, r := range raw {
		summary := r.RawQuiz.Normalize().Summary()
		if summary.QuestionCount == 0 {
			summary.QuestionCount = r.QuestionCount
		}
		out = append(out, summary)
	}
	return out, nil
}

func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if !domain.ValidIdentifier(quizID) {
		return domain.Quiz{}, domain.ErrInvalidIdentifier
	}
	var raw domain.RawQuiz
	if err := c.do(ctx, http.MethodGet, "/api/quizzes/"+url.PathEscape(quizID), nil, &raw, domain.ErrQuizNotFound, "get quiz"); err != nil {
		return domain.Quiz{}, err
	}
	return raw.Normalize(), nil
}

func (c *Client) StartAttempt(ctx context.Context, quizID string) (domain.Attempt, error) {
	var raw domain.RawAttempt
	if err := c.do(ctx, http.MethodPost, "/api/quiz-attempts/start/"+url.PathEscape(quizID), nil, &raw, domain.ErrQuizNotFound, "start attempt"); err != nil {
		return domain.Attempt{}, err
	}
	return raw.Normalize(), nil
}

func (c *Client) SubmitAnswer(ctx context.Context, attemptID string, answer domain.AnswerSubmission) error {
	return c.do(ctx, http.MethodPost, "/api/quiz-attempts/"+url.PathEscape(attemptID)+"/answer", answer, nil, domain.ErrAttemptNotFound, "submit answer")
}

func (c *Client) FinishAttempt(ctx context.Context, attemptID string) (domain.Result, error) {
	var result domain.Result
	if err := c.do(ctx, http.MethodPost, "/api/quiz-attempts/"+url.PathEscape(attemptID)+"/finish", nil, &result, domain.ErrAttemptNotFound, "finish attempt"); err != nil {
		return domain.Result{}, err
	}
	if result.AttemptID == "" {
		result.AttemptID = attemptID
	}
	return result, nil
}

func (c *Client) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	if !domain.ValidIdentifier(attemptID) {
		return domain.Attempt{}, domain.ErrInvalidIdentifier
	}
	var raw domain.RawAttempt
	if err := c.do(ctx, http.MethodGet, "/api/quiz-attempts/"+url.PathEscape(attemptID), nil, &raw, domain.ErrAttemptNotFound, "get attempt"); err != nil {
		return domain.Attempt{}, err
	}
	return raw.Normalize(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, notFound error, op string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity != nil {
		if id := c.identity.UserID(); id != "" {
			req.Header.Set("X-User-ID", id)
		}
		if token := c.identity.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("op", op).Str("path", path).Msg("backend request failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, code := errorDetail(payload)
		apiErr := &APIError{Op: op, Status: resp.StatusCode, Detail: detail, kind: domain.ErrorFromCode(code)}
		if apiErr.kind == nil {
			switch resp.StatusCode {
			case http.StatusNotFound:
				apiErr.kind = notFound
			case http.StatusConflict:
				apiErr.kind = domain.ErrAttemptFinished
			case http.StatusUnprocessableEntity:
				apiErr.kind = domain.ErrInvalidOption
			case http.StatusBadRequest:
				apiErr.kind = domain.ErrInvalidIdentifier
			}
		}
		log.Debug().Int("status", resp.StatusCode).Str("op", op).Str("detail", apiErr.Detail).Msg("backend error response")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

// errorDetail extracts the message and, when present, the error code of an error body.
func errorDetail(payload []byte) (string, string) {
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		for _, s := range []string{body.Detail, body.Message, body.Error} {
			if s != "" {
				return s, body.Code
			}
		}
		if body.Code != "" {
			return body.Code, body.Code
		}
	}
	return strings.TrimSpace(string(payload)), ""
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
