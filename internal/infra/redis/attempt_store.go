package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnpath-quiz/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxUpdateRetries = 5

// AttemptStore is a Redis implementation of app.AttemptRepository.
// Attempts are JSON strings under attempt:{id}. Sorted sets user:{userID}:attempts
// and quiz_attempts:{quizID} index them by start time.
// Updates use WATCH/MULTI so concurrent writers on one attempt never lose answers.
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	member := redis.Z{
		Score:  float64(attempt.StartedAt.UnixNano()),
		Member: attempt.ID,
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(attempt.ID), data, s.ttl)
		indexes := []string{s.quizKey(attempt.QuizID)}
		if attempt.UserID != "" {
			indexes = append(indexes, s.userKey(attempt.UserID))
		}
		for _, index := range indexes {
			pipe.ZAdd(ctx, index, member)
			if s.ttl > 0 {
				pipe.Expire(ctx, index, s.ttl)
			}
		}
		return nil
	})
	return err
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	data, err := s.client.Get(ctx, s.key(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, err
	}
	var attempt domain.Attempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("decode attempt %s: %w", attemptID, err)
	}
	return attempt, nil
}

func (s *AttemptStore) Update(ctx context.Context, attemptID string, fn func(*domain.Attempt) error) (domain.Attempt, error) {
	key := s.key(attemptID)
	var updated domain.Attempt

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrAttemptNotFound
		}
		if err != nil {
			return err
		}
		var attempt domain.Attempt
		if err := json.Unmarshal(data, &attempt); err != nil {
			return fmt.Errorf("decode attempt %s: %w", attemptID, err)
		}
		if err := fn(&attempt); err != nil {
			return err
		}
		out, err := json.Marshal(attempt)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err == nil {
			updated = attempt
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.Attempt{}, err
		}
		return updated, nil
	}
	return domain.Attempt{}, fmt.Errorf("update attempt %s: too much contention", attemptID)
}

// ListByUser returns the user's attempts, newest first. Expired attempts are skipped.
func (s *AttemptStore) ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	ids, err := s.client.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, ids)
}

// ListByQuiz returns the attempts made on a quiz, oldest first. Expired attempts are skipped.
func (s *AttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	ids, err := s.client.ZRange(ctx, s.quizKey(quizID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, ids)
}

func (s *AttemptStore) load(ctx context.Context, ids []string) ([]domain.Attempt, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Attempt, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var attempt domain.Attempt
		if err := json.Unmarshal([]byte(raw), &attempt); err != nil {
			log.Warn().Err(err).Str("key", keys[i]).Msg("skip undecodable attempt")
			continue
		}
		out = append(out, attempt)
	}
	return out, nil
}

func (s *AttemptStore) key(attemptID string) string {
	return "attempt:" + attemptID
}

func (s *AttemptStore) quizKey(quizID string) string {
	return "quiz_attempts:" + quizID
}

func (s *AttemptStore) userKey(userID string) string {
	return "user:" + userID + ":attempts"
}
