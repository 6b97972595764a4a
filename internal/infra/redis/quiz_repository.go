package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"learnpath-quiz/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from a backing store (e.g., document DB).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

const catalogKey = "quiz:catalog"

// QuizRepository caches quiz documents in Redis and falls back to a loader on cache miss.
// Quizzes are stored as JSON strings: SET quiz:{quizID} {json}
// The catalog listing is stored the same way under quiz:catalog.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	if r.readCache(ctx, r.quizKey(quizID), &quiz) {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var quiz domain.Quiz
		if r.readCache(ctx, r.quizKey(quizID), &quiz) {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.writeCache(ctx, r.quizKey(quizID), quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	var list []domain.QuizSummary
	if r.readCache(ctx, catalogKey, &list) {
		return list, nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		list, err := r.loader.ListQuizzes(ctx)
		if err != nil {
			return nil, err
		}
		r.writeCache(ctx, catalogKey, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizSummary), nil
}

// Invalidate drops a cached quiz and the catalog, e.g. after seeding.
func (r *QuizRepository) Invalidate(ctx context.Context, quizIDs ...string) error {
	keys := []string{catalogKey}
	for _, id := range quizIDs {
		keys = append(keys, r.quizKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *QuizRepository) readCache(ctx context.Context, key string, out any) bool {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("quiz cache read")
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("quiz cache decode")
		return false
	}
	return true
}

// writeCache is best effort; a failed write only costs a reload.
func (r *QuizRepository) writeCache(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttlWithJitter()).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("quiz cache write")
	}
}

func (r *QuizRepository) quizKey(quizID string) string {
	return "quiz:" + quizID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
