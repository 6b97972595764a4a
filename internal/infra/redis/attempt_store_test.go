package redis

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"learnpath-quiz/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestAttemptStoreSetsKeysAndIndex(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewAttemptStore(client, time.Hour)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Create(ctx, domain.Attempt{ID: "a1", QuizID: "quiz-1", UserID: "u1", StartedAt: start, Status: domain.AttemptInProgress}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, domain.Attempt{ID: "a2", QuizID: "quiz-1", UserID: "u1", StartedAt: start.Add(time.Minute), Status: domain.AttemptInProgress}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("attempt:a1") {
		t.Fatalf("expected attempt key to be set")
	}
	if ttl := mr.TTL("attempt:a1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	history, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != 2 || history[0].ID != "a2" {
		t.Fatalf("expected newest first, got %+v", history)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Update(ctx, "missing", func(*domain.Attempt) error { return nil }); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestAttemptStoreConcurrentUpdatesKeepEveryAnswer(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewAttemptStore(client, 0)
	if err := store.Create(ctx, domain.Attempt{ID: "a1", QuizID: "quiz-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(option int) {
			defer wg.Done()
			for {
				_, err := store.Update(ctx, "a1", func(a *domain.Attempt) error {
					a.Answers = append(a.Answers, domain.Answer{QuestionIndex: len(a.Answers), SelectedOption: option})
					return nil
				})
				if err == nil {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(got.Answers))
	}
}

func TestAttemptStoreListByQuizSkipsCorruptEntries(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	var logs bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&logs)
	defer func() { log.Logger = previous }()

	ctx := context.Background()
	store := NewAttemptStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a1", "a2", "a3"} {
		userID := "u1"
		if i == 2 {
			userID = ""
		}
		if err := store.Create(ctx, domain.Attempt{ID: id, QuizID: "quiz-1", UserID: userID, StartedAt: start.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	_ = store.Create(ctx, domain.Attempt{ID: "b1", QuizID: "quiz-2", UserID: "u1", StartedAt: start})
	if ttl := mr.TTL("quiz_attempts:quiz-1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl on quiz index, got %v", ttl)
	}

	if err := mr.Set("attempt:a2", "{not json"); err != nil {
		t.Fatalf("corrupt a2: %v", err)
	}

	list, err := store.ListByQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a1" || list[1].ID != "a3" {
		t.Fatalf("expected a1, a3 oldest first, got %+v", list)
	}
	if !strings.Contains(logs.String(), "attempt:a2") {
		t.Fatalf("expected corrupt entry to be logged, got %q", logs.String())
	}
}
