package cli

import (
	"bytes"
	"testing"

	"learnpath-quiz/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestPrintCatalog(t *testing.T) {
	all := []domain.QuizSummary{
		{ID: "a", Title: "Alpha", Category: "math", Difficulty: domain.DifficultyEasy, QuestionCount: 3, TimeLimit: 5},
		{ID: "b", Title: "Beta", Category: "history", Difficulty: domain.DifficultyHard},
	}
	var out bytes.Buffer
	printCatalog(&out, all, all[:1])
	require.Contains(t, out.String(), "Alpha")
	require.NotContains(t, out.String(), "Beta")
	require.Contains(t, out.String(), "subjects: math, history")
}
