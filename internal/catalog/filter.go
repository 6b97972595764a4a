package catalog

import "learnpath-quiz/internal/domain"

// All is the wildcard filter value.
const All = "all"

// Filter returns the quizzes whose category and difficulty both match, preserving input order.
// Matching is exact and case-sensitive on canonical values; the difficulty filter is
// normalized the same way quiz payloads are so "Easy" selects "easy".
func Filter(quizzes []domain.QuizSummary, subject, difficulty string) []domain.QuizSummary {
	anySubject := subject == "" || subject == All
	anyDifficulty := difficulty == "" || difficulty == All
	want := domain.NormalizeDifficulty(difficulty)

	out := make([]domain.QuizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		if !anySubject && q.Category != subject {
			continue
		}
		if !anyDifficulty && q.Difficulty != want {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Categories lists the distinct categories in first-seen order.
func Categories(quizzes []domain.QuizSummary) []string {
	seen := make(map[string]struct{}, len(quizzes))
	var out []string
	for _, q := range quizzes {
		if _, ok := seen[q.Category]; ok || q.Category == "" {
			continue
		}
		seen[q.Category] = struct{}{}
		out = append(out, q.Category)
	}
	return out
}
