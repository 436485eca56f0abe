// Package scoring compares submitted option indices against an answer key.
package scoring

import "github.com/park285/campus-quiz-core/internal/domain"

// Score counts positions where answers[i] matches the key. Entries past either
// slice's end, negative indices and out-of-range indices never match.
func Score(answers []int, questions []domain.Question) int {
	n := len(answers)
	if len(questions) < n {
		n = len(questions)
	}
	score := 0
	for i := 0; i < n; i++ {
		a := answers[i]
		if a < 0 || a >= len(questions[i].Options) {
			continue
		}
		if a == questions[i].CorrectIndex {
			score++
		}
	}
	return score
}

// Outcome is the result from the point of view of the player scoring mine.
func Outcome(mine, theirs int) domain.Outcome {
	switch {
	case mine > theirs:
		return domain.OutcomeWin
	case mine < theirs:
		return domain.OutcomeLose
	default:
		return domain.OutcomeDraw
	}
}
