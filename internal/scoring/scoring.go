// Package scoring holds the round payoff table and the session accuracy formula.
package scoring

import (
	"math"

	"github.com/verte-zerg/dualnback/internal/model"
)

const (
	HitPoints     = 100
	PenaltyPoints = -50
)

// Classify scores one channel of a closed round.
func Classify(isMatch, claimed bool) (model.Feedback, int) {
	switch {
	case isMatch && claimed:
		return model.FeedbackCorrect, HitPoints
	case isMatch:
		return model.FeedbackMissed, PenaltyPoints
	case claimed:
		return model.FeedbackWrong, PenaltyPoints
	default:
		return model.FeedbackUnset, 0
	}
}

// Accuracy returns a whole percentage of the best score reachable for the targets seen.
// Negative scores count as zero. With no targets the result is 100.
func Accuracy(score int, matches model.Matches) int {
	targets := matches.Total()
	if targets <= 0 {
		return 100
	}
	if score < 0 {
		score = 0
	}
	return int(math.Round(float64(score) / float64(targets*HitPoints) * 100))
}
