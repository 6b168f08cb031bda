package scoring

import (
	"testing"

	"github.com/verte-zerg/dualnback/internal/model"
)

func TestClassifyPayoffTable(t *testing.T) {
	cases := []struct {
		match, claimed bool
		feedback       model.Feedback
		delta          int
	}{
		{true, true, model.FeedbackCorrect, 100},
		{true, false, model.FeedbackMissed, -50},
		{false, true, model.FeedbackWrong, -50},
		{false, false, model.FeedbackUnset, 0},
	}
	for _, tc := range cases {
		fb, delta := Classify(tc.match, tc.claimed)
		if fb != tc.feedback || delta != tc.delta {
			t.Fatalf("Classify(%v, %v) = %v, %d; want %v, %d", tc.match, tc.claimed, fb, delta, tc.feedback, tc.delta)
		}
	}
}

func TestAccuracy(t *testing.T) {
	if got := Accuracy(700, model.Matches{Pos: 4, Audio: 6}); got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}
	if got := Accuracy(-300, model.Matches{}); got != 100 {
		t.Fatalf("expected 100 with no targets, got %d", got)
	}
	if got := Accuracy(450, model.Matches{}); got != 100 {
		t.Fatalf("expected 100 with no targets, got %d", got)
	}
	if got := Accuracy(-150, model.Matches{Pos: 2}); got != 0 {
		t.Fatalf("expected negative score to clamp to 0, got %d", got)
	}
	if got := Accuracy(50, model.Matches{Pos: 2, Audio: 1}); got != 17 {
		t.Fatalf("expected 17, got %d", got)
	}
}
