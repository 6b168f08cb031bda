package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/verte-zerg/dualnback/internal/model"
)

func TestSummarize(t *testing.T) {
	sessions := []model.SessionAggregate{
		{NLevel: 2, Rounds: 20, Score: -50, Accuracy: 0, Matches: model.Matches{Pos: 3, Audio: 4}},
		{NLevel: 3, Rounds: 20, Score: 600, Accuracy: 75, Matches: model.Matches{Pos: 4, Audio: 4}},
		{NLevel: 2, Rounds: 10, Score: 300, Accuracy: 60, Matches: model.Matches{Pos: 2, Audio: 3}},
	}
	sum := Summarize(sessions)
	if sum.Sessions != 3 || sum.Rounds != 50 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.AvgAccuracy != 45 || sum.BestAccuracy != 75 {
		t.Fatalf("unexpected accuracy: %+v", sum)
	}
	if sum.BestScore != 600 || sum.MaxNLevel != 3 {
		t.Fatalf("unexpected best: %+v", sum)
	}
	if sum.Targets != (model.Matches{Pos: 9, Audio: 11}) {
		t.Fatalf("unexpected targets: %+v", sum.Targets)
	}

	levels := ByLevel(sessions)
	if len(levels) != 2 || levels[0].NLevel != 2 || levels[0].Sessions != 2 || levels[0].AvgScore != 125 {
		t.Fatalf("unexpected levels: %+v", levels)
	}
}

func TestSummarizeNegativeBestScore(t *testing.T) {
	sum := Summarize([]model.SessionAggregate{{Score: -100}, {Score: -50}})
	if sum.BestScore != -50 {
		t.Fatalf("expected -50, got %d", sum.BestScore)
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 50, 100}); got != " +@" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{5, 5}); got != "++" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
	if got := Tail([]float64{1, 2, 3}, 2); len(got) != 2 || got[0] != 2 {
		t.Fatalf("unexpected tail %v", got)
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No sessions found.") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRenderUserTable(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderUserTable(&buf, []model.UserAggregate{
		{Name: "ada", NLevel: 4, Sessions: 12},
		{Name: "bob", NLevel: 2},
	}); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "Player") || !strings.Contains(lines[1], "ada") || !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Fatalf("unexpected table %q", buf.String())
	}

	buf.Reset()
	if err := RenderUserTable(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No players found.\n" {
		t.Fatalf("unexpected empty output %q", buf.String())
	}
}
