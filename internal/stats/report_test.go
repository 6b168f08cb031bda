package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/dualnback/internal/model"
	"github.com/verte-zerg/dualnback/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "dualnback.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		end := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		rec := model.SavedSession{
			NLevel:    2 + i%2,
			Rounds:    20,
			Score:     100 * i,
			Accuracy:  20 * i,
			Matches:   model.Matches{Pos: 3, Audio: 2},
			StartedAt: end.Add(-50 * time.Second),
			EndedAt:   end,
		}
		if _, err := st.InsertSession(ctx, "ada", rec); err != nil {
			t.Fatalf("insert session: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, model.StatsConfig{User: "ada", Last: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Summary.BestScore != 200 || report.Summary.MaxNLevel != 3 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
	if len(report.Levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(report.Levels))
	}

	var buf bytes.Buffer
	if err := RenderText(&buf, report, 5, 40); err != nil {
		t.Fatalf("render text: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Sessions: 2", "Learning Curves", "Per N-Level", "Accuracy"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
