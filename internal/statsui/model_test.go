package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/dualnback/internal/model"
)

type fakeLister struct {
	sessions []model.SessionAggregate
	err      error
	calls    []model.StatsConfig
}

func (f *fakeLister) ListSessions(_ context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	f.calls = append(f.calls, cfg)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.SessionAggregate
	for _, s := range f.sessions {
		if cfg.NLevel > 0 && s.NLevel != cfg.NLevel {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func sampleSessions() []model.SessionAggregate {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.SessionAggregate{
		{SessionID: 1, EndedAt: base, NLevel: 2, Rounds: 20, Score: 400, Accuracy: 60, Matches: model.Matches{Pos: 4, Audio: 3}},
		{SessionID: 2, EndedAt: base.Add(time.Hour), NLevel: 3, Rounds: 20, Score: 500, Accuracy: 80, Matches: model.Matches{Pos: 3, Audio: 3}},
	}
}

func TestOverviewShowsSummaryAndCurves(t *testing.T) {
	m := NewModel(&fakeLister{sessions: sampleSessions()}, model.StatsConfig{CurveWindow: 2})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	view := m.View()
	for _, want := range []string{"Overview", "Avg Accuracy", "70.0%", "Learning Curves (window 2)"} {
		if !strings.Contains(view, want) {
			t.Fatalf("overview missing %q:\n%s", want, view)
		}
	}
}

func TestTabNavigationWraps(t *testing.T) {
	m := NewModel(&fakeLister{sessions: sampleSessions()}, model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.activeTab != tabLevels {
		t.Fatalf("expected levels tab, got %d", m.activeTab)
	}
	if !strings.Contains(m.View(), "Per N-Level") {
		t.Fatalf("levels tab missing table")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabSessions {
		t.Fatalf("expected sessions tab, got %d", m.activeTab)
	}
	if got := len(m.sessions.Rows()); got != 2 {
		t.Fatalf("expected 2 session rows, got %d", got)
	}
}

func TestLevelFilterReloads(t *testing.T) {
	lister := &fakeLister{sessions: sampleSessions()}
	m := NewModel(lister, model.StatsConfig{})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	if m.cfg.NLevel != 2 {
		t.Fatalf("expected n filter 2, got %d", m.cfg.NLevel)
	}
	if len(m.report.Sessions) != 1 || m.report.Sessions[0].NLevel != 2 {
		t.Fatalf("unexpected filtered sessions: %+v", m.report.Sessions)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("[")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("[")})
	if m.cfg.NLevel != 0 {
		t.Fatalf("expected filter cleared, got %d", m.cfg.NLevel)
	}
	if len(lister.calls) != 5 {
		t.Fatalf("expected 5 loads, got %d", len(lister.calls))
	}
}

func TestLoadErrorIsShown(t *testing.T) {
	m := NewModel(&fakeLister{err: errors.New("disk I/O error")}, model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	view := m.View()
	if !strings.Contains(view, "Failed to load stats.") || !strings.Contains(view, "disk I/O error") {
		t.Fatalf("expected load error in view:\n%s", view)
	}
}

func TestCurveWindowSteps(t *testing.T) {
	cases := []struct {
		in, next, prev int
	}{
		{1, 5, 1},
		{5, 10, 1},
		{7, 10, 5},
		{10, 15, 5},
	}
	for _, tc := range cases {
		if got := nextCurveWindow(tc.in); got != tc.next {
			t.Fatalf("next(%d)=%d, want %d", tc.in, got, tc.next)
		}
		if got := prevCurveWindow(tc.in); got != tc.prev {
			t.Fatalf("prev(%d)=%d, want %d", tc.in, got, tc.prev)
		}
	}
}
