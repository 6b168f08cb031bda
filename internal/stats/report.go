package stats

import (
	"context"
	"io"

	"github.com/verte-zerg/dualnback/internal/model"
)

// SessionLister loads stored sessions.
type SessionLister interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions []model.SessionAggregate
	Summary  Summary
	Levels   []LevelAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st SessionLister, cfg model.StatsConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Sessions: sessions,
		Summary:  Summarize(sessions),
		Levels:   ByLevel(sessions),
	}, nil
}

// RenderText writes the plain-text report used when stdout is not a terminal.
func RenderText(w io.Writer, report Report, window, width int) error {
	if err := RenderSummary(w, report.Sessions); err != nil {
		return err
	}
	if err := RenderCurves(w, report.Sessions, window, width); err != nil {
		return err
	}
	if err := RenderLevelTable(w, report.Sessions); err != nil {
		return err
	}
	return RenderSessionTable(w, report.Sessions)
}
