// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/dualnback/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a set of sessions.
type Summary struct {
	Sessions     int
	Rounds       int
	AvgAccuracy  float64
	BestAccuracy int
	AvgScore     float64
	BestScore    int
	MaxNLevel    int
	Targets      model.Matches
}

// LevelAggregate summarizes sessions played at one n-level.
type LevelAggregate struct {
	NLevel      int
	Sessions    int
	AvgAccuracy float64
	AvgScore    float64
	BestScore   int
}

// Summarize computes aggregate metrics over sessions.
func Summarize(sessions []model.SessionAggregate) Summary {
	var sum Summary
	if len(sessions) == 0 {
		return sum
	}
	var totalAcc, totalScore int
	sum.BestScore = sessions[0].Score
	for _, s := range sessions {
		sum.Sessions++
		sum.Rounds += s.Rounds
		totalAcc += s.Accuracy
		totalScore += s.Score
		if s.Accuracy > sum.BestAccuracy {
			sum.BestAccuracy = s.Accuracy
		}
		if s.Score > sum.BestScore {
			sum.BestScore = s.Score
		}
		if s.NLevel > sum.MaxNLevel {
			sum.MaxNLevel = s.NLevel
		}
		sum.Targets.Pos += s.Matches.Pos
		sum.Targets.Audio += s.Matches.Audio
	}
	count := float64(len(sessions))
	sum.AvgAccuracy = float64(totalAcc) / count
	sum.AvgScore = float64(totalScore) / count
	return sum
}

// ByLevel groups sessions by n-level in ascending order.
func ByLevel(sessions []model.SessionAggregate) []LevelAggregate {
	groups := map[int][]model.SessionAggregate{}
	for _, s := range sessions {
		groups[s.NLevel] = append(groups[s.NLevel], s)
	}
	levels := make([]LevelAggregate, 0, len(groups))
	for n, group := range groups {
		sum := Summarize(group)
		levels = append(levels, LevelAggregate{
			NLevel:      n,
			Sessions:    sum.Sessions,
			AvgAccuracy: sum.AvgAccuracy,
			AvgScore:    sum.AvgScore,
			BestScore:   sum.BestScore,
		})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].NLevel < levels[j].NLevel })
	return levels
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Tail keeps at most width trailing values so a sparkline fits on one line.
func Tail(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		return values
	}
	return values[len(values)-width:]
}

// RenderSummary prints a summary block for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	sum := Summarize(sessions)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", sum.Sessions),
		fmt.Sprintf("Rounds: %d", sum.Rounds),
		fmt.Sprintf("Avg Accuracy: %.1f%%", sum.AvgAccuracy),
		fmt.Sprintf("Best Accuracy: %d%%", sum.BestAccuracy),
		fmt.Sprintf("Avg Score: %.1f", sum.AvgScore),
		fmt.Sprintf("Best Score: %d", sum.BestScore),
		fmt.Sprintf("Highest N: %d", sum.MaxNLevel),
		fmt.Sprintf("Targets: %d position, %d audio", sum.Targets.Pos, sum.Targets.Audio),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints moving-average sparklines for accuracy and score.
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window, width int) error {
	if len(sessions) == 0 {
		return nil
	}
	accs := make([]float64, len(sessions))
	scores := make([]float64, len(sessions))
	for i, s := range sessions {
		accs[i] = float64(s.Accuracy)
		scores[i] = float64(s.Score)
	}
	accs = Tail(MovingAverage(accs, window), width)
	scores = Tail(MovingAverage(scores, window), width)
	lines := []string{
		fmt.Sprintf("Learning Curves (window %d)", window),
		fmt.Sprintf("Accuracy %s %.1f%%", Sparkline(accs), accs[len(accs)-1]),
		fmt.Sprintf("Score    %s %.1f", Sparkline(scores), scores[len(scores)-1]),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// SessionRows formats sessions newest first for tabular output.
func SessionRows(sessions []model.SessionAggregate) [][]string {
	rows := make([][]string, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		rows = append(rows, []string{
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", s.NLevel),
			fmt.Sprintf("%d", s.Rounds),
			fmt.Sprintf("%d", s.Score),
			fmt.Sprintf("%d%%", s.Accuracy),
			fmt.Sprintf("%d", s.Matches.Pos),
			fmt.Sprintf("%d", s.Matches.Audio),
		})
	}
	return rows
}

// SessionHeaders are the column titles matching SessionRows.
var SessionHeaders = []string{"Date", "N", "Rounds", "Score", "Accuracy", "Pos", "Audio"}

// RenderSessionTable prints one row per session, newest first.
func RenderSessionTable(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	for _, line := range formatTable(SessionHeaders, SessionRows(sessions), rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderLevelTable prints per n-level aggregates.
func RenderLevelTable(w io.Writer, sessions []model.SessionAggregate) error {
	levels := ByLevel(sessions)
	if len(levels) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per N-Level"); err != nil {
		return err
	}
	headers := []string{"N", "Sessions", "Avg Accuracy", "Avg Score", "Best Score"}
	rows := make([][]string, 0, len(levels))
	for _, l := range levels {
		rows = append(rows, []string{
			fmt.Sprintf("%d", l.NLevel),
			fmt.Sprintf("%d", l.Sessions),
			fmt.Sprintf("%.1f%%", l.AvgAccuracy),
			fmt.Sprintf("%.1f", l.AvgScore),
			fmt.Sprintf("%d", l.BestScore),
		})
	}
	rightAlign := map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderUserTable prints one row per player.
func RenderUserTable(w io.Writer, users []model.UserAggregate) error {
	if len(users) == 0 {
		_, err := fmt.Fprintln(w, "No players found.")
		return err
	}
	headers := []string{"Player", "Best N", "Sessions", "Last Played"}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		last := "-"
		if u.LastPlay != nil {
			last = u.LastPlay.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{u.Name, fmt.Sprintf("%d", u.NLevel), fmt.Sprintf("%d", u.Sessions), last})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
