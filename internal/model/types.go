// Package model defines shared data structures.
package model

import "time"

// GridCells is the number of cells in the 3x3 position grid.
const GridCells = 9

// Stimulus is the cue pair shown during one round.
type Stimulus struct {
	Position int
	Letter   string
}

// Matches counts ground-truth targets per channel.
type Matches struct {
	Pos   int `json:"pos"`
	Audio int `json:"audio"`
}

// Total returns the number of targets across both channels.
func (m Matches) Total() int {
	return m.Pos + m.Audio
}

// Feedback classifies a channel for the round that just closed.
type Feedback int

const (
	FeedbackUnset Feedback = iota
	FeedbackCorrect
	FeedbackWrong
	FeedbackMissed
)

func (f Feedback) String() string {
	switch f {
	case FeedbackCorrect:
		return "correct"
	case FeedbackWrong:
		return "wrong"
	case FeedbackMissed:
		return "missed"
	default:
		return ""
	}
}

// RoundFeedback holds feedback for both channels.
type RoundFeedback struct {
	Pos   Feedback
	Audio Feedback
}

// GameConfig defines play settings.
type GameConfig struct {
	NLevel     int
	SpeedMs    int
	Rounds     int
	MatchRate  float64
	Alphabet   []string
	Speech     string
	SpeechRate int
	ShowLetter bool
	User       string
}

// SessionSummary is handed to the persistence boundary when a session ends.
type SessionSummary struct {
	NLevel    int       `json:"nLevel"`
	Rounds    int       `json:"rounds"`
	Score     int       `json:"score"`
	Matches   Matches   `json:"matches"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// SavedSession is a persisted session record.
type SavedSession struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	User      string    `json:"user"`
	NLevel    int       `json:"nLevel"`
	Rounds    int       `json:"rounds"`
	Score     int       `json:"score"`
	Accuracy  int       `json:"accuracy"`
	Matches   Matches   `json:"matches"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	User        string
	NLevel      int
	Since       *time.Time
	Last        int
	CurveWindow int
}

// SessionAggregate summarizes a session for reporting.
type SessionAggregate struct {
	SessionID int64
	EndedAt   time.Time
	NLevel    int
	Rounds    int
	Score     int
	Accuracy  int
	Matches   Matches
}

// UserAggregate summarizes a player.
type UserAggregate struct {
	Name     string
	NLevel   int
	Sessions int
	LastPlay *time.Time
}
