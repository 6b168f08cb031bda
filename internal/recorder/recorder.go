// Package recorder is the persistence boundary for finished sessions.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/verte-zerg/dualnback/internal/model"
	"github.com/verte-zerg/dualnback/internal/scoring"
)

// MinRounds is the shortest session worth keeping.
const MinRounds = 5

// ErrSessionTooShort rejects sessions with fewer than MinRounds rounds.
var ErrSessionTooShort = errors.New("session too short")

// SessionStore persists accepted sessions under a player name.
type SessionStore interface {
	InsertSession(ctx context.Context, user string, rec model.SavedSession) (model.SavedSession, error)
}

// Recorder validates summaries and stores them.
type Recorder struct {
	store  SessionStore
	logger *zap.Logger
}

// New returns a Recorder writing to st.
func New(st SessionStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: st, logger: logger}
}

// Record rejects too-short sessions, attaches accuracy and stores the rest.
func (r *Recorder) Record(ctx context.Context, user string, summary model.SessionSummary) (model.SavedSession, error) {
	if summary.Rounds < MinRounds {
		r.logger.Info("session rejected",
			zap.String("user", user),
			zap.Int("rounds", summary.Rounds),
			zap.Int("min_rounds", MinRounds))
		return model.SavedSession{}, fmt.Errorf("%w: %d rounds, need at least %d", ErrSessionTooShort, summary.Rounds, MinRounds)
	}
	rec := model.SavedSession{
		NLevel:    summary.NLevel,
		Rounds:    summary.Rounds,
		Score:     summary.Score,
		Accuracy:  scoring.Accuracy(summary.Score, summary.Matches),
		Matches:   summary.Matches,
		StartedAt: summary.StartedAt,
		EndedAt:   summary.EndedAt,
	}
	saved, err := r.store.InsertSession(ctx, user, rec)
	if err != nil {
		r.logger.Error("failed to save session", zap.String("user", user), zap.Error(err))
		return model.SavedSession{}, fmt.Errorf("failed to save session: %w", err)
	}
	r.logger.Info("session saved",
		zap.String("user", user),
		zap.String("uid", saved.UID),
		zap.Int("n_level", saved.NLevel),
		zap.Int("score", saved.Score),
		zap.Int("accuracy", saved.Accuracy))
	return saved, nil
}
