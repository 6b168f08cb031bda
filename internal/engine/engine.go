// Package engine runs timed dual n-back sessions.
//
// An Engine owns the stimulus history, the per-round claim flags and the
// aggregate score. A Clock drives round advances and the caller feeds in
// position and audio claims; both paths are serialized on one mutex so a
// claim is always attributed to the round that is showing when it lands.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/dualnback/internal/model"
	"github.com/verte-zerg/dualnback/internal/scoring"
)

var (
	// ErrInvalidConfig is returned by Start for out-of-range session settings.
	ErrInvalidConfig = errors.New("invalid session config")
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("no session running")
)

// Clock schedules a callback every period until the returned cancel func is called.
// Cancel must not wait for an in-flight callback to return.
type Clock interface {
	Every(period time.Duration, fn func()) (cancel func())
}

// SpeechPlayer speaks a symbol. Play should return promptly once ctx is cancelled.
type SpeechPlayer interface {
	Play(ctx context.Context, symbol string) error
}

// StimulusSource picks the next stimulus given the history so far.
type StimulusSource interface {
	Next(history []model.Stimulus, nLevel int) model.Stimulus
}

// Channel identifies one of the two cue channels.
type Channel int

const (
	ChannelPosition Channel = iota
	ChannelAudio
)

func (c Channel) String() string {
	if c == ChannelAudio {
		return "audio"
	}
	return "position"
}

// Options wires an Engine to its collaborators.
type Options struct {
	Clock  Clock
	Player SpeechPlayer
	Source StimulusSource
	Logger *zap.Logger
	// OnChange receives a snapshot after every state change. It runs outside the engine
	// lock, so a timer callback may deliver its snapshot after a concurrent Stop has
	// delivered a newer one. Callers that keep the argument should drop snapshots whose
	// Version is not newer than the last one they kept.
	OnChange func(Snapshot)
	// OnFinish receives the final summary when a session stops or reaches its round limit.
	OnFinish func(model.SessionSummary)
	Now      func() time.Time
}

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	// Version increases with every state change.
	Version   uint64
	Running   bool
	Current   *model.Stimulus
	NLevel    int
	MaxRounds int
	Score     int
	Rounds    int
	Accuracy  int
	Matches   model.Matches
	Feedback  model.RoundFeedback
}

type pendingResponse struct {
	pos   bool
	audio bool
}

// Engine is the round state machine.
type Engine struct {
	clock    Clock
	player   SpeechPlayer
	source   StimulusSource
	logger   *zap.Logger
	onChange func(Snapshot)
	onFinish func(model.SessionSummary)
	now      func() time.Time

	mu        sync.Mutex
	running   bool
	epoch     uint64
	version   uint64
	nLevel    int
	maxRounds int
	history   []model.Stimulus
	current   *model.Stimulus
	score     int
	rounds    int
	matches   model.Matches
	pending   pendingResponse
	feedback  model.RoundFeedback
	startedAt time.Time

	cancelTimer func()
	cancelPlay  context.CancelFunc

	// Both counters are only incremented under mu while running.
	playing sync.WaitGroup
	ticking sync.WaitGroup
}

// advance carries the side effects of a round transition out of the lock.
type advance struct {
	snapshot Snapshot
	playCtx  context.Context
	symbol   string
	finished bool
	summary  model.SessionSummary
}

// New constructs an idle Engine.
func New(opts Options) *Engine {
	e := &Engine{
		clock:    opts.Clock,
		player:   opts.Player,
		source:   opts.Source,
		logger:   opts.Logger,
		onChange: opts.OnChange,
		onFinish: opts.OnFinish,
		now:      opts.Now,
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Start resets all session state, shows the first stimulus immediately and
// arms the round timer.
func (e *Engine) Start(nLevel int, period time.Duration, maxRounds int) error {
	if nLevel < 1 {
		return fmt.Errorf("%w: n-level must be >= 1, got %d", ErrInvalidConfig, nLevel)
	}
	if maxRounds < 1 {
		return fmt.Errorf("%w: rounds must be >= 1, got %d", ErrInvalidConfig, maxRounds)
	}
	if period <= 0 {
		return fmt.Errorf("%w: period must be > 0, got %s", ErrInvalidConfig, period)
	}
	if e.source == nil {
		return fmt.Errorf("%w: no stimulus source", ErrInvalidConfig)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.epoch++
	epoch := e.epoch
	e.running = true
	e.nLevel = nLevel
	e.maxRounds = maxRounds
	e.history = nil
	e.current = nil
	e.score = 0
	e.rounds = 0
	e.matches = model.Matches{}
	e.pending = pendingResponse{}
	e.feedback = model.RoundFeedback{}
	e.startedAt = e.now()

	adv := e.advanceLocked()
	e.cancelTimer = e.clock.Every(period, func() { e.tick(epoch) })
	e.mu.Unlock()

	e.logger.Debug("session started",
		zap.Int("n_level", nLevel),
		zap.Duration("period", period),
		zap.Int("max_rounds", maxRounds))
	e.apply(adv)
	return nil
}

// Stop ends the running session and returns its summary.
func (e *Engine) Stop() (model.SessionSummary, error) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return model.SessionSummary{}, ErrNotRunning
	}
	summary := e.finishLocked()
	adv := advance{snapshot: e.snapshotLocked(), finished: true, summary: summary}
	e.mu.Unlock()

	e.apply(adv)
	return summary, nil
}

// ClaimPositionMatch records that the player saw a position match this round.
// It reports whether the claim changed anything.
func (e *Engine) ClaimPositionMatch() bool {
	return e.claim(ChannelPosition)
}

// ClaimAudioMatch records that the player heard a letter match this round.
func (e *Engine) ClaimAudioMatch() bool {
	return e.claim(ChannelAudio)
}

func (e *Engine) claim(ch Channel) bool {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return false
	}
	switch ch {
	case ChannelPosition:
		if e.pending.pos {
			e.mu.Unlock()
			return false
		}
		e.pending.pos = true
		e.feedback.Pos = model.FeedbackCorrect
		e.version++
	case ChannelAudio:
		if e.pending.audio {
			e.mu.Unlock()
			return false
		}
		e.pending.audio = true
		e.feedback.Audio = model.FeedbackCorrect
		e.version++
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return true
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// History returns a copy of the stimuli shown in the current or last session.
func (e *Engine) History() []model.Stimulus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Stimulus, len(e.history))
	copy(out, e.history)
	return out
}

// Wait blocks until every playback and timer callback started so far has
// returned. Once Stop has returned, no new ones start, so after Wait the
// session's OnChange and OnFinish calls have all been delivered.
func (e *Engine) Wait() {
	e.ticking.Wait()
	e.playing.Wait()
}

func (e *Engine) tick(epoch uint64) {
	e.mu.Lock()
	if !e.running || epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	e.ticking.Add(1)
	defer e.ticking.Done()
	adv := e.advanceLocked()
	e.mu.Unlock()

	e.apply(adv)
}

// advanceLocked closes the current round and opens the next one.
func (e *Engine) advanceLocked() advance {
	if e.rounds >= e.maxRounds {
		summary := e.finishLocked()
		return advance{snapshot: e.snapshotLocked(), finished: true, summary: summary}
	}

	next := model.RoundFeedback{}
	if n := len(e.history); n > e.nLevel {
		actual := e.history[n-1]
		target := e.history[n-1-e.nLevel]
		isPosMatch := actual.Position == target.Position
		isAudioMatch := actual.Letter == target.Letter
		if isPosMatch {
			e.matches.Pos++
		}
		if isAudioMatch {
			e.matches.Audio++
		}
		var posDelta, audioDelta int
		next.Pos, posDelta = scoring.Classify(isPosMatch, e.pending.pos)
		next.Audio, audioDelta = scoring.Classify(isAudioMatch, e.pending.audio)
		e.score += posDelta + audioDelta
	}

	e.pending = pendingResponse{}
	e.feedback = next
	e.rounds++
	e.version++

	stim := e.source.Next(e.history, e.nLevel)
	e.history = append(e.history, stim)
	current := stim
	e.current = &current

	if e.cancelPlay != nil {
		e.cancelPlay()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelPlay = cancel
	if e.player != nil {
		e.playing.Add(1)
	}

	return advance{snapshot: e.snapshotLocked(), playCtx: ctx, symbol: stim.Letter}
}

func (e *Engine) finishLocked() model.SessionSummary {
	e.running = false
	e.epoch++
	e.version++
	if e.cancelTimer != nil {
		e.cancelTimer()
		e.cancelTimer = nil
	}
	if e.cancelPlay != nil {
		e.cancelPlay()
		e.cancelPlay = nil
	}
	e.current = nil
	e.pending = pendingResponse{}
	return model.SessionSummary{
		NLevel:    e.nLevel,
		Rounds:    e.rounds,
		Score:     e.score,
		Matches:   e.matches,
		StartedAt: e.startedAt,
		EndedAt:   e.now(),
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:   e.version,
		Running:   e.running,
		NLevel:    e.nLevel,
		MaxRounds: e.maxRounds,
		Score:     e.score,
		Rounds:    e.rounds,
		Accuracy:  scoring.Accuracy(e.score, e.matches),
		Matches:   e.matches,
		Feedback:  e.feedback,
	}
	if e.current != nil {
		current := *e.current
		snap.Current = &current
	}
	return snap
}

func (e *Engine) apply(adv advance) {
	if adv.playCtx != nil {
		e.play(adv.playCtx, adv.symbol)
	}
	e.notify(adv.snapshot)
	if adv.finished {
		e.logger.Debug("session finished",
			zap.Int("rounds", adv.summary.Rounds),
			zap.Int("score", adv.summary.Score))
		if e.onFinish != nil {
			e.onFinish(adv.summary)
		}
	}
}

func (e *Engine) notify(snap Snapshot) {
	if e.onChange != nil {
		e.onChange(snap)
	}
}

// play speaks the symbol in the background. Failures never reach the round timer.
// advanceLocked has already counted it in e.playing.
func (e *Engine) play(ctx context.Context, symbol string) {
	if e.player == nil {
		return
	}
	go func() {
		defer e.playing.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Warn("speech playback panicked", zap.String("symbol", symbol), zap.Any("panic", r))
			}
		}()
		err := e.player.Play(ctx, symbol)
		if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		e.logger.Warn("speech playback failed", zap.String("symbol", symbol), zap.Error(err))
	}()
}
