// Package tui provides the Bubble Tea dual n-back interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/dualnback/internal/engine"
	"github.com/verte-zerg/dualnback/internal/model"
	"github.com/verte-zerg/dualnback/internal/recorder"
	statsPkg "github.com/verte-zerg/dualnback/internal/stats"
)

const (
	maxNLevel = 9
	cellWidth = 7
)

// SessionRecorder stores finished sessions.
type SessionRecorder interface {
	Record(ctx context.Context, user string, summary model.SessionSummary) (model.SavedSession, error)
}

// SessionLister loads earlier sessions for the footer.
type SessionLister interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error)
}

// Deps are the collaborators of the game screen.
type Deps struct {
	Recorder SessionRecorder
	History  SessionLister
	Source   engine.StimulusSource
	Player   engine.SpeechPlayer
	Clock    engine.Clock
	Logger   *zap.Logger
}

type keyMap struct {
	Toggle   key.Binding
	Position key.Binding
	Audio    key.Binding
	LevelUp  key.Binding
	LevelDn  key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Position, k.Audio, k.LevelUp, k.LevelDn, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Toggle:   key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "start/stop")),
	Position: key.NewBinding(key.WithKeys("a", "A"), key.WithHelp("a", "position match")),
	Audio:    key.NewBinding(key.WithKeys("l", "L"), key.WithHelp("l", "sound match")),
	LevelUp:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "n up")),
	LevelDn:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "n down")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type engineChangedMsg struct{}

type sessionSavedMsg struct {
	saved model.SavedSession
	err   error
}

// Model implements the Bubble Tea game UI.
type Model struct {
	config   model.GameConfig
	engine   *engine.Engine
	recorder SessionRecorder
	history  SessionLister
	logger   *zap.Logger
	help     help.Model

	changed chan struct{}

	// finished queues summaries from OnFinish until Update or quit saves them.
	finishedMu sync.Mutex
	finished   []model.SessionSummary
	saving     sync.WaitGroup

	snap     engine.Snapshot
	width    int
	height   int
	status   string
	failed   bool
	quitting bool

	lastAcc     int
	hasLast     bool
	allAcc      float64
	allSessions int
}

var (
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Bold(true)
	cellStyle       = lipgloss.NewStyle().Width(cellWidth).Height(3).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4A4A4A"))
	activeCellStyle = cellStyle.Copy().Background(lipgloss.Color("#3B82F6")).BorderForeground(lipgloss.Color("#93C5FD"))
	letterStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	buttonStyle     = lipgloss.NewStyle().Width(16).Align(lipgloss.Center).Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4A4A4A"))
	panelStyle      = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4A4A4A"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	levelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FACC15")).Bold(true)
	goodStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ADE80")).Bold(true)
	fairStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FACC15")).Bold(true)
	poorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))

	feedbackBorder = map[model.Feedback]lipgloss.Color{
		model.FeedbackUnset:   lipgloss.Color("#4A4A4A"),
		model.FeedbackCorrect: lipgloss.Color("#4ADE80"),
		model.FeedbackWrong:   lipgloss.Color("#F87171"),
		model.FeedbackMissed:  lipgloss.Color("#FACC15"),
	}
)

// NewModel constructs the game model and its round engine.
func NewModel(cfg model.GameConfig, deps Deps) *Model {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{
		config:   cfg,
		recorder: deps.Recorder,
		history:  deps.History,
		logger:   logger,
		help:     help.New(),
		changed:  make(chan struct{}, 1),
	}
	m.engine = engine.New(engine.Options{
		Clock:    deps.Clock,
		Player:   deps.Player,
		Source:   deps.Source,
		Logger:   logger,
		OnChange: m.signalChange,
		OnFinish: m.signalFinish,
	})
	m.snap = m.engine.Snapshot()
	m.loadFooterStats()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForEngine()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case engineChangedMsg:
		m.snap = m.engine.Snapshot()
		if m.quitting {
			return m, nil
		}
		return m, tea.Batch(m.saveFinishedCmd(), m.waitForEngine())
	case sessionSavedMsg:
		m.handleSaved(msg)
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		if _, err := m.engine.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
			m.logger.Error("failed to stop session", zap.Error(err))
		}
		// After Wait every OnFinish has run, so the queue holds all unsaved sessions.
		m.engine.Wait()
		for _, summary := range m.takeFinished() {
			m.handleSaved(m.record(summary))
		}
		m.saving.Wait()
		return m, tea.Quit
	case key.Matches(msg, keys.Toggle):
		if m.snap.Running {
			if _, err := m.engine.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
				m.setStatus(err.Error(), true)
			}
		} else {
			m.startSession()
		}
		m.snap = m.engine.Snapshot()
		return m, nil
	case key.Matches(msg, keys.Position):
		m.engine.ClaimPositionMatch()
		m.snap = m.engine.Snapshot()
		return m, nil
	case key.Matches(msg, keys.Audio):
		m.engine.ClaimAudioMatch()
		m.snap = m.engine.Snapshot()
		return m, nil
	case key.Matches(msg, keys.LevelUp):
		if !m.snap.Running && m.config.NLevel < maxNLevel {
			m.config.NLevel++
		}
		return m, nil
	case key.Matches(msg, keys.LevelDn):
		if !m.snap.Running && m.config.NLevel > 1 {
			m.config.NLevel--
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) startSession() {
	period := time.Duration(m.config.SpeedMs) * time.Millisecond
	if err := m.engine.Start(m.config.NLevel, period, m.config.Rounds); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.status = ""
	m.failed = false
}

func (m *Model) signalChange(engine.Snapshot) {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}

func (m *Model) signalFinish(summary model.SessionSummary) {
	m.finishedMu.Lock()
	m.finished = append(m.finished, summary)
	m.finishedMu.Unlock()
	m.signalChange(engine.Snapshot{})
}

func (m *Model) takeFinished() []model.SessionSummary {
	m.finishedMu.Lock()
	defer m.finishedMu.Unlock()
	out := m.finished
	m.finished = nil
	return out
}

func (m *Model) waitForEngine() tea.Cmd {
	changed := m.changed
	return func() tea.Msg {
		<-changed
		return engineChangedMsg{}
	}
}

// saveFinishedCmd saves every queued summary in order. Quit waits for it through m.saving.
func (m *Model) saveFinishedCmd() tea.Cmd {
	summaries := m.takeFinished()
	if len(summaries) == 0 {
		return nil
	}
	m.saving.Add(1)
	return func() tea.Msg {
		defer m.saving.Done()
		// Only the last outcome reaches the status line; earlier failures are logged here.
		var last sessionSavedMsg
		for i, summary := range summaries {
			last = m.record(summary)
			if i < len(summaries)-1 && last.err != nil && !errors.Is(last.err, recorder.ErrSessionTooShort) {
				m.logger.Error("failed to save session", zap.Int("rounds", summary.Rounds), zap.Error(last.err))
			}
		}
		return last
	}
}

func (m *Model) record(summary model.SessionSummary) sessionSavedMsg {
	if m.recorder == nil {
		return sessionSavedMsg{err: errors.New("no recorder configured")}
	}
	saved, err := m.recorder.Record(context.Background(), m.config.User, summary)
	return sessionSavedMsg{saved: saved, err: err}
}

func (m *Model) handleSaved(msg sessionSavedMsg) {
	switch {
	case errors.Is(msg.err, recorder.ErrSessionTooShort):
		m.setStatus(fmt.Sprintf("Session too short to save (need %d rounds)", recorder.MinRounds), true)
	case msg.err != nil:
		m.logger.Error("failed to save session", zap.Error(msg.err))
		m.setStatus("Failed to save session", true)
	default:
		m.setStatus(fmt.Sprintf("Saved: N=%d · score %d · accuracy %d%%", msg.saved.NLevel, msg.saved.Score, msg.saved.Accuracy), false)
		m.lastAcc = msg.saved.Accuracy
		m.hasLast = true
		m.allAcc = (m.allAcc*float64(m.allSessions) + float64(msg.saved.Accuracy)) / float64(m.allSessions+1)
		m.allSessions++
	}
}

func (m *Model) setStatus(status string, failed bool) {
	m.status = status
	m.failed = failed
}

func (m *Model) loadFooterStats() {
	if m.history == nil {
		return
	}
	sessions, err := m.history.ListSessions(context.Background(), model.StatsConfig{User: m.config.User})
	if err != nil {
		m.logger.Warn("failed to load session stats", zap.Error(err))
		return
	}
	if len(sessions) == 0 {
		return
	}
	m.lastAcc = sessions[len(sessions)-1].Accuracy
	m.hasLast = true
	sum := statsPkg.Summarize(sessions)
	m.allAcc = sum.AvgAccuracy
	m.allSessions = sum.Sessions
}

// View implements tea.Model.
func (m *Model) View() string {
	title := titleStyle.Render("Dual N-Back")
	board := lipgloss.JoinVertical(lipgloss.Center, m.renderGrid(), m.renderCaption(), m.renderButtons())
	body := lipgloss.JoinHorizontal(lipgloss.Center, board, "  ", m.renderPanel())
	lines := []string{title, "", body}
	if m.status != "" {
		style := footerStyle
		if m.failed {
			style = errorStyle
		}
		lines = append(lines, "", style.Render(m.status))
	}
	lines = append(lines, "", m.renderFooter(), m.help.View(keys))
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderGrid() string {
	active := -1
	if m.snap.Current != nil {
		active = m.snap.Current.Position
	}
	rows := make([]string, 0, 3)
	for r := 0; r < 3; r++ {
		cells := make([]string, 0, 3)
		for c := 0; c < 3; c++ {
			if r*3+c == active {
				cells = append(cells, activeCellStyle.Render(""))
			} else {
				cells = append(cells, cellStyle.Render(""))
			}
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *Model) renderCaption() string {
	if !m.snap.Running {
		return labelStyle.Render("press space to start")
	}
	if !m.config.ShowLetter || m.snap.Current == nil {
		return ""
	}
	return letterStyle.Render(m.snap.Current.Letter)
}

func (m *Model) renderButtons() string {
	pos := renderButton("Position [A]", m.snap.Feedback.Pos)
	audio := renderButton("Sound [L]", m.snap.Feedback.Audio)
	return lipgloss.JoinHorizontal(lipgloss.Top, pos, " ", audio)
}

func renderButton(label string, fb model.Feedback) string {
	style := buttonStyle.Copy().BorderForeground(feedbackBorder[fb])
	text := label
	if fb != model.FeedbackUnset {
		text = label + "\n" + fb.String()
	}
	return style.Render(text)
}

func (m *Model) renderPanel() string {
	nLevel := m.config.NLevel
	maxRounds := m.config.Rounds
	if m.snap.Running {
		nLevel = m.snap.NLevel
		maxRounds = m.snap.MaxRounds
	}
	rows := []string{
		labelStyle.Render("Score"),
		valueStyle.Render(fmt.Sprintf("%d", m.snap.Score)),
		"",
		labelStyle.Render("Accuracy"),
		accuracyStyle(m.snap.Accuracy).Render(fmt.Sprintf("%d%%", m.snap.Accuracy)),
		labelStyle.Render(fmt.Sprintf("based on %d targets", m.snap.Matches.Total())),
		"",
		labelStyle.Render("N-Level ") + levelStyle.Render(fmt.Sprintf("N = %d", nLevel)),
		labelStyle.Render("Rounds  ") + valueStyle.Render(fmt.Sprintf("%d/%d", m.snap.Rounds, maxRounds)),
		labelStyle.Render("Pos targets ") + valueStyle.Render(fmt.Sprintf("%d", m.snap.Matches.Pos)),
		labelStyle.Render("Audio targets ") + valueStyle.Render(fmt.Sprintf("%d", m.snap.Matches.Audio)),
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func accuracyStyle(acc int) lipgloss.Style {
	switch {
	case acc >= 80:
		return goodStyle
	case acc >= 50:
		return fairStyle
	default:
		return poorStyle
	}
}

func (m *Model) renderFooter() string {
	segments := []string{}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %d%%", m.lastAcc))
	}
	if m.allSessions > 0 {
		segments = append(segments, fmt.Sprintf("All-time %.1f%% · %d sessions", m.allAcc, m.allSessions))
	}
	if len(segments) == 0 {
		segments = append(segments, "No saved sessions yet")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
