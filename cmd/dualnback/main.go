// Package main provides the CLI entrypoint for dualnback.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/verte-zerg/dualnback/internal/alphabet"
	"github.com/verte-zerg/dualnback/internal/config"
	"github.com/verte-zerg/dualnback/internal/generator"
	"github.com/verte-zerg/dualnback/internal/logging"
	"github.com/verte-zerg/dualnback/internal/model"
	"github.com/verte-zerg/dualnback/internal/recorder"
	"github.com/verte-zerg/dualnback/internal/server"
	"github.com/verte-zerg/dualnback/internal/speech"
	"github.com/verte-zerg/dualnback/internal/stats"
	"github.com/verte-zerg/dualnback/internal/statsui"
	"github.com/verte-zerg/dualnback/internal/store"
	"github.com/verte-zerg/dualnback/internal/tui"
)

const (
	defaultNLevel      = 2
	defaultSpeedMs     = 2500
	defaultRounds      = 20
	defaultSpeech      = speech.ModeAuto
	defaultCurveWindow = 10
	defaultAddr        = ":8080"
	defaultPlotWidth   = 60
	minSpeedMs         = 500
	maxNLevel          = 9
	fallbackUser       = "player"
)

var (
	playNLevel     int
	playSpeedMs    int
	playRounds     int
	playMatchRate  float64
	playAlphabet   string
	playSpeech     string
	playSpeechRate int
	playShowLetter bool
	playUser       string
	verbose        bool

	statsNLevel      int
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool
	statsUser        string

	serveAddr string
	serveUser string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dualnback",
		Short:         "Dual n-back trainer for the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.Flags().IntVarP(&playNLevel, "n", "n", defaultNLevel, "n-back depth")
	rootCmd.Flags().IntVar(&playSpeedMs, "speed", defaultSpeedMs, "round length in milliseconds")
	rootCmd.Flags().IntVar(&playRounds, "rounds", defaultRounds, "rounds per session")
	rootCmd.Flags().Float64Var(&playMatchRate, "match-rate", generator.DefaultMatchRate, "probability of forcing a match per channel (0-1)")
	rootCmd.Flags().StringVar(&playAlphabet, "alphabet", "", "file with one spoken symbol per line")
	rootCmd.Flags().StringVar(&playSpeech, "speech", defaultSpeech, "speech command: auto, off, or a command name")
	rootCmd.Flags().IntVar(&playSpeechRate, "speech-rate", speech.DefaultRate, "speech rate in words per minute")
	rootCmd.Flags().BoolVar(&playShowLetter, "show-letter", false, "show the spoken letter under the grid")
	rootCmd.Flags().StringVar(&playUser, "user", "", "player name (default: $DUALNBACK_USER, then $USER)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newUsersCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.LoadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	applyIntConfig(cmd, "n", &playNLevel, fileCfg.Game.NLevel)
	applyIntConfig(cmd, "speed", &playSpeedMs, fileCfg.Game.SpeedMs)
	applyIntConfig(cmd, "rounds", &playRounds, fileCfg.Game.Rounds)
	applyFloatConfig(cmd, "match-rate", &playMatchRate, fileCfg.Game.MatchRate)
	applyStringConfig(cmd, "alphabet", &playAlphabet, fileCfg.Game.AlphabetFile)
	applyStringConfig(cmd, "speech", &playSpeech, fileCfg.Game.Speech)
	applyIntConfig(cmd, "speech-rate", &playSpeechRate, fileCfg.Game.SpeechRate)
	applyBoolConfig(cmd, "show-letter", &playShowLetter, fileCfg.Game.ShowLetter)
	applyStringConfig(cmd, "user", &playUser, fileCfg.Game.User)

	cfg := model.GameConfig{
		NLevel:     playNLevel,
		SpeedMs:    playSpeedMs,
		Rounds:     playRounds,
		MatchRate:  playMatchRate,
		Alphabet:   generator.DefaultAlphabet,
		Speech:     playSpeech,
		SpeechRate: playSpeechRate,
		ShowLetter: playShowLetter,
		User:       resolveUser(playUser, envCfg.User),
	}
	if playAlphabet != "" {
		symbols, err := alphabet.Load(playAlphabet)
		if err != nil {
			return fmt.Errorf("--alphabet: %w", err)
		}
		cfg.Alphabet = symbols
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	logger, err := logging.New(envCfg.LogLevel, verbose, envCfg.LogPath)
	if err != nil {
		return err
	}
	defer func() {
		// Best-effort flush; syncing a file can still fail on some filesystems.
		_ = logger.Sync()
	}()

	player, err := speech.New(cfg.Speech, cfg.SpeechRate)
	if err != nil {
		if !errors.Is(err, speech.ErrUnavailable) {
			return fmt.Errorf("--speech: %w", err)
		}
		logger.Warn("no speech command found; showing letters instead")
		player = speech.Silent{}
		cfg.ShowLetter = true
	}
	if _, silent := player.(speech.Silent); silent {
		cfg.ShowLetter = true
	}

	st, err := store.Open(envCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	logger.Info("starting game",
		zap.String("user", cfg.User),
		zap.Int("n_level", cfg.NLevel),
		zap.Int("speed_ms", cfg.SpeedMs),
		zap.Int("rounds", cfg.Rounds))

	m := tui.NewModel(cfg, tui.Deps{
		Recorder: recorder.New(st, logger),
		History:  st,
		Source:   generator.New(cfg.Alphabet, cfg.MatchRate),
		Player:   player,
		Logger:   logger,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show session history and learning curves",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().IntVar(&statsNLevel, "n", 0, "only sessions at this n-level")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a plain text report")
	cmd.Flags().StringVar(&statsUser, "user", "", "player name (default: current player)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildStatsConfig()
	if err != nil {
		return err
	}
	envCfg, err := config.LoadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	user := statsUser
	if user == "" && fileCfg.Game.User != nil {
		user = *fileCfg.Game.User
	}
	cfg.User = resolveUser(user, envCfg.User)

	st, err := store.Open(envCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	fd := int(os.Stdout.Fd())
	if statsPlain || !term.IsTerminal(fd) {
		report, err := stats.BuildReport(cmd.Context(), st, cfg)
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}
		width := defaultPlotWidth
		if w, _, err := term.GetSize(fd); err == nil && w > 20 {
			width = w - 20
		}
		return stats.RenderText(cmd.OutOrStdout(), report, cfg.CurveWindow, width)
	}

	program := tea.NewProgram(statsui.NewModel(st, cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func buildStatsConfig() (model.StatsConfig, error) {
	if statsNLevel < 0 {
		return model.StatsConfig{}, fmt.Errorf("--n must be >= 0")
	}
	if statsLast < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 1 {
		return model.StatsConfig{}, fmt.Errorf("--curve-window must be >= 1")
	}
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	return model.StatsConfig{
		NLevel:      statsNLevel,
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the save-game HTTP endpoint",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&serveUser, "user", "", "player for requests without an X-Player header")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.LoadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Serve.Addr)
	applyStringConfig(cmd, "user", &serveUser, fileCfg.Game.User)

	logger, err := logging.New(envCfg.LogLevel, verbose, "")
	if err != nil {
		return err
	}
	defer func() {
		// Best-effort flush; stderr sync fails on some terminals.
		_ = logger.Sync()
	}()

	st, err := store.Open(envCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("failed to close db", zap.Error(cerr))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(recorder.New(st, logger), resolveUser(serveUser, envCfg.User), logger)
	return srv.ListenAndServe(ctx, serveAddr)
}

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List players",
		Args:  cobra.NoArgs,
		RunE:  runUsersCmd,
	}
}

func runUsersCmd(cmd *cobra.Command, _ []string) error {
	envCfg, err := config.LoadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	st, err := store.Open(envCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	return stats.RenderUserTable(cmd.OutOrStdout(), users)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

// resolveUser picks the player name: flag or config value, then DUALNBACK_USER, then $USER.
func resolveUser(explicit, fromEnv string) string {
	for _, candidate := range []string{explicit, fromEnv, os.Getenv("USER")} {
		if name := strings.TrimSpace(candidate); name != "" {
			return name
		}
	}
	return fallbackUser
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# dualnback configuration
# Uncomment a value to enable it. CLI flags override config values.

[game]
# n-level = %d            # N-back depth
# speed-ms = %d        # Round length in milliseconds
# rounds = %d            # Rounds per session
# match-rate = %.2f       # Probability of forcing a match per channel (0-1)
# alphabet-file = ""      # File with one spoken symbol per line
# speech = %q         # auto, off, or a command name
# speech-rate = %d       # Words per minute
# show-letter = false     # Show the spoken letter under the grid
# user = ""               # Player name

[serve]
# addr = %q          # Listen address for dualnback serve
`,
		defaultNLevel,
		defaultSpeedMs,
		defaultRounds,
		generator.DefaultMatchRate,
		defaultSpeech,
		speech.DefaultRate,
		defaultAddr,
	)
}

func validateConfig(cfg model.GameConfig) error {
	if cfg.NLevel < 1 || cfg.NLevel > maxNLevel {
		return fmt.Errorf("--n must be between 1 and %d", maxNLevel)
	}
	if cfg.SpeedMs < minSpeedMs {
		return fmt.Errorf("--speed must be >= %d", minSpeedMs)
	}
	if cfg.Rounds < 1 {
		return fmt.Errorf("--rounds must be > 0")
	}
	if cfg.MatchRate < 0 || cfg.MatchRate > 1 {
		return fmt.Errorf("--match-rate must be between 0 and 1")
	}
	if cfg.SpeechRate <= 0 {
		return fmt.Errorf("--speech-rate must be > 0")
	}
	if err := alphabet.Validate(cfg.Alphabet); err != nil {
		return fmt.Errorf("--alphabet: %w", err)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
