// Package speech speaks stimulus letters through an external text-to-speech command.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	ModeAuto = "auto"
	ModeOff  = "off"

	// DefaultRate is in words per minute, roughly 1.2x a normal speaking pace.
	DefaultRate = 210
)

// ErrUnavailable is returned when no speech command can be found.
var ErrUnavailable = errors.New("no speech command available")

// Player plays a symbol and returns when speech finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, symbol string) error
}

// Silent discards every symbol.
type Silent struct{}

// Play implements Player.
func (Silent) Play(context.Context, string) error { return nil }

// Command runs a TTS binary once per symbol.
type Command struct {
	Path string
	Args func(symbol string) []string
}

// Play implements Player. Cancelling ctx kills the running process.
func (c *Command) Play(ctx context.Context, symbol string) error {
	cmd := exec.CommandContext(ctx, c.Path, c.Args(symbol)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", c.Path, err, msg)
		}
		return fmt.Errorf("%s: %w", c.Path, err)
	}
	return nil
}

type backend struct {
	name string
	args func(rate int, symbol string) []string
}

var backends = []backend{
	{name: "espeak-ng", args: espeakArgs},
	{name: "espeak", args: espeakArgs},
	{name: "spd-say", args: func(rate int, symbol string) []string {
		// spd-say takes a relative rate in [-100, 100].
		rel := (rate - 175) / 2
		if rel < -100 {
			rel = -100
		}
		if rel > 100 {
			rel = 100
		}
		return []string{"--wait", "-l", "en", "-r", strconv.Itoa(rel), symbol}
	}},
	{name: "say", args: func(rate int, symbol string) []string {
		return []string{"-r", strconv.Itoa(rate), symbol}
	}},
}

func espeakArgs(rate int, symbol string) []string {
	return []string{"-v", "en-us", "-s", strconv.Itoa(rate), symbol}
}

// New resolves a player for the given mode: "off", "auto" or a command name.
func New(mode string, rate int) (Player, error) {
	return newWithLookup(mode, rate, exec.LookPath)
}

func newWithLookup(mode string, rate int, lookPath func(string) (string, error)) (Player, error) {
	if rate <= 0 {
		rate = DefaultRate
	}
	mode = strings.TrimSpace(mode)
	switch strings.ToLower(mode) {
	case ModeOff, "none", "":
		return Silent{}, nil
	case ModeAuto:
		for _, b := range backends {
			path, err := lookPath(b.name)
			if err != nil {
				continue
			}
			return commandFor(path, b, rate), nil
		}
		return nil, ErrUnavailable
	}
	path, err := lookPath(mode)
	if err != nil {
		return nil, fmt.Errorf("speech command %q: %w", mode, err)
	}
	for _, b := range backends {
		if b.name == mode {
			return commandFor(path, b, rate), nil
		}
	}
	return &Command{Path: path, Args: func(symbol string) []string { return []string{symbol} }}, nil
}

func commandFor(path string, b backend, rate int) *Command {
	return &Command{Path: path, Args: func(symbol string) []string { return b.args(rate, symbol) }}
}
