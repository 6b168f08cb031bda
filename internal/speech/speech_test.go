package speech

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func lookupOnly(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestNewOffIsSilent(t *testing.T) {
	p, err := newWithLookup("off", 0, lookupOnly())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(Silent); !ok {
		t.Fatalf("expected Silent player, got %T", p)
	}
}

func TestNewAutoPrefersEspeakNG(t *testing.T) {
	p, err := newWithLookup("auto", 200, lookupOnly("say", "espeak-ng"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmd, ok := p.(*Command)
	if !ok {
		t.Fatalf("expected Command player, got %T", p)
	}
	if cmd.Path != "/usr/bin/espeak-ng" {
		t.Fatalf("unexpected path %q", cmd.Path)
	}
	args := cmd.Args("K")
	if len(args) != 5 || args[3] != "200" || args[4] != "K" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestNewAutoWithoutBackend(t *testing.T) {
	if _, err := newWithLookup("auto", 0, lookupOnly()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewCustomCommand(t *testing.T) {
	p, err := newWithLookup("mytts", 0, lookupOnly("mytts"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args := p.(*Command).Args("Q")
	if len(args) != 1 || args[0] != "Q" {
		t.Fatalf("unexpected args %v", args)
	}
	if _, err := newWithLookup("missing", 0, lookupOnly()); err == nil {
		t.Fatalf("expected error for missing command")
	}
}

func TestCommandPlayCancelled(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	cmd := &Command{Path: path, Args: func(string) []string { return []string{"5"} }}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = cmd.Play(ctx, "A")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("playback was not interrupted")
	}
}
