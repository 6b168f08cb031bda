package alphabet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "letters.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write alphabet: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "# letters\nc\n\n h \nK\n")
	symbols, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if strings.Join(symbols, ",") != "C,H,K" {
		t.Fatalf("unexpected symbols: %v", symbols)
	}
}

func TestLoadRejectsDuplicates(t *testing.T) {
	path := writeFile(t, "A\nb\na\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]string{"A"}); err == nil {
		t.Fatalf("expected error for single symbol")
	}
	for _, bad := range [][]string{{"A", "B C"}, {"A", "É"}, {"A", ""}} {
		if err := Validate(bad); err == nil {
			t.Fatalf("expected %v to be rejected", bad)
		}
	}
	if err := Validate([]string{"A", "7"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
