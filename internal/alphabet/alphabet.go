// Package alphabet loads the set of spoken symbols from files.
package alphabet

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// MinSymbols is the smallest alphabet that still leaves room for non-matching rounds.
const MinSymbols = 2

// Load reads one symbol per line from the provided file path.
// Blank lines and lines starting with '#' are skipped.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only alphabet file.
			_ = cerr
		}
	}()

	var symbols []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, strings.ToUpper(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := Validate(symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

// Validate checks that symbols are distinct and speakable.
func Validate(symbols []string) error {
	if len(symbols) < MinSymbols {
		return fmt.Errorf("alphabet needs at least %d symbols, got %d", MinSymbols, len(symbols))
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if !speakable(s) {
			return fmt.Errorf("symbol %q must be letters or digits without spaces", s)
		}
		if _, ok := seen[s]; ok {
			return fmt.Errorf("duplicate symbol %q", s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

func speakable(symbol string) bool {
	if symbol == "" {
		return false
	}
	for i := 0; i < len(symbol); i++ {
		ch := symbol[i]
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return false
		}
	}
	return true
}
