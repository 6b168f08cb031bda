package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"N", "Sessions", "Score"}
	rows := [][]string{
		{"2", "12", "700"},
		{"10", "3", "-50"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "N  Sessions Score" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "2        12   700" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "10        3   -50" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}
