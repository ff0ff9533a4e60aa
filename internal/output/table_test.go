package output

import (
	"strings"
	"testing"
)

func TestPad(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  int // expected length of output
	}{
		{"needs padding", "hi", 10, 10},
		{"exact width", "hello", 5, 5},
		{"over width", "toolong", 3, 7}, // no truncation
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := pad(tc.input, tc.width)
			if len(got) != tc.want {
				t.Errorf("pad(%q, %d) len = %d, want %d", tc.input, tc.width, len(got), tc.want)
			}
		})
	}
}

func TestTable_Render(t *testing.T) {
	// Disable color so we get predictable output.
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("Reminder", "Delay")
	tbl.AddRow("rem-1", "30m")
	tbl.AddRow("rem-2", "0s")

	output := tbl.Render()

	if !strings.Contains(output, "Reminder") {
		t.Error("expected header 'Reminder' in output")
	}
	if !strings.Contains(output, "Delay") {
		t.Error("expected header 'Delay' in output")
	}
	if !strings.Contains(output, "rem-1") {
		t.Error("expected 'rem-1' in output")
	}
	if !strings.Contains(output, "rem-2") {
		t.Error("expected 'rem-2' in output")
	}
	if !strings.Contains(output, "─") {
		t.Error("expected separator character in output")
	}

	// Count lines: header + separator + 2 data rows = 4 lines.
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) != 4 {
		t.Errorf("expected 4 lines, got %d", len(lines))
	}
}

func TestTable_EmptyHeaders(t *testing.T) {
	tbl := NewTable()
	output := tbl.Render()
	if output != "" {
		t.Errorf("expected empty output for empty table, got %q", output)
	}
}

func TestTable_ShortRowPadded(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("A", "B", "C")
	tbl.AddRow("x")
	output := tbl.Render()
	if !strings.Contains(output, "x") {
		t.Error("expected short row value in output")
	}
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("expected 3 lines, got %d", len(lines))
	}
}

func TestSection_ContainsTitleAndRule(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	s := Section("Battery status")
	if !strings.Contains(s, "Battery status") {
		t.Error("expected title in section output")
	}
	if !strings.Contains(s, "─") {
		t.Error("expected rule in section output")
	}
}
