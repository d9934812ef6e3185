package ascii

import (
	"bytes"
	"testing"
)

func TestBox(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{
			name:  "single line",
			lines: []string{"Hello"},
			want:  "┌───────┐\n│ Hello │\n└───────┘\n",
		},
		{
			name:  "multiple lines",
			lines: []string{"Line 1", "Longer line here", "Short"},
			want: "┌──────────────────┐\n" +
				"│ Line 1           │\n" +
				"│ Longer line here │\n" +
				"│ Short            │\n" +
				"└──────────────────┘\n",
		},
		{
			name:  "trailing spaces trimmed",
			lines: []string{"a   ", "bb"},
			want:  "┌────┐\n│ a  │\n│ bb │\n└────┘\n",
		},
		{
			name:  "wide characters",
			lines: []string{"全角", "ab"},
			want:  "┌──────┐\n│ 全角 │\n│ ab   │\n└──────┘\n",
		},
		{
			name:  "empty",
			lines: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Box(tt.lines); got != tt.want {
				t.Errorf("Box() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDrawBox(t *testing.T) {
	var buf bytes.Buffer
	DrawBox(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("DrawBox(nil) wrote %q", buf.String())
	}
	DrawBox(&buf, []string{"x"})
	if buf.String() != "┌───┐\n│ x │\n└───┘\n" {
		t.Errorf("DrawBox() = %q", buf.String())
	}
}

func TestTable(t *testing.T) {
	got := Table([][]string{
		{"phase", "uploads", "files"},
		{"1", "12", "3"},
		{"2", "1", "1"},
	})
	want := []string{
		"phase  uploads  files",
		"1      12       3",
		"2      1        1",
	}
	if len(got) != len(want) {
		t.Fatalf("Table() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Table()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStringWidth(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"hello", 5},
		{"世界", 4},
		{"a世b", 4},
	}
	for _, tt := range tests {
		if got := StringWidth(tt.input); got != tt.want {
			t.Errorf("StringWidth(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestTruncateForBox(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		width    int
		expected string
	}{
		{"no truncation", "Hello", 10, "Hello"},
		{"truncation", "This is a very long string", 10, "This is..."},
		{"exact width", "Hello", 5, "Hello"},
		{"width too small", "Hello", 2, "He"},
		{"zero width", "Hello", 0, ""},
		{"wide runes", "世界世界世界", 7, "世界..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateForBox(tt.value, tt.width); got != tt.expected {
				t.Errorf("TruncateForBox(%q, %d) = %q, want %q", tt.value, tt.width, got, tt.expected)
			}
		})
	}
}

func TestTruncateLeft(t *testing.T) {
	tests := []struct {
		value    string
		width    int
		expected string
	}{
		{"dist/a.css", 20, "dist/a.css"},
		{"/very/long/path/dist/site.css", 15, "...ist/site.css"},
		{"abcdef", 3, "..."},
		{"abcdef", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateLeft(tt.value, tt.width); got != tt.expected {
			t.Errorf("TruncateLeft(%q, %d) = %q, want %q", tt.value, tt.width, got, tt.expected)
		}
	}
}
