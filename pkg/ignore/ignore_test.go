package ignore

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNewMatcher(t *testing.T) {
	tempDir := t.TempDir()

	gitignoreContent := `# Test gitignore
*.log
build/
.temp/
!.temp/keep.css
`
	if err := os.WriteFile(filepath.Join(tempDir, ".gitignore"), []byte(gitignoreContent), 0644); err != nil {
		t.Fatalf("Failed to write .gitignore: %v", err)
	}

	ownContent := `# Test cloudrefignore
*.min.css
vendor/
`
	if err := os.WriteFile(filepath.Join(tempDir, FileName), []byte(ownContent), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", FileName, err)
	}

	matcher, err := NewMatcher(tempDir)
	if err != nil {
		t.Fatalf("Failed to create matcher: %v", err)
	}

	fileTests := []struct {
		path     string
		expected bool
		name     string
	}{
		{".git/config", true, "git directory"},
		{"node_modules/lib/a.css", true, "node_modules directory"},
		{"error.log", true, "*.log pattern"},
		{"logs/error.log", true, "*.log pattern in subdirectory"},
		{"build/site.css", true, "build/ pattern"},
		{".temp/file.css", true, ".temp/ pattern"},
		{".temp/keep.css", false, "negation pattern"},
		{"css/app.min.css", true, "*.min.css from cloudrefignore"},
		{"vendor/x.css", true, "vendor/ from cloudrefignore"},
		{"css/app.css", false, "regular stylesheet"},
		{"index.html", false, "markup"},
		{filepath.Join(tempDir, "vendor", "y.css"), true, "absolute path under root"},
		{filepath.Join(filepath.Dir(tempDir), "vendor", "z.css"), false, "outside root"},
	}

	for _, tt := range fileTests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.IsIgnored(tt.path); got != tt.expected {
				t.Errorf("IsIgnored(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}

	dirTests := []struct {
		path     string
		expected bool
	}{
		{".git", true},
		{"node_modules", true},
		{"build", true},
		{"vendor", true},
		{"css", false},
	}
	for _, tt := range dirTests {
		t.Run(tt.path+"_dir", func(t *testing.T) {
			if got := matcher.IsIgnoredDir(tt.path); got != tt.expected {
				t.Errorf("IsIgnoredDir(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	if m.IsIgnored("a.css") {
		t.Error("nil matcher should ignore nothing")
	}
}

func TestReadIgnoreFile(t *testing.T) {
	ignoreFile := filepath.Join(t.TempDir(), FileName)
	content := "# Comment line\n*.log\n\n!important.log\n   \ntest/\n"
	if err := os.WriteFile(ignoreFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}

	patterns, err := readIgnoreFile(ignoreFile)
	if err != nil {
		t.Fatalf("readIgnoreFile failed: %v", err)
	}
	expected := []string{"*.log", "!important.log", "test/"}
	if !reflect.DeepEqual(patterns, expected) {
		t.Errorf("patterns = %q, want %q", patterns, expected)
	}
}

func TestReadIgnoreFileNotExists(t *testing.T) {
	if _, err := readIgnoreFile("/nonexistent/file"); err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{".", []string{}},
		{"a/b.css", []string{"a", "b.css"}},
		{"/a//b/./c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if got := splitPath(tt.input); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("splitPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
