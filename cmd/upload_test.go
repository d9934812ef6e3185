package cmd

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/cloudref/pkg/config"
	"github.com/fulmenhq/cloudref/pkg/exitcode"
	"github.com/fulmenhq/cloudref/pkg/store"
)

type fakeStore struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (s *fakeStore) Upload(_ context.Context, p string, opts store.Options) (store.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, p)
	if s.err != nil {
		return store.Result{}, s.err
	}
	return store.Result{URL: "http://res.test/demo/" + string(opts.ResourceKind) + "/upload/v7/" + opts.PublicID + path.Ext(p)}, nil
}

// useStore swaps the store factory for the duration of the test and
// supplies credentials through the environment.
func useStore(t *testing.T, s store.Store) {
	t.Helper()
	prev := newStore
	newStore = func(store.Credentials, config.UploadConfig) store.Store { return s }
	t.Cleanup(func() { newStore = prev })

	t.Setenv("CLOUDREF_ACCOUNT_CLOUD_NAME", "demo")
	t.Setenv("CLOUDREF_ACCOUNT_API_KEY", "key")
	t.Setenv("CLOUDREF_ACCOUNT_API_SECRET", "secret")
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestUpload_Flags(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFixture(t, dir, "test/fixtures/images/me.png", "png")
	writeFixture(t, dir, "test/fixtures/a.css", "body {\n  color: red;\n  background:url(images/me.png)\n}\n")
	s := &fakeStore{}
	useStore(t, s)

	out, err := execRoot(t, []string{"upload",
		"--dest", "tmp/a.css",
		"--src", "test/fixtures/a.css",
		"--root", "test/fixtures",
		"--remove-version",
		"--report", "run.json",
	})
	require.NoError(t, err, out)

	data, err := os.ReadFile(filepath.Join(dir, "tmp", "a.css"))
	require.NoError(t, err)
	assert.Equal(t, "body {\n  color: red;\n  background:url(http://res.test/demo/image/upload/images/me.png)\n}\n", string(data))
	assert.Len(t, s.paths, 1)
	assert.FileExists(t, filepath.Join(dir, "run.json"))
}

func TestUpload_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFixture(t, dir, "src/logo.png", "png")
	writeFixture(t, dir, "src/site.css", ".a{background:url(logo.png)}")
	writeFixture(t, dir, "src/index.html", `<link rel="stylesheet" href="site.css"><img src="logo.png">`)
	writeFixture(t, dir, "cloudref.yaml", `
roots: [src]
files:
  - dest: dist/
    src: ["src/*.css", "src/*.html"]
report: reports/run.yaml
`)
	s := &fakeStore{}
	useStore(t, s)

	out, err := execRoot(t, []string{"upload"})
	require.NoError(t, err, out)

	html, err := os.ReadFile(filepath.Join(dir, "dist", "index.html"))
	require.NoError(t, err)
	assert.Equal(t,
		`<link rel="stylesheet" href="http://res.test/demo/raw/upload/v7/dist/site.css"><img src="http://res.test/demo/image/upload/v7/logo.png">`,
		string(html))
	assert.Len(t, s.paths, 2, "logo once in phase 1, rewritten stylesheet in phase 2")
	assert.FileExists(t, filepath.Join(dir, "reports", "run.yaml"))
}

func TestUpload_AbortExitCode(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFixture(t, dir, "me.png", "png")
	writeFixture(t, dir, "a.css", ".a{background:url(me.png)}")
	useStore(t, &fakeStore{err: errors.New("503 service unavailable")})

	_, err := execRoot(t, []string{"upload", "--dest", "out/a.css", "--src", "a.css", "--max-attempts", "2"})
	require.Error(t, err)
	assert.Equal(t, exitcode.UploadAborted, exitcode.FromError(err))
	assert.NoFileExists(t, filepath.Join(dir, "out", "a.css"))
}

func TestUpload_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"dest without src", []string{"upload", "--dest", "out.css"}},
		{"no files declared", []string{"upload"}},
		{"concurrency below one", []string{"upload", "--dest", "out.css", "--src", "a.css", "--concurrency", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			useStore(t, &fakeStore{})

			_, err := execRoot(t, tt.args)
			require.Error(t, err)
			assert.Equal(t, exitcode.ConfigError, exitcode.FromError(err))
		})
	}
}
