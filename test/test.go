package test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/numtide/scandirx/config"
	cp "github.com/otiai10/copy"
	"github.com/stretchr/testify/require"
)

// ExamplesPaths lists every entry of test/examples relative to its root, in the order Walk returns them.
var ExamplesPaths = []string{
	"a.txt",
	"b.txt",
	"sub",
	"sub/c.txt",
	"sub/nested",
	"sub/nested/d.txt",
	"sub/nested/deeper",
	"sub/nested/deeper/e.txt",
}

func WriteConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create a new config file: %v", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err = encoder.Encode(cfg); err != nil {
		t.Fatalf("failed to write to config file: %v", err)
	}
}

func TempExamples(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	TempExamplesInDir(t, tempDir)

	return tempDir
}

func TempExamplesInDir(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, cp.Copy("../test/examples", dir), "failed to copy test data to dir")
}

// Tree creates the given paths beneath dir. Paths ending in a slash become directories, everything else an empty
// file along with any missing parents.
func Tree(t *testing.T, dir string, paths ...string) {
	t.Helper()

	for _, path := range paths {
		full := filepath.Join(dir, filepath.FromSlash(path))

		if strings.HasSuffix(path, "/") {
			require.NoError(t, os.MkdirAll(full, 0o755), "failed to create directory %s", path)

			continue
		}

		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755), "failed to create parent of %s", path)
		require.NoError(t, os.WriteFile(full, nil, 0o644), "failed to create file %s", path)
	}
}

// Join prefixes each relative path with root, using the OS path separator.
func Join(root string, paths ...string) []string {
	result := make([]string, len(paths))
	for i, path := range paths {
		result[i] = root + string(os.PathSeparator) + filepath.FromSlash(path)
	}

	return result
}

// ChangeWorkDir changes the current working directory for the duration of the test.
// The original directory is restored when the test ends.
func ChangeWorkDir(t *testing.T, dir string) {
	t.Helper()

	// capture current cwd, so we can replace it after the test is finished
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(fmt.Errorf("failed to get current working directory: %w", err))
	}

	t.Cleanup(func() {
		// return to the previous working directory
		if err := os.Chdir(cwd); err != nil {
			t.Errorf("failed to restore working directory: %v", err)
		}
	})

	// change to the new directory
	if err := os.Chdir(dir); err != nil {
		t.Fatal(fmt.Errorf("failed to change working directory: %w", err))
	}
}
