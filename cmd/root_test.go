package cmd_test

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/numtide/scandirx/cmd"
	"github.com/numtide/scandirx/config"
	"github.com/numtide/scandirx/snapshot"
	"github.com/numtide/scandirx/stats"
	"github.com/numtide/scandirx/test"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	as := require.New(t)

	tempDir := test.TempExamples(t)

	scandirx(t,
		withArgs(tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, test.ExamplesPaths...)),
		withStats(t, map[stats.Type]int32{
			stats.Traversed: 8,
			stats.Descended: 3,
			stats.Skipped:   0,
		}),
	)

	// defaults to the working directory
	test.ChangeWorkDir(t, tempDir)

	scandirx(t,
		withNoError(t),
		withLines(t, test.Join(".", test.ExamplesPaths...)),
	)

	// missing roots are not an error
	scandirx(t,
		withArgs(filepath.Join(tempDir, "does-not-exist")),
		withNoError(t),
		withOutput(func(out []byte) {
			as.Empty(out)
		}),
	)
}

func TestMaxDepth(t *testing.T) {
	tempDir := test.TempExamples(t)

	scandirx(t,
		withArgs("--max-depth", "0", tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, "a.txt", "b.txt", "sub")),
	)

	scandirx(t,
		withArgs("-d", "1", tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, "a.txt", "b.txt", "sub", "sub/c.txt", "sub/nested")),
	)

	// env
	t.Setenv("SCANDIRX_MAX_DEPTH", "0")

	scandirx(t,
		withArgs(tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, "a.txt", "b.txt", "sub")),
	)

	// flag wins over env
	scandirx(t,
		withArgs("--max-depth=-1", tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, test.ExamplesPaths...)),
	)
}

func TestConfigFile(t *testing.T) {
	tempDir := test.TempExamples(t)

	workDir := t.TempDir()
	test.Tree(t, workDir, "nested/dir/")

	test.ChangeWorkDir(t, filepath.Join(workDir, "nested", "dir"))

	// found by searching upwards
	scandirx(t,
		withConfig(filepath.Join(workDir, "scandirx.toml"), &config.Config{MaxDepth: 0}),
		withArgs(tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, "a.txt", "b.txt", "sub")),
	)

	// specified explicitly
	otherConfig := filepath.Join(t.TempDir(), "other.toml")

	scandirx(t,
		withConfig(otherConfig, &config.Config{MaxDepth: 1}),
		withArgs("--config-file", otherConfig, tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, "a.txt", "b.txt", "sub", "sub/c.txt", "sub/nested")),
	)

	// or via env
	t.Setenv("SCANDIRX_CONFIG", otherConfig)

	scandirx(t,
		withArgs(tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, "a.txt", "b.txt", "sub", "sub/c.txt", "sub/nested")),
	)

	// a broken config file is reported
	as := require.New(t)
	as.NoError(os.WriteFile(otherConfig, []byte("max-depth = ["), 0o644))

	scandirx(t,
		withArgs(tempDir),
		withError(func(err error) {
			as.ErrorContains(err, "failed to read config file")
		}),
	)
}

func TestWorkingDirectory(t *testing.T) {
	tempDir := test.TempExamples(t)

	// -C changes the process working directory, make sure it is restored afterwards
	test.ChangeWorkDir(t, ".")

	scandirx(t,
		withArgs("-C", filepath.Join(tempDir, "sub"), "-d", "0", "."),
		withNoError(t),
		withLines(t, test.Join(".", "c.txt", "nested")),
	)
}

func TestMultipleRoots(t *testing.T) {
	tempDir := test.TempExamples(t)

	sub := filepath.Join(tempDir, "sub")
	nested := filepath.Join(tempDir, "sub", "nested")

	expected := append(
		test.Join(sub, "c.txt", "nested"),
		test.Join(nested, "d.txt", "deeper")...,
	)

	// printed in argument order rather than sorted across roots
	scandirx(t,
		withArgs("-d", "0", sub, nested),
		withNoError(t),
		withLines(t, expected),
	)
}

func TestNull(t *testing.T) {
	as := require.New(t)

	tempDir := test.TempExamples(t)

	scandirx(t,
		withArgs("-0", "-d", "0", tempDir),
		withNoError(t),
		withOutput(func(out []byte) {
			expected := strings.Join(test.Join(tempDir, "a.txt", "b.txt", "sub"), "\x00") + "\x00"
			as.Equal(expected, string(out))
		}),
	)
}

func TestStatsOutput(t *testing.T) {
	as := require.New(t)

	tempDir := test.TempExamples(t)

	scandirx(t,
		withArgs("--stats", tempDir),
		withNoError(t),
		withErrOutput(func(out []byte) {
			as.Contains(string(out), "traversed 8 entries")
			as.Contains(string(out), "descended into 3 directories")
			as.Contains(string(out), "skipped 0 entries")
		}),
	)
}

func TestMaxPathLen(t *testing.T) {
	tempDir := test.TempExamples(t)

	// only the shortest entries fit, sub/c.txt and sub/nested are skipped
	limit := len(tempDir) + len("/a.txt")

	scandirx(t,
		withArgs("--max-path-len", fmt.Sprint(limit), tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, "a.txt", "b.txt", "sub")),
		withStats(t, map[stats.Type]int32{
			stats.Traversed: 3,
			stats.Descended: 1,
			stats.Skipped:   2,
		}),
	)

	as := require.New(t)

	scandirx(t,
		withArgs("--max-path-len=-1", tempDir),
		withError(func(err error) {
			as.ErrorIs(err, config.ErrInvalidMaxPathLen)
		}),
	)
}

func TestInit(t *testing.T) {
	as := require.New(t)

	tempDir := t.TempDir()
	test.ChangeWorkDir(t, tempDir)

	scandirx(t,
		withArgs("--init"),
		withNoError(t),
		withOutput(func(out []byte) {
			as.Contains(string(out), "Generated scandirx.toml")
		}),
	)

	as.FileExists(filepath.Join(tempDir, "scandirx.toml"))

	// the generated file is picked up and describes the defaults
	scandirx(t,
		withArgs(tempDir),
		withNoError(t),
		withLines(t, test.Join(tempDir, "scandirx.toml")),
	)
}

func TestSnapshotDiff(t *testing.T) {
	as := require.New(t)

	tempDir := test.TempExamples(t)
	t.Setenv("SCANDIRX_SNAPSHOT_DB", filepath.Join(t.TempDir(), "snapshots.db"))

	// nothing recorded yet
	scandirx(t,
		withArgs("diff", tempDir),
		withError(func(err error) {
			as.ErrorIs(err, snapshot.ErrNotFound)
		}),
	)

	scandirx(t,
		withArgs("snapshot", tempDir),
		withNoError(t),
	)

	scandirx(t,
		withArgs("snapshot", "--list"),
		withNoError(t),
		withOutput(func(out []byte) {
			as.Contains(string(out), tempDir+"\tmax-depth=-1\tentries=8")
		}),
	)

	// no changes
	scandirx(t,
		withArgs("diff", tempDir),
		withNoError(t),
		withOutput(func(out []byte) {
			as.Empty(out)
		}),
	)

	test.Tree(t, tempDir, "sub/new.txt")
	as.NoError(os.Remove(filepath.Join(tempDir, "b.txt")))

	scandirx(t,
		withArgs("diff", tempDir),
		withNoError(t),
		withLines(t, []string{
			"- " + filepath.Join(tempDir, "b.txt"),
			"+ " + filepath.Join(tempDir, "sub", "new.txt"),
		}),
	)

	// snapshots are keyed by depth as well as root
	scandirx(t,
		withArgs("diff", "-d", "0", tempDir),
		withError(func(err error) {
			as.ErrorIs(err, snapshot.ErrNotFound)
		}),
	)

	scandirx(t,
		withArgs("snapshot", "--delete", tempDir),
		withNoError(t),
	)

	scandirx(t,
		withArgs("diff", tempDir),
		withError(func(err error) {
			as.ErrorIs(err, snapshot.ErrNotFound)
		}),
	)
}

func TestCompletion(t *testing.T) {
	as := require.New(t)

	for _, shell := range []string{"bash", "zsh", "fish"} {
		scandirx(t,
			withArgs("completion", shell),
			withNoError(t),
			withOutput(func(out []byte) {
				as.Contains(string(out), "scandirx")
			}),
		)
	}

	scandirx(t,
		withArgs("completion", "powershell"),
		withError(func(err error) {
			as.ErrorContains(err, "unsupported shell: powershell")
		}),
	)
}

type options struct {
	args []string

	config struct {
		path  string
		value *config.Config
	}

	assertOut    func([]byte)
	assertErrOut func([]byte)
	assertError  func(error)
	assertStats  func(*stats.Stats)
}

type option func(*options)

func withArgs(args ...string) option {
	return func(o *options) {
		o.args = args
	}
}

func withConfig(path string, cfg *config.Config) option {
	return func(o *options) {
		o.config.path = path
		o.config.value = cfg
	}
}

func withStats(t *testing.T, expected map[stats.Type]int32) option {
	t.Helper()

	return func(o *options) {
		o.assertStats = func(s *stats.Stats) {
			for k, v := range expected {
				require.Equal(t, v, s.Value(k), "stats type %d", k)
			}
		}
	}
}

func withError(fn func(error)) option {
	return func(o *options) {
		o.assertError = fn
	}
}

func withNoError(t *testing.T) option {
	t.Helper()

	return func(o *options) {
		o.assertError = func(err error) {
			require.NoError(t, err)
		}
	}
}

func withOutput(fn func([]byte)) option {
	return func(o *options) {
		o.assertOut = fn
	}
}

func withErrOutput(fn func([]byte)) option {
	return func(o *options) {
		o.assertErrOut = fn
	}
}

// withLines asserts stdout consists of exactly the given lines.
func withLines(t *testing.T, expected []string) option {
	t.Helper()

	return withOutput(func(out []byte) {
		lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
		require.Equal(t, expected, lines)
	})
}

func scandirx(
	t *testing.T,
	opt ...option,
) {
	t.Helper()

	// build options
	opts := &options{}
	for _, option := range opt {
		option(opts)
	}

	// default args if nil
	// we must pass an empty array otherwise cobra with use os.Args[1:]
	args := opts.args
	if args == nil {
		args = []string{}
	}

	// write config
	if opts.config.value != nil {
		test.WriteConfig(t, opts.config.path, opts.config.value)
	}

	t.Logf("scandirx %s", strings.Join(args, " "))

	tempErr, err := os.CreateTemp(t.TempDir(), "stderr")
	require.NoError(t, err, "failed to create temp file for stderr")

	defer tempErr.Close()

	// capture stderr, logging is pointed at it whenever the config is loaded
	stderr := os.Stderr
	os.Stderr = tempErr

	log.SetOutput(tempErr)

	defer func() {
		os.Stderr = stderr
		log.SetOutput(stderr)
	}()

	// run the command
	root, statz := cmd.NewRoot()

	var stdout bytes.Buffer

	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(tempErr)

	// execute the command
	cmdErr := root.Execute()

	// reset and read the captured stderr
	if _, resetErr := tempErr.Seek(0, 0); resetErr != nil {
		t.Fatal(fmt.Errorf("failed to reset temp output for reading: %w", resetErr))
	}

	errOut, readErr := io.ReadAll(tempErr)
	if readErr != nil {
		t.Fatal(fmt.Errorf("failed to read temp output: %w", readErr))
	}

	t.Log(string(errOut))

	if opts.assertError != nil {
		opts.assertError(cmdErr)
	}

	if opts.assertOut != nil {
		opts.assertOut(stdout.Bytes())
	}

	if opts.assertErrOut != nil {
		opts.assertErrOut(errOut)
	}

	if opts.assertStats != nil {
		opts.assertStats(statz)
	}
}
