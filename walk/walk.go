package walk

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/numtide/scandirx/stats"
	"github.com/spf13/afero"
)

const (
	// Unlimited removes the bound on recursion depth.
	Unlimited = -1

	// MaxPathLen is the default upper bound, in bytes, on the length of an entry path.
	MaxPathLen = 4096
)

type Option func(t *Traverser)

// WithMaxPathLen sets the longest entry path, in bytes, the Traverser will record.
// Longer paths are skipped rather than truncated. A value of 0 disables the check.
func WithMaxPathLen(n int) Option {
	return func(t *Traverser) {
		t.maxPathLen = n
	}
}

func WithStats(statz *stats.Stats) Option {
	return func(t *Traverser) {
		t.stats = statz
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(t *Traverser) {
		t.log = logger
	}
}

// Traverser enumerates the entries beneath a directory.
// It holds no traversal state, so a single instance may be used by several goroutines at once.
type Traverser struct {
	fs         afero.Fs
	log        *log.Logger
	stats      *stats.Stats
	maxPathLen int
}

type pending struct {
	path  string
	depth int
}

// Walk returns the path of every file and directory beneath root, sorted byte-wise.
//
// The root's immediate children are at depth 0. A directory at depth d is only descended into when maxDepth is
// negative or d < maxDepth, so maxDepth N yields entries up to depth N. Directories which cannot be opened and entries
// whose metadata cannot be read are left out of the result. If root cannot be opened as a directory the result is
// empty.
func (t *Traverser) Walk(root string, maxDepth int) []string {
	entries := newCollection()

	// directories still to be read, processed depth first
	stack := []pending{{path: root}}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		names, err := t.readNames(dir.path)
		if err != nil {
			t.log.Debugf("skipping directory %s: %v", dir.path, err)
			t.skip()

			continue
		}

		if dir.depth > 0 {
			t.add(stats.Descended)
		}

		for _, name := range names {
			if name == "." || name == ".." {
				continue
			}

			path := join(dir.path, name)

			if t.maxPathLen > 0 && len(path) > t.maxPathLen {
				t.log.Debugf("skipping %s: path exceeds %d bytes", path, t.maxPathLen)
				t.skip()

				continue
			}

			info, err := t.fs.Stat(path)
			if err != nil {
				t.log.Debugf("skipping %s: %v", path, err)
				t.skip()

				continue
			}

			entries.Append(path)
			t.add(stats.Traversed)

			if info.IsDir() && (maxDepth < 0 || dir.depth < maxDepth) {
				stack = append(stack, pending{path: path, depth: dir.depth + 1})
			}
		}
	}

	return entries.Sorted()
}

// readNames lists a directory, releasing its handle before returning.
func (t *Traverser) readNames(path string) ([]string, error) {
	f, err := t.fs.Open(path)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil && len(names) == 0 {
		return nil, err //nolint:wrapcheck
	} else if err != nil {
		// keep whatever was listed before the failure
		t.log.Debugf("partial listing of %s: %v", path, err)
	}

	return names, nil
}

func (t *Traverser) add(typ stats.Type) {
	if t.stats != nil {
		t.stats.Add(typ, 1)
	}
}

func (t *Traverser) skip() {
	t.add(stats.Skipped)
}

func join(parent string, name string) string {
	if strings.HasSuffix(parent, string(os.PathSeparator)) {
		return parent + name
	}

	return parent + string(os.PathSeparator) + name
}

// New creates a Traverser reading from fs.
func New(fs afero.Fs, opts ...Option) *Traverser {
	t := &Traverser{
		fs:         fs,
		log:        log.WithPrefix("walk"),
		maxPathLen: MaxPathLen,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Walk traverses root on the local filesystem with the default options.
// See Traverser.Walk.
func Walk(root string, maxDepth int) []string {
	return New(afero.NewOsFs()).Walk(root, maxDepth)
}
