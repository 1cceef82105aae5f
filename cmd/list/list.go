package list

import (
	"bufio"
	"fmt"
	"io"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/numtide/scandirx/config"
	"github.com/numtide/scandirx/stats"
	"github.com/numtide/scandirx/walk"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// ResultFunc is invoked once for each root after it has been walked.
type ResultFunc func(idx int, root string, paths []string) error

// Traverser creates a walk.Traverser for the local filesystem according to cfg.
func Traverser(cfg *config.Config, statz *stats.Stats) *walk.Traverser {
	return walk.New(
		afero.NewOsFs(),
		walk.WithMaxPathLen(cfg.MaxPathLen),
		walk.WithStats(statz),
	)
}

// Walk traverses each of roots concurrently, returning their listings in the same order as roots.
// If fn is not nil it is invoked from the walking goroutine as soon as a root's listing is available.
func Walk(traverser *walk.Traverser, roots []string, maxDepth int, fn ResultFunc) ([][]string, error) {
	results := make([][]string, len(roots))

	eg := errgroup.Group{}
	eg.SetLimit(runtime.NumCPU())

	for idx, root := range roots {
		eg.Go(func() error {
			log.Debugf("walking %s with max depth %d", root, maxDepth)

			results[idx] = traverser.Walk(root, maxDepth)

			if fn == nil {
				return nil
			}

			return fn(idx, root, results[idx])
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return results, nil
}

// Write prints each path followed by a newline, or a NUL byte if null is true.
func Write(w io.Writer, paths []string, null bool) error {
	terminator := byte('\n')
	if null {
		terminator = 0
	}

	bw := bufio.NewWriter(w)

	for _, path := range paths {
		if _, err := bw.WriteString(path); err != nil {
			return fmt.Errorf("failed to write path: %w", err)
		} else if err = bw.WriteByte(terminator); err != nil {
			return fmt.Errorf("failed to write path terminator: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}

// Run walks each of paths, defaulting to the working directory, and prints the entries found.
func Run(v *viper.Viper, statz *stats.Stats, cmd *cobra.Command, paths []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}

	results, err := Walk(Traverser(cfg, statz), paths, cfg.MaxDepth, nil)
	if err != nil {
		return err
	}

	for _, result := range results {
		if err = Write(cmd.OutOrStdout(), result, cfg.Null); err != nil {
			return err
		}
	}

	if cfg.Stats {
		statz.Print(cmd.ErrOrStderr())
	}

	return nil
}
