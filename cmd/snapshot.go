package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/numtide/scandirx/cmd/list"
	"github.com/numtide/scandirx/config"
	"github.com/numtide/scandirx/snapshot"
	"github.com/numtide/scandirx/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSnapshotCmd(v *viper.Viper, statz *stats.Stats) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot [paths...]",
		Short: "Record the listing of each path for a later diff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(v, statz, cmd, args)
		},
	}

	fs := cmd.Flags()
	fs.Bool("delete", false, "Remove the stored snapshots for the given paths instead of recording new ones.")
	fs.Bool("list", false, "Print the stored snapshots.")

	return cmd
}

func newDiffCmd(v *viper.Viper, statz *stats.Stats) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [paths...]",
		Short: "Show which entries were added or removed since the last snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(v, statz, cmd, args)
		},
	}
}

// openStore resolves the roots to absolute paths and opens the snapshot db.
func openStore(cfg *config.Config, paths []string) (*snapshot.Store, []string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	roots := make([]string, len(paths))

	for idx, path := range paths {
		root, err := filepath.Abs(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
		}

		roots[idx] = root
	}

	dbPath := cfg.SnapshotDB
	if dbPath == "" {
		var err error
		if dbPath, err = snapshot.DefaultPath(); err != nil {
			return nil, nil, err //nolint:wrapcheck
		}
	}

	store, err := snapshot.Open(dbPath)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	return store, roots, nil
}

func runSnapshot(v *viper.Viper, statz *stats.Stats, cmd *cobra.Command, paths []string) (err error) {
	cmd.SilenceUsage = true

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, roots, err := openStore(cfg, paths)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := store.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close snapshot db: %w", closeErr)
		}
	}()

	flags := cmd.Flags()

	if listing, _ := flags.GetBool("list"); listing {
		snapshots, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}

		for _, snap := range snapshots {
			fmt.Fprintf(
				cmd.OutOrStdout(), "%s\tmax-depth=%d\tentries=%d\ttaken=%s\n",
				snap.Root, snap.MaxDepth, len(snap.Paths), snap.Taken.Format(time.RFC3339),
			)
		}

		return nil
	}

	if deleting, _ := flags.GetBool("delete"); deleting {
		for _, root := range roots {
			if err := store.Delete(root, cfg.MaxDepth); err != nil {
				return fmt.Errorf("failed to delete snapshot for %s: %w", root, err)
			}

			log.Infof("deleted snapshot for %s", root)
		}

		return nil
	}

	taken := time.Now()

	_, err = list.Walk(list.Traverser(cfg, statz), roots, cfg.MaxDepth, func(_ int, root string, paths []string) error {
		if err := store.Put(&snapshot.Snapshot{
			Root:     root,
			MaxDepth: cfg.MaxDepth,
			Taken:    taken,
			Paths:    paths,
		}); err != nil {
			return fmt.Errorf("failed to store snapshot for %s: %w", root, err)
		}

		log.Infof("recorded %d entries for %s", len(paths), root)

		return nil
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	if cfg.Stats {
		statz.Print(cmd.ErrOrStderr())
	}

	return nil
}

func runDiff(v *viper.Viper, statz *stats.Stats, cmd *cobra.Command, paths []string) (err error) {
	cmd.SilenceUsage = true

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, roots, err := openStore(cfg, paths)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := store.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close snapshot db: %w", closeErr)
		}
	}()

	// check every snapshot exists before doing any walking
	previous := make([]*snapshot.Snapshot, len(roots))

	for idx, root := range roots {
		previous[idx], err = store.Get(root, cfg.MaxDepth)
		if errors.Is(err, snapshot.ErrNotFound) {
			return fmt.Errorf("no snapshot for %s with max depth %d: %w", root, cfg.MaxDepth, err)
		} else if err != nil {
			return fmt.Errorf("failed to read snapshot for %s: %w", root, err)
		}
	}

	results, err := list.Walk(list.Traverser(cfg, statz), roots, cfg.MaxDepth, nil)
	if err != nil {
		return err //nolint:wrapcheck
	}

	out := cmd.OutOrStdout()

	for idx, current := range results {
		added, removed := snapshot.Diff(previous[idx].Paths, current)

		log.Infof("%s: %d added, %d removed since %s",
			roots[idx], len(added), len(removed), previous[idx].Taken.Format(time.RFC3339))

		for _, path := range removed {
			fmt.Fprintf(out, "- %s\n", path)
		}

		for _, path := range added {
			fmt.Fprintf(out, "+ %s\n", path)
		}
	}

	if cfg.Stats {
		statz.Print(cmd.ErrOrStderr())
	}

	return nil
}
