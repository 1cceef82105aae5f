package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/numtide/scandirx/walk"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrInvalidMaxPathLen = errors.New("max path length must not be negative")

// FileNames are searched for, in order, when no config file has been specified.
var FileNames = []string{"scandirx.toml", ".scandirx.toml"}

// Config holds the settings for a traversal and how its result is presented.
type Config struct {
	MaxDepth         int    `mapstructure:"max-depth" toml:"max-depth"`
	MaxPathLen       int    `mapstructure:"max-path-len" toml:"max-path-len,omitempty"`
	Null             bool   `mapstructure:"null" toml:"null,omitempty"`
	Quiet            bool   `mapstructure:"quiet" toml:"quiet,omitempty"`
	SnapshotDB       string `mapstructure:"snapshot-db" toml:"snapshot-db,omitempty"`
	Stats            bool   `mapstructure:"stats" toml:"stats,omitempty"`
	Verbose          uint8  `mapstructure:"verbose" toml:"verbose,omitempty"`
	WorkingDirectory string `mapstructure:"working-dir" toml:"-"` // not allowed in config
}

// SetFlags appends our flags to the provided flag set.
// Each flag name matches the mapstructure tag of the corresponding Config field.
func SetFlags(fs *pflag.FlagSet) {
	fs.IntP(
		"max-depth", "d", walk.Unlimited,
		"Limit how deep the traversal descends. 0 lists only the immediate children, a negative value means no "+
			"limit. (env $SCANDIRX_MAX_DEPTH)",
	)
	fs.Int(
		"max-path-len", walk.MaxPathLen,
		"Skip entries whose path is longer than this many bytes. 0 disables the check. (env $SCANDIRX_MAX_PATH_LEN)",
	)
	fs.BoolP(
		"null", "0", false,
		"Terminate each path with a NUL byte instead of a newline. (env $SCANDIRX_NULL)",
	)
	fs.BoolP(
		"quiet", "q", false,
		"Only log errors. (env $SCANDIRX_QUIET)",
	)
	fs.String(
		"snapshot-db", "",
		"The database in which snapshots are stored (defaults to $XDG_CACHE_HOME/scandirx/snapshots.db). "+
			"(env $SCANDIRX_SNAPSHOT_DB)",
	)
	fs.Bool(
		"stats", false,
		"Print traversal statistics to stderr. (env $SCANDIRX_STATS)",
	)
	fs.CountP(
		"verbose", "v",
		"Set the verbosity of logs e.g. -vv. (env $SCANDIRX_VERBOSE)",
	)
	fs.StringP(
		"working-dir", "C", ".",
		"Run as if scandirx was started in the specified working directory instead of the current working "+
			"directory. (env $SCANDIRX_WORKING_DIR)",
	)
}

// NewViper creates a Viper instance pre-configured with the following options:
// * TOML config type
// * automatic env enabled
// * `SCANDIRX_` env prefix for environment variables
// * replacement of `-` and `.` with `_` when mapping flags to env e.g. `max-depth` => `SCANDIRX_MAX_DEPTH`.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetConfigType("toml")

	v.SetEnvPrefix("scandirx")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	return v
}

// FromViper takes a viper instance and produces a Config instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var err error

	cfg := &Config{}

	if err = v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// resolve the working directory to an absolute path
	cfg.WorkingDirectory, err = filepath.Abs(cfg.WorkingDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for working directory: %w", err)
	}

	if cfg.MaxPathLen < 0 {
		return nil, ErrInvalidMaxPathLen
	}

	// collapse every negative depth onto the sentinel
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = walk.Unlimited
	}

	l := log.WithPrefix("config")
	l.Debugf("max depth = %d", cfg.MaxDepth)
	l.Debugf("max path length = %d", cfg.MaxPathLen)

	return cfg, nil
}

// Find returns the first of fileNames which exists as a regular file in dir.
func Find(dir string, fileNames ...string) (string, error) {
	for _, f := range fileNames {
		path := filepath.Join(dir, f)
		if fileExists(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("could not find %s in %s", fileNames, dir)
}

// FindUp searches searchDir and then each of its parents for one of fileNames.
func FindUp(searchDir string, fileNames ...string) (path string, dir string, err error) {
	for _, dir := range eachDir(searchDir) {
		if path, err := Find(dir, fileNames...); err == nil {
			return path, dir, nil
		}
	}

	return "", "", fmt.Errorf("could not find %s in %s", fileNames, searchDir)
}

func eachDir(path string) (paths []string) {
	path, err := filepath.Abs(path)
	if err != nil {
		return
	}

	paths = []string{path}

	if path == "/" {
		return
	}

	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == os.PathSeparator {
			path = path[:i]
			if path == "" {
				path = "/"
			}

			paths = append(paths, path)
		}
	}

	return
}

func fileExists(path string) bool {
	// Some broken filesystems like SSHFS return file information on stat() but
	// then cannot open the file. So we use os.Open.
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	// Next, check that the file is a regular file.
	fi, err := f.Stat()
	if err != nil {
		return false
	}

	return fi.Mode().IsRegular()
}
