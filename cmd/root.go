package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/numtide/scandirx/build"
	_init "github.com/numtide/scandirx/cmd/init"
	"github.com/numtide/scandirx/cmd/list"
	"github.com/numtide/scandirx/config"
	"github.com/numtide/scandirx/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRoot() (*cobra.Command, *stats.Stats) {
	var (
		scandirxInit bool
		configFile   string
	)

	// create a viper instance for reading in config
	v := config.NewViper()

	// create a new stats instance
	statz := stats.New()

	// create our root command
	cmd := &cobra.Command{
		Use:     build.Name + " [paths...]",
		Short:   "List every file and directory beneath the given paths",
		Version: build.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// check if we are running the init command
			if init, err := cmd.Flags().GetBool("init"); err != nil {
				return fmt.Errorf("failed to read init flag: %w", err)
			} else if init {
				if err = _init.Run(cmd.OutOrStdout()); err != nil {
					return fmt.Errorf("failed to run init command: %w", err)
				}

				return nil
			}

			return list.Run(v, &statz, cmd, args) //nolint:wrapcheck
		},
	}

	// update version template
	cmd.SetVersionTemplate("scandirx {{.Version}}\n")

	pfs := cmd.PersistentFlags()

	// add our config flags to the command's flag set, they apply to every sub command
	config.SetFlags(pfs)

	// add a couple of special flags which don't have a corresponding entry in scandirx.toml
	pfs.StringVar(
		&configFile, "config-file", "",
		"Load the config file from the given path (defaults to searching upwards for scandirx.toml or "+
			".scandirx.toml).",
	)
	cmd.Flags().BoolVarP(
		&scandirxInit, "init", "i", false,
		"Create a scandirx.toml file in the current directory.",
	)

	// bind our command's flags to viper
	if err := v.BindPFlags(pfs); err != nil {
		cobra.CheckErr(fmt.Errorf("failed to bind global config to viper: %w", err))
	}

	cmd.AddCommand(
		newSnapshotCmd(v, &statz),
		newDiffCmd(v, &statz),
		newCompletionCmd(),
	)

	return cmd, &statz
}

// loadConfig changes into the working directory, reads the config file if one can be found and configures logging.
func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	flags := cmd.Flags()

	// change working directory if required
	workingDir, err := filepath.Abs(v.GetString("working-dir"))
	if err != nil {
		return fmt.Errorf("failed to get absolute path for working directory: %w", err)
	} else if err = os.Chdir(workingDir); err != nil {
		return fmt.Errorf("failed to change working directory: %w", err)
	}

	// use the path specified by the flag
	configFile, err := flags.GetString("config-file")
	if err != nil {
		return fmt.Errorf("failed to read config-file flag: %w", err)
	}

	// fallback to env
	if configFile == "" {
		configFile = os.Getenv("SCANDIRX_CONFIG")
	}

	// search up from the working directory, a config file is optional
	if configFile == "" {
		configFile, _, _ = config.FindUp(workingDir, config.FileNames...)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			cmd.SilenceUsage = true

			return fmt.Errorf("failed to read config file '%s': %w", configFile, err)
		}
	}

	// configure logging
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)

	if v.GetBool("quiet") {
		// if quiet, we only log errors
		log.SetLevel(log.ErrorLevel)
	} else {
		// otherwise, the verbose flag controls the log level
		switch v.GetInt("verbose") {
		case 0:
			log.SetLevel(log.WarnLevel)
		case 1:
			log.SetLevel(log.InfoLevel)
		default:
			log.SetLevel(log.DebugLevel)
		}
	}

	if configFile != "" {
		log.Debugf("using config file: %s", configFile)
	}

	return nil
}
