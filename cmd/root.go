package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/geotask/internal/config"
	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/logger"
)

var (
	cfgFile  string
	logFile  string
	debug    bool
	verbose  bool
	jsonLogs bool
	quiet    bool
	version  = "v0.1.0"

	cfg       *config.Config
	logCloser io.Closer

	rootCmd = &cobra.Command{
		Use:   "geotask",
		Short: "Run geological data processing tasks from the terminal",
		Long: `Runs one data processing task at a time in the background while
reporting its progress. A running task can be cancelled with Ctrl-C
(which exits once the task has stopped) or by typing 'c' and Enter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			cfg = loaded

			logger.Setup(cfg.Log.Verbose || debug, cfg.Log.JSON, cfg.Log.Quiet)
			if cfg.Log.File != "" {
				closer, err := logger.SetupFile(cfg.Log.File)
				if err != nil {
					logger.User.Warnf("Log file disabled: %v", err)
				} else {
					logCloser = closer
				}
			}
			logger.Op.WithFields(map[string]interface{}{
				"config":   cfgFile,
				"tasks":    len(cfg.Tasks),
				"interval": cfg.Progress.Interval.String(),
			}).Debug("Configuration loaded")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
				logCloser = nil
			}
		},
	}
)

// Execute runs the root command and prints any error for the terminal
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, taskerrors.FormatForCLI(err))
	}
	return err
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.geotask/geotask.yaml or ./geotask.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")
	rootCmd.PersistentFlags().Lookup("log-file").NoOptDefVal = config.DefaultLogFile()
}
