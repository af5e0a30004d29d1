package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robotomize/loginsuite/internal/config"
	"github.com/robotomize/loginsuite/internal/logging"
)

var (
	configFlag    string
	logLevelFlag  string
	logFormatFlag string
)

var (
	v      = config.New()
	cfg    *config.Config
	logger *zap.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFlag,
		"config",
		"c",
		"",
		"path to a yaml config file: -c suite.yaml",
	)
	rootCmd.PersistentFlags().StringVarP(
		&logLevelFlag,
		"log-level",
		"",
		"info",
		"log level: debug, info, warn, error",
	)
	rootCmd.PersistentFlags().StringVarP(
		&logFormatFlag,
		"log-format",
		"",
		logging.FormatConsole,
		"log format: console or json",
	)

	mustBind("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBind("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

var rootCmd = &cobra.Command{
	Use:           "suitectl",
	Long:          "Run the login browser suite, build its report and serve the app under test",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		var err error
		if cfg, err = config.Load(v, configFlag); err != nil {
			return err
		}

		if logger, err = logging.New(cfg.Log); err != nil {
			return fmt.Errorf("logging.New: %w", err)
		}

		logger.Debug("config loaded", zap.String("file", v.ConfigFileUsed()))

		return nil
	},
}
