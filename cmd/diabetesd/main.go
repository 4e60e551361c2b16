// Command diabetesd trains the diabetes-risk tree at startup and serves it
// over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/diabetes-risk/config"
	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/risk"
)

type rootCmdConfig struct {
	configPath string
	dataPath   string
	logLevel   string
}

func main() {
	if err := cliParser().Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "diabetesd",
		Short:         "diabetesd serves a decision-tree diabetes risk model",
		Long:          `Train a classification tree on a health-indicator dataset and answer risk predictions over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg := &rootCmdConfig{}
	rootCmd.PersistentFlags().StringVarP(&cfg.configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&cfg.dataPath, "data", "", "training dataset (CSV); overrides the configuration")
	rootCmd.PersistentFlags().StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error; overrides the configuration")
	rootCmd.AddCommand(versionCmd(), serveCmd(cfg), evaluateCmd(cfg))
	return rootCmd
}

// load resolves the configuration (file, environment, then flags) and
// installs the global logger.
func (rc *rootCmdConfig) load(cmd *cobra.Command) (config.Config, log.Logger, error) {
	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return config.Config{}, nil, report(cmd, err)
	}
	if rc.dataPath != "" {
		cfg.Data.Path = rc.dataPath
	}
	if rc.logLevel != "" {
		cfg.LogLevel = rc.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, report(cmd, err)
	}
	if err := log.SetupLogger(cfg.LogLevel); err != nil {
		return config.Config{}, nil, report(cmd, err)
	}
	return cfg, log.GetLogger(), nil
}

// train loads the dataset and fits the model. Any failure here must stop the
// process before a listener is opened; it is logged once and returned.
func train(cfg config.Config, logger log.Logger) (*risk.Artifact, error) {
	records, err := dataset.LoadCSV(cfg.Data.Path)
	if err != nil {
		return nil, fail(logger, "Loading dataset failed", err, log.DataPathKey, cfg.Data.Path)
	}
	artifact, err := risk.Train(records, cfg.Model, logger.With(log.DataPathKey, cfg.Data.Path))
	if err != nil {
		return nil, fail(logger, "Training failed", err, log.DataPathKey, cfg.Data.Path)
	}
	return artifact, nil
}

// report prints err for failures that happen before the logger is installed.
func report(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err)
	return errors.WithStack(err)
}

// fail logs err through the installed logger and returns it without printing.
func fail(logger log.Logger, msg string, err error, kv ...any) error {
	logger.Error(msg, append([]any{err}, kv...)...)
	return errors.WithStack(err)
}
