package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"psp-reconciliation-service/cmd/reconciler/config"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     logger.Logger
}

// NewRootCommand builds the command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "reconciler",
		Short: "PSP_TIN bank reconciliation tool",
		Long: `Reconciler compares a bank statement (CREP text file or bank spreadsheet)
with the ledger export of the payment platform and reports two views:

  DSN  movements the bank paid that the ledger does not know about
  PSD  ledger rows the bank statement does not contain

Settings come from flags, RECONCILER_* environment variables and an
optional config file, in that order of precedence.

Examples:
  reconciler reconcile --bank-file crep_20250110.txt --ledger-file ledger.xlsx
  reconciler reconcile -b bbva.xlsx -l ledger.csv --output-format xlsx --output-file views.xlsx
  reconciler detect crep_20250110.txt bbva.xlsx
  reconciler layouts`,
		Version:           getVersionString(),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (optional)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("log-level", string(logger.WarnLevel), "log level: debug, info, warn, error")
	flags.String("log-format", string(logger.TextFormat), "log format: text, json")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.String("crep-layout", "crep-v2", "fixed-width layout used for CREP text statements")
	flags.String("reversal-keyword", "Extorno", "description keyword marking a reversal row")

	bindFlags(a.v, flags, map[string]string{
		config.KeyVerbose:         "verbose",
		config.KeyLogLevel:        "log-level",
		config.KeyLogFormat:       "log-format",
		config.KeyLogFile:         "log-file",
		config.KeyCrepLayout:      "crep-layout",
		config.KeyReversalKeyword: "reversal-keyword",
	})

	rootCmd.AddCommand(newReconcileCmd(a), newDetectCmd(a), newLayoutsCmd(a))
	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	return NewCLIErrorHandler(rootCmd.ErrOrStderr(), verbose).HandleError(err)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		// Lookup only fails on a misspelled flag name.
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// initConfig reads the config file, resolves every setting and installs the
// global logger.
func (a *app) initConfig(cmd *cobra.Command, args []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "config", a.cfgFile, err).
				WithSuggestion("Check the config file path and its YAML/JSON/TOML syntax")
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, config.KeyLogFile, cfg.Log.File, err)
	}
	logger.SetGlobalLogger(log)

	a.cfg = cfg
	a.log = log.WithComponent("cli")
	if a.cfgFile != "" {
		a.log.WithField("config_file", a.v.ConfigFileUsed()).Info("Using config file")
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
