// Package config turns viper settings (config file, RECONCILER_ environment
// variables and command flags) into the configuration of every component.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"psp-reconciliation-service/internal/cache"
	"psp-reconciliation-service/internal/matcher"
	"psp-reconciliation-service/internal/parsers"
	"psp-reconciliation-service/internal/reconciler"
	"psp-reconciliation-service/internal/reporter"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "RECONCILER"

// Setting keys
const (
	KeyBankFile             = "bank_file"
	KeyLedgerFile           = "ledger_file"
	KeyCurrency             = "currency"
	KeyAcceptCurrencySymbol = "accept_currency_symbol"
	KeyBankMatch            = "bank_match"
	KeyBankAliases          = "bank_aliases"
	KeyApplyCutoff          = "apply_cutoff"
	KeyReversalKeyword      = "reversal_keyword"
	KeyCrepLayout           = "crep_layout"
	KeyCrepLayouts          = "crep_layouts"
	KeySheetLayouts         = "sheet_layouts"
	KeyPreviewRows          = "preview_rows"
	KeyCacheEnabled         = "cache.enabled"
	KeyCacheMaxEntries      = "cache.max_entries"
	KeyCacheTTL             = "cache.ttl"
	KeyAnalyzeEdgeCases     = "analyze_edge_cases"
	KeyMaxFileSizeMB        = "max_file_size_mb"
	KeyOutputFormat         = "output_format"
	KeyOutputFile           = "output_file"
	KeyDSNKeysFile          = "dsn_keys_file"
	KeyShowExcluded         = "show_excluded"
	KeyProgress             = "progress"
	KeyLogLevel             = "log_level"
	KeyLogFormat            = "log_format"
	KeyLogFile              = "log_file"
	KeyVerbose              = "verbose"
)

// Config is the resolved configuration of one CLI invocation.
type Config struct {
	BankFile   string
	LedgerFile string

	Registry   *parsers.RegistryConfig
	Matching   *matcher.MatchingConfig
	Cache      *cache.Config
	Reconciler *reconciler.Config
	Report     *reporter.ReportConfig
	Log        *logger.Config

	OutputFile  string
	DSNKeysFile string
	Progress    bool
	Verbose     bool
}

// SetDefaults registers the default of every setting on v.
func SetDefaults(v *viper.Viper) {
	registry := parsers.DefaultRegistryConfig()
	matching := matcher.DefaultMatchingConfig()
	cacheCfg := cache.DefaultConfig()
	rec := reconciler.DefaultConfig()

	v.SetDefault(KeyCurrency, matching.Currency)
	v.SetDefault(KeyAcceptCurrencySymbol, matching.AcceptCurrencySymbol)
	v.SetDefault(KeyBankMatch, string(matching.BankMatchMode))
	v.SetDefault(KeyApplyCutoff, matching.ApplyCutoff)
	v.SetDefault(KeyReversalKeyword, registry.ReversalKeyword)
	v.SetDefault(KeyCrepLayout, registry.FixedWidthLayout)
	v.SetDefault(KeyPreviewRows, registry.PreviewRows)
	v.SetDefault(KeyCacheEnabled, cacheCfg.Enabled)
	v.SetDefault(KeyCacheMaxEntries, cacheCfg.MaxEntries)
	v.SetDefault(KeyCacheTTL, cacheCfg.TTL)
	v.SetDefault(KeyAnalyzeEdgeCases, rec.AnalyzeEdgeCases)
	v.SetDefault(KeyMaxFileSizeMB, rec.Preprocessing.MaxFileSizeMB)
	v.SetDefault(KeyOutputFormat, string(reporter.FormatConsole))
	v.SetDefault(KeyLogLevel, string(logger.WarnLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads every setting from v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BankFile:    strings.TrimSpace(v.GetString(KeyBankFile)),
		LedgerFile:  strings.TrimSpace(v.GetString(KeyLedgerFile)),
		OutputFile:  strings.TrimSpace(v.GetString(KeyOutputFile)),
		DSNKeysFile: strings.TrimSpace(v.GetString(KeyDSNKeysFile)),
		Progress:    v.GetBool(KeyProgress),
		Verbose:     v.GetBool(KeyVerbose),
	}

	var err error
	if cfg.Registry, err = loadRegistry(v); err != nil {
		return nil, err
	}
	if cfg.Matching, err = loadMatching(v); err != nil {
		return nil, err
	}
	if cfg.Cache, err = loadCache(v); err != nil {
		return nil, err
	}
	if cfg.Reconciler, err = loadReconciler(v); err != nil {
		return nil, err
	}
	if cfg.Report, err = loadReport(v); err != nil {
		return nil, err
	}
	if cfg.Log, err = loadLog(v); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRegistry(v *viper.Viper) (*parsers.RegistryConfig, error) {
	cfg := parsers.DefaultRegistryConfig()
	cfg.ReversalKeyword = v.GetString(KeyReversalKeyword)
	cfg.FixedWidthLayout = v.GetString(KeyCrepLayout)
	cfg.PreviewRows = v.GetInt(KeyPreviewRows)

	if v.IsSet(KeyCrepLayouts) {
		if err := v.UnmarshalKey(KeyCrepLayouts, &cfg.FixedWidthLayouts); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyCrepLayouts, nil, err)
		}
		for name, layout := range cfg.FixedWidthLayouts {
			if layout.Name == "" {
				layout.Name = name
			}
			if err := layout.Validate(); err != nil {
				return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyCrepLayouts+"."+name, nil, err)
			}
			cfg.FixedWidthLayouts[name] = layout
		}
	}
	if v.IsSet(KeySheetLayouts) {
		if err := v.UnmarshalKey(KeySheetLayouts, &cfg.SheetLayouts); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeySheetLayouts, nil, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parsers", cfg, err)
	}
	return cfg, nil
}

func loadMatching(v *viper.Viper) (*matcher.MatchingConfig, error) {
	cfg := matcher.DefaultMatchingConfig()

	mode, err := matcher.ParseBankMatchMode(v.GetString(KeyBankMatch))
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyBankMatch, v.GetString(KeyBankMatch), err)
	}
	cfg.BankMatchMode = mode
	cfg.Currency = strings.ToUpper(strings.TrimSpace(v.GetString(KeyCurrency)))
	cfg.AcceptCurrencySymbol = v.GetBool(KeyAcceptCurrencySymbol)
	cfg.ApplyCutoff = v.GetBool(KeyApplyCutoff)

	// Configured aliases extend the defaults; a bank listed again replaces its entry.
	for bank, names := range v.GetStringMapStringSlice(KeyBankAliases) {
		cfg.BankAliases[strings.ToUpper(bank)] = names
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", cfg.String(), err)
	}
	return cfg, nil
}

func loadCache(v *viper.Viper) (*cache.Config, error) {
	cfg := &cache.Config{
		Enabled:    v.GetBool(KeyCacheEnabled),
		MaxEntries: v.GetInt(KeyCacheMaxEntries),
		TTL:        v.GetDuration(KeyCacheTTL),
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "cache", cfg, err)
	}
	return cfg, nil
}

func loadReconciler(v *viper.Viper) (*reconciler.Config, error) {
	cfg := reconciler.DefaultConfig()
	cfg.AnalyzeEdgeCases = v.GetBool(KeyAnalyzeEdgeCases)
	cfg.Preprocessing.MaxFileSizeMB = v.GetInt(KeyMaxFileSizeMB)

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyMaxFileSizeMB, cfg.Preprocessing.MaxFileSizeMB, err)
	}
	return cfg, nil
}

func loadReport(v *viper.Viper) (*reporter.ReportConfig, error) {
	format, err := reporter.ParseOutputFormat(v.GetString(KeyOutputFormat))
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyOutputFormat, v.GetString(KeyOutputFormat), err)
	}

	cfg := reporter.DefaultReportConfig()
	cfg.Format = format
	cfg.IncludeExcluded = v.GetBool(KeyShowExcluded)
	if format == reporter.FormatCSV {
		cfg.IncludeEdgeCases = false
		cfg.IncludeProcessingStats = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report", cfg, err)
	}
	return cfg, nil
}

func loadLog(v *viper.Viper) (*logger.Config, error) {
	level, err := logger.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyLogLevel, v.GetString(KeyLogLevel), err)
	}
	if v.GetBool(KeyVerbose) && level == logger.WarnLevel {
		level = logger.InfoLevel
	}

	cfg := &logger.Config{
		Level:  level,
		Format: logger.Format(strings.ToLower(v.GetString(KeyLogFormat))),
		Output: logger.StderrOutput,
	}
	if file := strings.TrimSpace(v.GetString(KeyLogFile)); file != "" {
		cfg.Output = logger.FileOutput
		cfg.File = file
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyLogFormat, cfg.Format, err)
	}
	return cfg, nil
}

// NewRegistry builds the layout registry for cfg.
func (c *Config) NewRegistry() (*parsers.Registry, error) {
	return parsers.NewRegistry(c.Registry)
}

// NewService wires the reconciliation service for cfg.
func (c *Config) NewService() (*reconciler.ReconciliationService, error) {
	registry, err := c.NewRegistry()
	if err != nil {
		return nil, err
	}

	sourceCache, err := cache.New(c.Cache)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "cache", c.Cache, err)
	}

	service, err := reconciler.NewReconciliationService(registry, nil, c.Matching, sourceCache, c.Reconciler)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", nil, err)
	}
	return service, nil
}

// ValidateInputs checks that both input paths are set.
func (c *Config) ValidateInputs() error {
	if c.BankFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, KeyBankFile, nil, fmt.Errorf("bank-file is required"))
	}
	if c.LedgerFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, KeyLedgerFile, nil, fmt.Errorf("ledger-file is required"))
	}
	if c.Report.Format.IsBinary() && c.OutputFile == "" {
		return errors.ConfigurationError(errors.CodeInvalidConfig, KeyOutputFile, nil,
			fmt.Errorf("%s output needs --output-file", c.Report.Format))
	}
	return nil
}
