package reconciler

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"psp-reconciliation-service/internal/cache"
	"psp-reconciliation-service/internal/matcher"
	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/internal/parsers"
	"psp-reconciliation-service/pkg/logger"
)

// ReconciliationService runs one reconciliation: read inputs, decode the bank
// statement, load the ledger, filter and compare.
type ReconciliationService struct {
	registry       *parsers.Registry
	ledgerLoader   *parsers.LedgerLoader
	matchingEngine *matcher.MatchingEngine
	edgeHandler    *matcher.EdgeCaseHandler
	preprocessor   *DataPreprocessor
	sourceCache    *cache.SourceCache
	config         *Config
	logger         logger.Logger
}

// Config holds configuration options for the reconciliation service
type Config struct {
	// AnalyzeEdgeCases attaches the edge case report to every result
	AnalyzeEdgeCases bool `json:"analyze_edge_cases" mapstructure:"analyze_edge_cases"`

	// Preprocessing bounds the input files
	Preprocessing *PreprocessingConfig `json:"preprocessing" mapstructure:"preprocessing"`
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		AnalyzeEdgeCases: true,
		Preprocessing:    DefaultPreprocessingConfig(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Preprocessing == nil {
		return fmt.Errorf("preprocessing configuration is required")
	}
	return c.Preprocessing.Validate()
}

// ReconciliationRequest names the two inputs of a run. Each input is given
// either as a path or as its content; content wins when both are set.
type ReconciliationRequest struct {
	BankFile   string `json:"bank_file,omitempty"`
	LedgerFile string `json:"ledger_file,omitempty"`
	BankData   []byte `json:"-"`
	LedgerData []byte `json:"-"`
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	if r.BankFile == "" && len(r.BankData) == 0 {
		return fmt.Errorf("bank file is required")
	}
	if r.LedgerFile == "" && len(r.LedgerData) == 0 {
		return fmt.Errorf("ledger file is required")
	}
	return nil
}

// ReconciliationResult contains the complete results of reconciliation
type ReconciliationResult struct {
	RunID string `json:"run_id"`

	// Bank statement identification
	Bank   string `json:"bank"`
	Layout string `json:"layout"`

	// DSN: bank movements without a ledger row. PSD: ledger rows without a
	// bank movement.
	DSN []*models.CanonicalTransaction `json:"dsn"`
	PSD []*models.LedgerRow            `json:"psd"`

	// Reversals holds the bank rows removed as reversal groups
	Reversals []*models.CanonicalTransaction `json:"reversals"`

	// Excluded holds the ledger rows dropped by the bank, currency and cutoff filters
	Excluded  []*matcher.Exclusion    `json:"excluded,omitempty"`
	EdgeCases *matcher.EdgeCaseReport `json:"edge_cases,omitempty"`

	// Ledger schema as resolved for this run
	LedgerHeaders []string             `json:"ledger_headers"`
	Columns       models.ColumnMapping `json:"columns"`

	Cutoff *time.Time `json:"cutoff,omitempty"`

	Summary         *ResultSummary   `json:"summary"`
	ProcessingStats *ProcessingStats `json:"processing_stats"`

	ProcessedAt time.Time              `json:"processed_at"`
	Request     *ReconciliationRequest `json:"request,omitempty"`
}

// DSNKeys returns the unique DSN keys in report order.
func (r *ReconciliationResult) DSNKeys() []string {
	return models.UniqueKeys(r.DSN)
}

// ResultSummary provides a high-level overview of reconciliation results
type ResultSummary struct {
	matcher.ReconciliationSummary

	ReversalsRemoved int                `json:"reversals_removed"`
	BankStats        models.DecodeStats `json:"bank_stats"`
	LedgerStats      models.DecodeStats `json:"ledger_stats"`

	ProcessingDuration time.Duration `json:"processing_duration"`
}

// ProcessingStats contains detailed processing statistics
type ProcessingStats struct {
	BankBytes   int  `json:"bank_bytes"`
	LedgerBytes int  `json:"ledger_bytes"`
	CacheHit    bool `json:"cache_hit"`

	DecodeTime          time.Duration `json:"decode_time"`
	LedgerTime          time.Duration `json:"ledger_time"`
	MatchingTime        time.Duration `json:"matching_time"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
}

// NewReconciliationService creates a new reconciliation service. A nil cache
// disables caching.
func NewReconciliationService(
	registry *parsers.Registry,
	ledgerLoader *parsers.LedgerLoader,
	matchingConfig *matcher.MatchingConfig,
	sourceCache *cache.SourceCache,
	config *Config,
) (*ReconciliationService, error) {

	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if registry == nil {
		var err error
		if registry, err = parsers.NewRegistry(nil); err != nil {
			return nil, fmt.Errorf("failed to create layout registry: %w", err)
		}
	}

	if ledgerLoader == nil {
		ledgerLoader = parsers.NewLedgerLoader(nil)
	}

	if matchingConfig == nil {
		matchingConfig = matcher.DefaultMatchingConfig()
	}
	if err := matchingConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}

	return &ReconciliationService{
		registry:       registry,
		ledgerLoader:   ledgerLoader,
		matchingEngine: matcher.NewMatchingEngine(matchingConfig),
		edgeHandler:    matcher.NewEdgeCaseHandler(matchingConfig),
		preprocessor:   NewDataPreprocessor(config.Preprocessing),
		sourceCache:    sourceCache,
		config:         config,
		logger:         logger.GetGlobalLogger().WithComponent("reconciliation_service"),
	}, nil
}

// ProcessReconciliation performs the complete reconciliation process
func (rs *ReconciliationService) ProcessReconciliation(
	ctx context.Context,
	request *ReconciliationRequest,
) (*ReconciliationResult, error) {
	return rs.process(ctx, request, nil)
}

// DetectBankLayout reports which adapter a bank file would be decoded with,
// without decoding it.
func (rs *ReconciliationService) DetectBankLayout(data []byte) (parsers.BankAdapter, *parsers.Preview, error) {
	return rs.registry.Detector().Detect(bytes.NewReader(data))
}

// GetMatchingConfig returns the matching configuration in use
func (rs *ReconciliationService) GetMatchingConfig() *matcher.MatchingConfig {
	return rs.matchingEngine.Config
}

// GetRegistry returns the layout registry in use
func (rs *ReconciliationService) GetRegistry() *parsers.Registry {
	return rs.registry
}

// CacheStats returns the bank source cache counters
func (rs *ReconciliationService) CacheStats() cache.Stats {
	return rs.sourceCache.Stats()
}
