package reconciler

import (
	"fmt"
	"sync"

	"psp-reconciliation-service/internal/parsers"
	"psp-reconciliation-service/pkg/errors"
)

// DataPreprocessor reads the inputs of a run and enforces the file limits
// before anything is decoded.
type DataPreprocessor struct {
	config *PreprocessingConfig

	mu    sync.Mutex
	stats PreprocessingStats
}

// PreprocessingConfig contains configuration for input preprocessing
type PreprocessingConfig struct {
	// MaxFileSizeMB bounds each input file. Zero disables the limit.
	MaxFileSizeMB int `json:"max_file_size_mb" mapstructure:"max_file_size_mb"`
}

// PreprocessingStats counts the inputs seen by a preprocessor.
type PreprocessingStats struct {
	FilesRead     int   `json:"files_read"`
	BytesRead     int64 `json:"bytes_read"`
	FilesRejected int   `json:"files_rejected"`
}

// DefaultPreprocessingConfig returns a default preprocessing configuration
func DefaultPreprocessingConfig() *PreprocessingConfig {
	return &PreprocessingConfig{
		MaxFileSizeMB: 50,
	}
}

// Validate validates the preprocessing configuration
func (c *PreprocessingConfig) Validate() error {
	if c.MaxFileSizeMB < 0 {
		return fmt.Errorf("max_file_size_mb cannot be negative, got %d", c.MaxFileSizeMB)
	}
	return nil
}

func (c *PreprocessingConfig) maxBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// NewDataPreprocessor creates a new data preprocessor
func NewDataPreprocessor(config *PreprocessingConfig) *DataPreprocessor {
	if config == nil {
		config = DefaultPreprocessingConfig()
	}

	return &DataPreprocessor{
		config: config,
	}
}

// LoadInputs returns the bank statement and ledger bytes of request. Inline
// content is used as given; paths are read from disk.
func (dp *DataPreprocessor) LoadInputs(request *ReconciliationRequest) ([]byte, []byte, error) {
	bankData, err := dp.load("bank statement", request.BankFile, request.BankData)
	if err != nil {
		return nil, nil, err
	}
	ledgerData, err := dp.load("ledger export", request.LedgerFile, request.LedgerData)
	if err != nil {
		return nil, nil, err
	}
	return bankData, ledgerData, nil
}

func (dp *DataPreprocessor) load(kind, path string, inline []byte) ([]byte, error) {
	data := inline
	if len(data) == 0 {
		var err error
		if data, err = parsers.ReadFile(path); err != nil {
			dp.reject()
			return nil, err
		}
	}
	if path == "" {
		path = kind
	}

	if len(data) == 0 {
		dp.reject()
		return nil, errors.FileError(errors.CodeFileEmpty, path, nil)
	}
	if limit := dp.config.maxBytes(); limit > 0 && int64(len(data)) > limit {
		dp.reject()
		return nil, errors.FileError(errors.CodeFileTooLarge, path, nil).
			WithContext("size_bytes", len(data)).
			WithContext("limit_bytes", limit)
	}

	dp.mu.Lock()
	dp.stats.FilesRead++
	dp.stats.BytesRead += int64(len(data))
	dp.mu.Unlock()
	return data, nil
}

func (dp *DataPreprocessor) reject() {
	dp.mu.Lock()
	dp.stats.FilesRejected++
	dp.mu.Unlock()
}

// GetStatistics returns the counters accumulated so far.
func (dp *DataPreprocessor) GetStatistics() PreprocessingStats {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.stats
}
