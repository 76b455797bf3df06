package reconciler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"psp-reconciliation-service/internal/matcher"
	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// Step names one stage of a reconciliation run.
type Step string

const (
	StepReadInputs   Step = "Reading input files"
	StepDecodeBank   Step = "Decoding bank statement"
	StepLoadLedger   Step = "Loading ledger export"
	StepReconcile    Step = "Reconciling"
	StepAnalyzeEdges Step = "Analyzing edge cases"
)

// Steps lists the stages in execution order.
var Steps = []Step{StepReadInputs, StepDecodeBank, StepLoadLedger, StepReconcile, StepAnalyzeEdges}

type stepFunc func(step Step, index int)

func (rs *ReconciliationService) process(ctx context.Context, request *ReconciliationRequest, onStep stepFunc) (*ReconciliationResult, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "reconciliation_request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "reconciliation_request", request, err).
			WithSuggestion("provide both a bank statement and a ledger export")
	}
	if onStep == nil {
		onStep = func(Step, int) {}
	}

	runID := uuid.NewString()
	op := logger.NewOperationLogger("reconcile", rs.logger).WithField("run_id", runID)

	startTime := time.Now()
	result := &ReconciliationResult{
		RunID:           runID,
		ProcessedAt:     startTime,
		Request:         request,
		Summary:         &ResultSummary{},
		ProcessingStats: &ProcessingStats{},
	}

	// Step 1: read inputs
	onStep(StepReadInputs, 0)
	bankData, ledgerData, err := rs.preprocessor.LoadInputs(request)
	if err != nil {
		op.Error(err, "Failed to read input files")
		return nil, err
	}
	result.ProcessingStats.BankBytes = len(bankData)
	result.ProcessingStats.LedgerBytes = len(ledgerData)

	// Step 2: detect and decode the bank statement
	onStep(StepDecodeBank, 1)
	decodeStart := time.Now()
	source, hit, err := rs.sourceCache.GetOrDecode(ctx, bankData, rs.registry.Fingerprint(), rs.registry.Decode)
	if err != nil {
		op.Error(err, "Failed to decode bank statement")
		return nil, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "cannot decode bank statement").
			WithContext("file_path", request.BankFile)
	}
	result.ProcessingStats.DecodeTime = time.Since(decodeStart)
	result.ProcessingStats.CacheHit = hit
	op.Step("bank decoded", logger.Fields{
		"layout":    source.Layout,
		"records":   len(source.Transactions),
		"reversals": len(source.Reversals),
		"cache_hit": hit,
	})

	// Step 3: load the ledger. Column resolution failures stop the run here.
	onStep(StepLoadLedger, 2)
	ledgerStart := time.Now()
	ledger, err := rs.ledgerLoader.Load(ctx, ledgerData)
	if err != nil {
		op.Error(err, "Failed to load ledger export")
		return nil, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "cannot load ledger export").
			WithContext("file_path", request.LedgerFile)
	}
	result.ProcessingStats.LedgerTime = time.Since(ledgerStart)
	op.Step("ledger loaded", logger.Fields{
		"rows":    len(ledger.Rows),
		"psp_tin": ledger.Columns.PSPTIN.Header,
	})

	// Step 4: filter the ledger and compute both views
	onStep(StepReconcile, 3)
	matchStart := time.Now()
	matched, err := rs.matchingEngine.Reconcile(ctx, source, ledger)
	if err != nil {
		op.Error(err, "Reconciliation failed")
		return nil, errors.ReconciliationError(errors.CodeProcessingError, "reconcile", err)
	}
	result.ProcessingStats.MatchingTime = time.Since(matchStart)

	// Step 5: explain outcomes that need a second look
	if rs.config.AnalyzeEdgeCases {
		onStep(StepAnalyzeEdges, 4)
		result.EdgeCases = rs.edgeHandler.Analyze(source, matched)
	}

	rs.buildFinalResult(result, source, ledger, matched)
	result.Summary.ProcessingDuration = time.Since(startTime)
	result.ProcessingStats.TotalProcessingTime = result.Summary.ProcessingDuration

	op.Success("Reconciliation finished", logger.Fields{
		"dsn": result.Summary.DSNCount,
		"psd": result.Summary.PSDCount,
	})
	return result, nil
}

func (rs *ReconciliationService) buildFinalResult(
	result *ReconciliationResult,
	source *models.BankSource,
	ledger *models.Ledger,
	matched *matcher.ReconciliationResult,
) {
	result.Bank = source.Bank
	result.Layout = source.Layout
	result.DSN = matched.DSN
	result.PSD = matched.PSD
	result.Reversals = source.Reversals
	result.Excluded = matched.Excluded
	result.LedgerHeaders = ledger.Headers
	result.Columns = ledger.Columns

	if matched.HasCutoff {
		cutoff := matched.Cutoff
		result.Cutoff = &cutoff
	}

	result.Summary.ReconciliationSummary = matched.Summary
	result.Summary.ReversalsRemoved = len(source.Reversals)
	result.Summary.BankStats = source.Stats
	result.Summary.LedgerStats = ledger.Stats
}
