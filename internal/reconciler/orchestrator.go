// Package reconciler runs a complete PSP_TIN reconciliation: it reads the
// bank statement and the ledger export, decodes both, and produces the DSN
// and PSD views together with the run statistics.
//
// The ReconciliationOrchestrator wraps the ReconciliationService with
// progress tracking and run warnings for interactive callers.
//
// Example usage:
//
//	orchestrator, err := reconciler.NewReconciliationOrchestrator(service)
//	orchestrator.AddProgressCallback(func(progress *reconciler.ReconciliationProgress) {
//		fmt.Printf("Progress: %.1f%% - %s\n", progress.PercentComplete, progress.CurrentStep)
//	})
//
//	result, err := orchestrator.ProcessReconciliation(ctx, &reconciler.ReconciliationRequest{
//		BankFile:   "crep_20250110.txt",
//		LedgerFile: "ledger.xlsx",
//	})
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// ReconciliationOrchestrator runs reconciliations while reporting progress.
// Progress is tracked per orchestrator, so concurrent runs should use one
// orchestrator each.
type ReconciliationOrchestrator struct {
	service           *ReconciliationService
	logger            logger.Logger
	progressCallbacks []ProgressCallback
	currentProgress   *ReconciliationProgress
	progressMutex     sync.RWMutex
}

// ReconciliationProgress tracks the progress of a reconciliation run
type ReconciliationProgress struct {
	RunID           string        `json:"run_id,omitempty"`
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`

	Warnings []string `json:"warnings,omitempty"`
}

// ProgressCallback is called with a snapshot of the progress after each step
type ProgressCallback func(*ReconciliationProgress)

// NewReconciliationOrchestrator creates a new reconciliation orchestrator
func NewReconciliationOrchestrator(service *ReconciliationService) (*ReconciliationOrchestrator, error) {
	if service == nil {
		return nil, errors.ValidationError(
			errors.CodeMissingField,
			"reconciliation_service",
			nil,
			nil,
		).WithSuggestion("Provide a valid ReconciliationService instance")
	}

	return &ReconciliationOrchestrator{
		service: service,
		logger:  logger.GetGlobalLogger().WithComponent("reconciliation_orchestrator"),
		currentProgress: &ReconciliationProgress{
			TotalSteps: len(Steps),
		},
	}, nil
}

// AddProgressCallback adds a progress callback function
func (ro *ReconciliationOrchestrator) AddProgressCallback(callback ProgressCallback) {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()
	ro.progressCallbacks = append(ro.progressCallbacks, callback)
}

// ProcessReconciliation runs one reconciliation and collects warnings about
// input that was skipped or filtered along the way.
func (ro *ReconciliationOrchestrator) ProcessReconciliation(
	ctx context.Context,
	request *ReconciliationRequest,
) (*ReconciliationResult, error) {
	ro.initializeProgress()

	result, err := ro.service.process(ctx, request, func(step Step, index int) {
		ro.updateProgress(string(step), index)
	})
	if err != nil {
		ro.updateProgress("Failed", ro.completedSteps())
		return nil, err
	}

	ro.collectWarnings(result)
	ro.setRunID(result.RunID)
	ro.updateProgress("Completed", len(Steps))

	ro.logger.WithFields(logger.Fields{
		"run_id":   result.RunID,
		"warnings": len(ro.GetProgress().Warnings),
	}).Info("Reconciliation run completed")
	return result, nil
}

// GetProgress returns a snapshot of the current progress
func (ro *ReconciliationOrchestrator) GetProgress() *ReconciliationProgress {
	ro.progressMutex.RLock()
	defer ro.progressMutex.RUnlock()
	return ro.snapshot()
}

func (ro *ReconciliationOrchestrator) snapshot() *ReconciliationProgress {
	progress := *ro.currentProgress
	progress.Warnings = append([]string(nil), ro.currentProgress.Warnings...)
	return &progress
}

func (ro *ReconciliationOrchestrator) initializeProgress() {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()

	ro.currentProgress = &ReconciliationProgress{
		TotalSteps: len(Steps),
		StartTime:  time.Now(),
	}
}

func (ro *ReconciliationOrchestrator) completedSteps() int {
	ro.progressMutex.RLock()
	defer ro.progressMutex.RUnlock()
	return ro.currentProgress.CompletedSteps
}

func (ro *ReconciliationOrchestrator) setRunID(runID string) {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()
	ro.currentProgress.RunID = runID
}

func (ro *ReconciliationOrchestrator) updateProgress(step string, completed int) {
	ro.progressMutex.Lock()
	ro.currentProgress.CurrentStep = step
	ro.currentProgress.CompletedSteps = completed
	ro.currentProgress.ElapsedTime = time.Since(ro.currentProgress.StartTime)
	if ro.currentProgress.TotalSteps > 0 {
		ro.currentProgress.PercentComplete = float64(completed) / float64(ro.currentProgress.TotalSteps) * 100
	}
	progress := ro.snapshot()
	callbacks := append([]ProgressCallback(nil), ro.progressCallbacks...)
	ro.progressMutex.Unlock()

	for _, callback := range callbacks {
		callback(progress)
	}
}

func (ro *ReconciliationOrchestrator) addWarning(message string) {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()
	ro.currentProgress.Warnings = append(ro.currentProgress.Warnings, message)
}

func (ro *ReconciliationOrchestrator) collectWarnings(result *ReconciliationResult) {
	bank := result.Summary.BankStats
	if bank.SkippedLines > 0 {
		ro.addWarning(fmt.Sprintf("%d bank lines were skipped during decoding", bank.SkippedLines))
	}
	if bank.InvalidKeys > 0 {
		ro.addWarning(fmt.Sprintf("%d bank records carried no valid PSP_TIN", bank.InvalidKeys))
	}

	ledger := result.Summary.LedgerStats
	if ledger.InvalidKeys > 0 {
		ro.addWarning(fmt.Sprintf("%d ledger rows carried no valid PSP_TIN", ledger.InvalidKeys))
	}
	if n := result.Summary.ExcludedNoTimestamp; n > 0 {
		ro.addWarning(fmt.Sprintf("%d ledger rows without a timestamp were left out by the cutoff", n))
	}

	if edges := result.EdgeCases; edges != nil && !edges.Empty() {
		if n := len(edges.FilteredMatches); n > 0 {
			ro.addWarning(fmt.Sprintf("%d DSN movements have a ledger row that a filter excluded", n))
		}
		if n := len(edges.ReversedPending); n > 0 {
			ro.addWarning(fmt.Sprintf("%d PSD rows match a reversed bank movement", n))
		}
	}
}
