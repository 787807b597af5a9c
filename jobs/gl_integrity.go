package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// TrialBalancer computes the trial balance over the whole ledger.
type TrialBalancer interface {
	TrialBalance(ctx context.Context) (reports.TrialBalanceReport, error)
}

// GLIntegrityJob recomputes the trial balance and reports imbalance.
type GLIntegrityJob struct {
	reports TrialBalancer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewGLIntegrityJob wires the integrity check.
func NewGLIntegrityJob(balancer TrialBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &GLIntegrityJob{reports: balancer, logger: logger, metrics: metrics}
}

// Run executes one integrity pass. An unbalanced ledger is not a job failure:
// the warning is returned so callers can surface it, and it is logged at error.
func (j *GLIntegrityJob) Run(ctx context.Context) (*reports.UnbalancedWarning, error) {
	tracker := j.metrics.Track(TaskGLIntegrity)
	tb, err := j.reports.TrialBalance(ctx)
	if err != nil {
		return nil, tracker.End(fmt.Errorf("gl integrity: %w", err))
	}
	if tb.Warning != nil {
		j.logger.Error("gl integrity check failed",
			slog.String("job", TaskGLIntegrity),
			slog.String("total_debit", tb.TotalDebit.StringFixed(2)),
			slog.String("total_credit", tb.TotalCredit.StringFixed(2)),
			slog.String("difference", tb.Warning.Difference.StringFixed(2)))
	} else {
		j.logger.Info("gl integrity check passed",
			slog.String("job", TaskGLIntegrity),
			slog.String("total", tb.TotalDebit.StringFixed(2)))
	}
	_ = tracker.End(nil)
	return tb.Warning, nil
}

// Handle adapts Run to the Asynq handler signature.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	payload, err := decodeScheduled(t)
	if err != nil {
		return fmt.Errorf("gl integrity payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RequestedBy != "" {
		j.logger.Debug("gl integrity requested", slog.String("by", payload.RequestedBy))
	}
	_, err = j.Run(ctx)
	return err
}
