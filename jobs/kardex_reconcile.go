package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const defaultReconcileConcurrency = 4

// KardexSource lists products and replays their Kardex.
type KardexSource interface {
	ListProducts(ctx context.Context) ([]inventory.Product, error)
	Kardex(ctx context.Context, productID string) (inventory.Kardex, error)
}

// DriftedProduct summarises one product whose stored costing disagrees with its replay.
type DriftedProduct struct {
	ProductID     string `json:"product_id"`
	Code          string `json:"code"`
	QuantityDrift int    `json:"quantity_drift"`
	CostDrift     string `json:"cost_drift"`
}

// ReconcileSummary is the outcome of a Kardex sweep.
type ReconcileSummary struct {
	Checked int              `json:"checked"`
	Drifted []DriftedProduct `json:"drifted"`
}

// KardexReconcileJob replays the Kardex of every product.
type KardexReconcileJob struct {
	source      KardexSource
	logger      *slog.Logger
	metrics     *jobmetrics.Metrics
	concurrency int
}

// NewKardexReconcileJob wires the sweep. Non-positive concurrency falls back to 4.
func NewKardexReconcileJob(source KardexSource, logger *slog.Logger, metrics *jobmetrics.Metrics, concurrency int) *KardexReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = defaultReconcileConcurrency
	}
	return &KardexReconcileJob{source: source, logger: logger, metrics: metrics, concurrency: concurrency}
}

// Run replays every product. The first replay error cancels the sweep.
func (j *KardexReconcileJob) Run(ctx context.Context) (ReconcileSummary, error) {
	tracker := j.metrics.Track(TaskKardexReconcile)
	products, err := j.source.ListProducts(ctx)
	if err != nil {
		return ReconcileSummary{}, tracker.End(fmt.Errorf("kardex reconcile: %w", err))
	}

	var (
		mu      sync.Mutex
		drifted []DriftedProduct
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, p := range products {
		p := p // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loopvar semantics)
		g.Go(func() error {
			k, err := j.source.Kardex(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("kardex %s: %w", p.ID, err)
			}
			if !k.Drifted() {
				return nil
			}
			mu.Lock()
			drifted = append(drifted, DriftedProduct{
				ProductID:     p.ID,
				Code:          p.Code,
				QuantityDrift: k.QuantityDrift,
				CostDrift:     k.CostDrift.String(),
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReconcileSummary{}, tracker.End(fmt.Errorf("kardex reconcile: %w", err))
	}

	sort.Slice(drifted, func(a, b int) bool { return drifted[a].Code < drifted[b].Code })
	summary := ReconcileSummary{Checked: len(products), Drifted: drifted}
	j.metrics.AddReconciled("clean", summary.Checked-len(drifted))
	j.metrics.AddReconciled("drifted", len(drifted))

	level := slog.LevelInfo
	if len(drifted) > 0 {
		level = slog.LevelWarn
	}
	j.logger.Log(ctx, level, "kardex reconcile finished",
		slog.String("job", TaskKardexReconcile),
		slog.Int("checked", summary.Checked),
		slog.Int("drifted", len(drifted)))
	return summary, tracker.End(nil)
}

// Handle adapts Run to the Asynq handler signature.
func (j *KardexReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if _, err := decodeScheduled(t); err != nil {
		return fmt.Errorf("kardex reconcile payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx)
	return err
}
