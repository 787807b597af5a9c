package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// ExitFinding is returned when a check ran but found a problem.
const ExitFinding = 10

// Reconciler replays every product Kardex.
type Reconciler interface {
	Run(ctx context.Context) (jobs.ReconcileSummary, error)
}

// LedgerCLI renders ledger checks for operators.
type LedgerCLI struct {
	reports    jobs.TrialBalancer
	reconciler Reconciler
}

// NewLedgerCLI constructs the helper.
func NewLedgerCLI(balancer jobs.TrialBalancer, reconciler Reconciler) *LedgerCLI {
	return &LedgerCLI{reports: balancer, reconciler: reconciler}
}

// OutputOptions picks the output streams and format.
type OutputOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *OutputOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// TrialBalanceCommand prints the trial balance. It exits with ExitFinding
// when debits and credits disagree.
func (c *LedgerCLI) TrialBalanceCommand(ctx context.Context, opts OutputOptions) int {
	opts.defaults()
	tb, err := c.reports.TrialBalance(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(tb); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: encode json: %v\n", err)
			return 1
		}
	} else {
		renderTrialBalance(opts.Stdout, tb)
	}
	if tb.Warning != nil {
		return ExitFinding
	}
	return 0
}

// ReconcileCommand replays every Kardex. It exits with ExitFinding when any
// product drifted.
func (c *LedgerCLI) ReconcileCommand(ctx context.Context, opts OutputOptions) int {
	opts.defaults()
	summary, err := c.reconciler.Run(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "kardex: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "kardex: encode json: %v\n", err)
			return 1
		}
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "checked %d products, %d drifted\n", summary.Checked, len(summary.Drifted))
		if len(summary.Drifted) > 0 {
			tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "CODE\tQTY DRIFT\tCOST DRIFT")
			for _, d := range summary.Drifted {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Code, d.QuantityDrift, d.CostDrift)
			}
			_ = tw.Flush()
		}
	}
	if len(summary.Drifted) > 0 {
		return ExitFinding
	}
	return 0
}

func renderTrialBalance(w io.Writer, tb reports.TrialBalanceReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "CODE\tACCOUNT\tDEBIT\tCREDIT\t")
	for _, row := range tb.Rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", row.Code, row.Name, row.Debit.StringFixed(2), row.Credit.StringFixed(2))
	}
	_, _ = fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	_ = tw.Flush()
	if tb.Warning != nil {
		_, _ = fmt.Fprintf(w, "UNBALANCED by %s\n", tb.Warning.Difference.StringFixed(2))
	}
}
