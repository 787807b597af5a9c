package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type stubBalancer struct {
	tb  reports.TrialBalanceReport
	err error
}

func (s stubBalancer) TrialBalance(context.Context) (reports.TrialBalanceReport, error) {
	return s.tb, s.err
}

type stubReconciler struct {
	summary jobs.ReconcileSummary
}

func (s stubReconciler) Run(context.Context) (jobs.ReconcileSummary, error) { return s.summary, nil }

func balancedReport() reports.TrialBalanceReport {
	return reports.TrialBalanceReport{
		Rows: []reports.AccountBalance{
			{Code: "1.1.01", Name: "Cash", Debit: decimal.NewFromInt(500), Credit: decimal.Zero},
			{Code: "4.1.01", Name: "Sales revenue", Debit: decimal.Zero, Credit: decimal.NewFromInt(500)},
		},
		TotalDebit:  decimal.NewFromInt(500),
		TotalCredit: decimal.NewFromInt(500),
	}
}

func TestTrialBalanceCommandHuman(t *testing.T) {
	cli := NewLedgerCLI(stubBalancer{tb: balancedReport()}, nil)
	stdout := new(bytes.Buffer)
	code := cli.TrialBalanceCommand(context.Background(), OutputOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, code)
	require.Contains(t, stdout.String(), "1.1.01")
	require.Contains(t, stdout.String(), "500.00")
	require.NotContains(t, stdout.String(), "UNBALANCED")
}

func TestTrialBalanceCommandUnbalancedJSON(t *testing.T) {
	tb := balancedReport()
	tb.TotalCredit = decimal.NewFromInt(490)
	tb.Warning = &reports.UnbalancedWarning{TotalDebit: tb.TotalDebit, TotalCredit: tb.TotalCredit, Difference: decimal.NewFromInt(10)}
	cli := NewLedgerCLI(stubBalancer{tb: tb}, nil)

	stdout := new(bytes.Buffer)
	code := cli.TrialBalanceCommand(context.Background(), OutputOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitFinding, code)

	var decoded reports.TrialBalanceReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	require.NotNil(t, decoded.Warning)
	require.Equal(t, "10", decoded.Warning.Difference.String())
}

func TestTrialBalanceCommandError(t *testing.T) {
	cli := NewLedgerCLI(stubBalancer{err: errors.New("store closed")}, nil)
	stderr := new(bytes.Buffer)
	code := cli.TrialBalanceCommand(context.Background(), OutputOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "store closed")
}

func TestReconcileCommandReportsDrift(t *testing.T) {
	cli := NewLedgerCLI(nil, stubReconciler{summary: jobs.ReconcileSummary{
		Checked: 2,
		Drifted: []jobs.DriftedProduct{{ProductID: "p1", Code: "WIDGET", QuantityDrift: 3, CostDrift: "0"}},
	}})
	stdout := new(bytes.Buffer)
	code := cli.ReconcileCommand(context.Background(), OutputOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitFinding, code)
	require.Contains(t, stdout.String(), "checked 2 products, 1 drifted")
	require.Contains(t, stdout.String(), "WIDGET")

	clean := NewLedgerCLI(nil, stubReconciler{summary: jobs.ReconcileSummary{Checked: 2}})
	require.Zero(t, clean.ReconcileCommand(context.Background(), OutputOptions{Stdout: new(bytes.Buffer)}))
}

func TestTaskForAliases(t *testing.T) {
	task, err := TaskFor("gl-integrity", "test")
	require.NoError(t, err)
	require.Equal(t, jobs.TaskGLIntegrity, task.Type())

	task, err = TaskFor(jobs.TaskKardexReconcile, "test")
	require.NoError(t, err)
	require.Equal(t, jobs.TaskKardexReconcile, task.Type())

	_, err = TaskFor("mail:send", "test")
	require.Error(t, err)
}
