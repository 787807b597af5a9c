package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

// exitCode carries a non-zero status without printing an error.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return exitCode(code)
}

type rootOptions struct {
	jsonOutput  bool
	storeDriver string
	concurrency int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the Odyssey ledger: seed, check balances, reconcile stock",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print JSON instead of tables")
	root.PersistentFlags().StringVar(&opts.storeDriver, "store", "", "Override STORE_DRIVER")

	root.AddCommand(
		newSeedCmd(opts),
		newTrialBalanceCmd(opts),
		newKardexCmd(opts),
		newReconcileCmd(opts),
		newJobsCmd(),
	)
	return root
}

// withComponents loads config from the environment and wires the ledger for
// one command. The chart is not seeded implicitly.
func withComponents(cmd *cobra.Command, opts *rootOptions, fn func(cfg *app.Config, logger *slog.Logger, c *app.Components) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if opts.storeDriver != "" {
		cfg.StoreDriver = opts.storeDriver
	}
	cfg.SeedChart = false
	cfg.LogFormat = "json"
	logger := app.NewLoggerTo(cfg, cmd.ErrOrStderr())

	c, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("close components", slog.Any("error", err))
		}
	}()
	return fn(cfg, logger, c)
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the default chart of accounts when none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(_ *app.Config, _ *slog.Logger, c *app.Components) error {
				seeded, err := c.Accounts.Seed(cmd.Context(), accounts.DefaultAccounts())
				if err != nil {
					return err
				}
				if seeded {
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts\n", len(accounts.DefaultAccounts()))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "chart already present")
				}
				return nil
			})
		},
	}
}

func newTrialBalanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "trial-balance",
		Aliases: []string{"tb"},
		Short:   "Print the trial balance; exits 10 when unbalanced",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(_ *app.Config, _ *slog.Logger, c *app.Components) error {
				ledger := cli.NewLedgerCLI(c.Reports, nil)
				return exitWith(ledger.TrialBalanceCommand(cmd.Context(), cli.OutputOptions{
					JSONOutput: opts.jsonOutput,
					Stdout:     cmd.OutOrStdout(),
					Stderr:     cmd.ErrOrStderr(),
				}))
			})
		},
	}
}

func newKardexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kardex <product-id>",
		Short: "Replay one product's movements and print its Kardex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(_ *app.Config, _ *slog.Logger, c *app.Components) error {
				k, err := c.Inventory.Kardex(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(k); err != nil {
					return err
				}
				if k.Drifted() {
					return exitWith(cli.ExitFinding)
				}
				return nil
			})
		},
	}
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay every product Kardex; exits 10 when any product drifted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(_ *app.Config, logger *slog.Logger, c *app.Components) error {
				ledger := cli.NewLedgerCLI(c.Reports, c.KardexReconcileJob(logger, opts.concurrency))
				return exitWith(ledger.ReconcileCommand(cmd.Context(), cli.OutputOptions{
					JSONOutput: opts.jsonOutput,
					Stdout:     cmd.OutOrStdout(),
					Stderr:     cmd.ErrOrStderr(),
				}))
			})
		},
	}
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Products replayed in parallel")
	return cmd
}

func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue and inspect background jobs",
	}

	open := func() (*cli.JobsCLI, error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, err
		}
		return cli.NewJobsCLI(cfg.RedisOpts())
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "enqueue <gl-integrity|kardex-reconcile>",
		Short: "Enqueue a ledger job for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobsCLI, err := open()
			if err != nil {
				return err
			}
			defer jobsCLI.Close()
			info, err := jobsCLI.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobsCLI, err := open()
			if err != nil {
				return err
			}
			defer jobsCLI.Close()
			stats, err := jobsCLI.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return nil
		},
	})
	return jobsCmd
}
