// Command ingest runs mailbox passes outside the HTTP server, for cron jobs
// and for operators checking a mailbox by hand.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/Christianjames01/repo-sub000/internal/app"
	"github.com/Christianjames01/repo-sub000/internal/config"
	"github.com/Christianjames01/repo-sub000/internal/db"
	"github.com/Christianjames01/repo-sub000/internal/ingest"
	"github.com/Christianjames01/repo-sub000/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const triggerCLI = "cli"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ingest",
		Short:        "Mailbox ingestion commands",
		SilenceUsage: true,
	}

	cmd.AddCommand(newOnceCmd())

	return cmd
}

func newOnceCmd() *cobra.Command {
	var asJSON bool
	var migrate bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single pass over the unseen messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			l, err := logger.New(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if migrate {
				if err := db.Migrate(cfg.GetDatabaseURL()); err != nil {
					return err
				}
			}

			pool, err := db.NewConnection(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.CloseConnection(pool)

			a, err := app.New(ctx, cfg, db.NewStore(pool), l)
			if err != nil {
				return err
			}
			defer a.Close()

			return runOnce(ctx, a.Runner, cmd.OutOrStdout(), asJSON, l)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the pass result as JSON")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending database migrations first")

	return cmd
}

// passRunner is satisfied by *scheduler.Runner.
type passRunner interface {
	RunOnce(ctx context.Context, trigger string) (*ingest.PassResult, error)
}

// runOnce prints whatever the pass produced. The error is returned only when
// the pass could not process anything; per-message failures are reported in
// the output and do not fail the command.
func runOnce(ctx context.Context, runner passRunner, w io.Writer, asJSON bool, l *zap.Logger) error {
	result, err := runner.RunOnce(ctx, triggerCLI)
	if result != nil {
		if perr := printResult(w, result, asJSON); perr != nil {
			return perr
		}
	}
	if err == nil {
		return nil
	}
	if result != nil && len(result.Outcomes) > 0 {
		l.Warn("pass ended early", zap.Error(err))
		return nil
	}
	return err
}

func printResult(w io.Writer, result *ingest.PassResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, o := range result.Outcomes {
		reason := o.Reason
		if reason == "" {
			reason = "-"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.UID, o.Kind, o.MessageID, o.From, reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	t := result.Tally
	_, err := fmt.Fprintf(w, "processed=%d skipped_duplicate=%d skipped_self=%d failed=%d\n",
		t.Processed, t.SkippedDuplicate, t.SkippedSelf, t.Failed)
	return err
}
