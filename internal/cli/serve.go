package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetricsCmd returns the metrics command.
func MetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show escalation metrics",
		Long:  "Show counters and rates rebuilt from the stored escalation history.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}
			if _, err := c.Escalations.RebuildMetrics(ctx); err != nil {
				return err
			}

			m := c.Escalations.GetEscalationMetrics()
			if globalJSON {
				return printJSON(cmd.OutOrStdout(), m)
			}
			printMetrics(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

// SweepCmd returns the sweep command.
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one timeout sweep over open escalations",
		Long: `Load every open escalation and raise those that have waited past their tier's
response window. Suitable for cron when 'triage serve' is not running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}
			if _, err := c.Escalations.LoadActive(ctx); err != nil {
				return err
			}

			res := c.Sweeper.SweepOnce(ctx, time.Now())
			if globalJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked %d, escalated %d, re-notified %d, throttled %d\n",
				res.Checked, res.Escalated, res.Renotified, res.Throttled)
			return nil
		},
	}
}

// PruneCmd returns the prune command.
func PruneCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit events past the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = c.Config.Audit.RetentionDays
			}
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			n, err := c.Audit.PruneOlderThan(ctx, days)
			if err != nil {
				return fmt.Errorf("failed to prune audit events: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d audit events older than %d days\n", n, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default audit.retention_days)")
	return cmd
}

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the timeout sweeper and metrics endpoint",
		Long: `Rehydrate open escalations, run the timeout sweep on its interval and expose
Prometheus metrics on /metrics until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(NewContext(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := services(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = c.Config.Metrics.Addr
			}
			return serve(ctx, c.Logger, addr, c.Exporter.Handler(), func(ctx context.Context) error {
				replayed, err := c.Escalations.RebuildMetrics(ctx)
				if err != nil {
					return err
				}
				loaded, err := c.Escalations.LoadActive(ctx)
				if err != nil {
					return err
				}
				c.Logger.Info("escalations restored", zap.Int("history", replayed), zap.Int("active", loaded))
				fmt.Fprintf(cmd.OutOrStdout(), "%s sweeping %d open escalations every %s; metrics on %s\n",
					color.New(color.FgGreen).Sprint("✓"), loaded, c.Config.Sweep.Interval, addr)
				return nil
			}, c.Sweeper.Run)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Metrics listen address (default metrics.addr)")
	return cmd
}

// serve runs the sweeper and the metrics server until ctx is cancelled or either fails.
func serve(ctx context.Context, log *zap.Logger, addr string, metrics http.Handler,
	restore func(context.Context) error, sweep func(context.Context) error) error {
	if err := restore(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := sweep(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	log.Info("serve stopped")
	return err
}
