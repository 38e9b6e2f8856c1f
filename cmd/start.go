/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"curvebond/domain/config"
	"curvebond/interface/api"
	"curvebond/interface/exporter"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the ledger service",
	Long: `Starts the HTTP API, the metrics endpoint and the settle, payout and payout
recovery tasks.
To stop it, run 'stop' command.`,
	Run: func(cmd *cobra.Command, args []string) {
		defaultDependencyInject()
		defer logger.Sync()

		exporter.Init()

		err := memoInteractor.PinCurve(config.GetCurve(), config.GetReserveDenom())
		if err != nil {
			logger.Fatal("⛔️ Refusing to start", zap.Error(err))
		}

		if err := writePidFile(config.GetPidFile()); err != nil {
			logger.Fatal("⛔️ Unable to write pid file", zap.Error(err))
		}
		defer os.Remove(config.GetPidFile())

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		servers := []*http.Server{
			{
				Addr:              config.GetHttpAddress(),
				Handler:           api.New(bondingInteractor, payoutInteractor, memoInteractor, logger).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			},
			{
				Addr:              config.GetMetricsAddress(),
				Handler:           metricsMux,
				ReadHeaderTimeout: 10 * time.Second,
			},
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, srv := range servers {
			srv := srv
			g.Go(func() error {
				logger.Info("listening", zap.String("address", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		}

		g.Go(func() error {
			schedule(gctx, settle, config.GetSettleInterval())
			return nil
		})
		g.Go(func() error {
			schedule(gctx, payout, config.GetPayoutInterval())
			return nil
		})
		g.Go(func() error {
			schedule(gctx, recoverPayouts, config.GetPayoutTimeout())
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("stopping")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			for _, srv := range servers {
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("shutting down server", zap.String("address", srv.Addr), zap.Error(err))
				}
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			logger.Error("🔴 stopped with error", zap.Error(err))
		}
	},
}

// schedule runs task every interval until ctx is done. A slow task delays
// the next run instead of piling up.
func schedule(ctx context.Context, task func(ctx context.Context), interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {

		case <-ticker.C:
			ticker.Stop()
			task(ctx)
			ticker.Reset(interval)

		case <-ctx.Done():
			return
		}
	}
}

func settle(ctx context.Context) {
	if _, err := settleInteractor.Settle(ctx); err != nil && ctx.Err() == nil {
		logger.Error("❌ Settle failed", zap.Error(err))
	}
}

func payout(ctx context.Context) {
	sent, err := payoutInteractor.Send(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("❌ Payout failed", zap.Error(err))
		return
	}
	if sent > 0 {
		logger.Info("payouts sent", zap.Int("count", sent))
	}
}

func recoverPayouts(ctx context.Context) {
	recovered, err := payoutInteractor.Recover(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("❌ Payout recovery failed", zap.Error(err))
		return
	}
	if recovered > 0 {
		logger.Info("interrupted payouts recovered", zap.Int("count", recovered))
	}
}

func writePidFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func init() {
	rootCmd.AddCommand(startCmd)
}
