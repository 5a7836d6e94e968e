package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/internal/server"
	"github.com/hed1ad/vitalguard/pkg/detectors/iforest"
	"github.com/hed1ad/vitalguard/pkg/notify"
	"github.com/hed1ad/vitalguard/pkg/pipeline"
	"github.com/hed1ad/vitalguard/pkg/simulator"
	"github.com/hed1ad/vitalguard/pkg/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live readings and scoring over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	// The service is useless without a model, so a bad artifact is fatal.
	forest, err := iforest.ReadFile(cfg.Model.Path)
	if err != nil {
		return fmt.Errorf("load model %s (run 'vitalguard train' first): %w", cfg.Model.Path, err)
	}
	logger.Info("model loaded",
		zap.String("path", cfg.Model.Path),
		zap.Int("trees", forest.Trees()),
		zap.Float64("threshold", forest.Threshold()),
	)

	store, err := storage.Open(ctx, cfg.Storage, logger.Named("storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []pipeline.Option{
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithMetrics(pipeline.NewMetrics(reg)),
		pipeline.WithHistoryLimit(cfg.History.Limit),
	}
	if cfg.Notify.Kafka.Enabled {
		k, err := notify.NewKafka(cfg.Notify.Kafka)
		if err != nil {
			return fmt.Errorf("init kafka notifier: %w", err)
		}
		defer k.Close()
		opts = append(opts, pipeline.WithNotifier(k))
		logger.Info("publishing anomalies to kafka",
			zap.Strings("brokers", cfg.Notify.Kafka.Brokers),
			zap.String("topic", cfg.Notify.Kafka.Topic),
		)
	}

	p, err := pipeline.New(simulator.New(cfg.Simulator.Seed), forest, store, opts...)
	if err != nil {
		return err
	}

	return server.New(cfg.Server, p, reg, logger.Named("http")).Run(ctx)
}
