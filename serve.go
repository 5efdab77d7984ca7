package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ocinpp/mosaic-generator/metrics"
	"github.com/ocinpp/mosaic-generator/worker"
)

// runServe runs one worker over a CBOR stream: messages on stdin, replies
// on stdout. It returns when stdin is closed.
func runServe(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var configPath, metricsFile string

	flagSet := newFlagSet("serve", stderr)
	flagSet.StringVar(&configPath, "config", "", "config file (YAML, or JSON/JSONC by extension); defaults to $MOSAIC_CONFIG")
	flagSet.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg, logger, err := loadConfig(configPath, stderr)
	if err != nil {
		return err
	}
	opts, err := worker.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	opts.Logger = logger
	opts.Metrics = metrics.New(reg)

	w := worker.New(worker.NewStreamOutbox(stdout), opts)
	logger.Info("worker serving", "output_format", cfg.Output.Format, "interpolator", cfg.Mosaic.Interpolator)

	serveErr := w.Serve(ctx, worker.NewStreamInbox(stdin))
	if serveErr != nil {
		logger.Error("worker stopped", "error", serveErr)
	} else {
		logger.Info("worker stopped")
	}

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			logger.Error("writing metrics", "path", metricsFile, "error", err)
			if serveErr == nil {
				return fmt.Errorf("writing metrics: %w", err)
			}
		}
	}
	return serveErr
}
