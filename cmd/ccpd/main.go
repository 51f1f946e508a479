// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command ccpd runs the CCP session core against a configured datapath
// transport, dispatching Create/Measure/Free traffic to a registered
// congestion-control algorithm.
package main

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/ccp-project/ccp/ccpcfg"
	"github.com/ccp-project/ccp/ccplog"
	"github.com/ccp-project/ccp/datapath"
	"github.com/ccp-project/ccp/datapath/chardev"
	"github.com/ccp-project/ccp/datapath/unixdp"
	"github.com/ccp-project/ccp/lang/program"
	"github.com/ccp-project/ccp/metrics"
	"github.com/ccp-project/ccp/session"
)

func main() {
	app := cli.NewApp()
	app.Name = "ccpd"
	app.Usage = "Congestion Control Plane runtime"
	app.Flags = ccpcfg.Flags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := ccpcfg.FromContext(cliCtx)
	if err != nil {
		return err
	}

	// instanceID tags every log line from this process so a crash-restart
	// doesn't get mistaken for a continuous run when correlating logs.
	instanceID := uuid.New().String()
	log := ccplog.Default().With("instance_id", instanceID)

	t, err := openTransport(cfg)
	if err != nil {
		return fmt.Errorf("ccpd: opening transport: %w", err)
	}
	defer t.Close()

	cache, err := program.NewCache(cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("ccpd: building program cache: %w", err)
	}

	algorithms := session.NewAlgorithmRegistry()
	algorithms.Register("const", session.NewConstRateFactory())
	factory, _ := algorithms.Lookup("const")

	core := session.New(t, cache, factory, session.WithLogger(log))

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("ccpd starting", "transport", cfg.Transport, "dry_run", cfg.DryRun)
	return core.Run(ctx)
}

func openTransport(cfg *ccpcfg.Config) (datapath.Transport, error) {
	switch cfg.Transport {
	case ccpcfg.TransportChardev:
		return chardev.Open(cfg.ChardevSendPath, cfg.ChardevRecvPath)
	case ccpcfg.TransportUnix:
		return unixdp.Listen(cfg.UnixLocalPath, cfg.UnixPeerPath)
	case ccpcfg.TransportNetlink:
		return openNetlink(cfg)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func serveMetrics(addr string, log *slog.Logger) {
	expvar.Publish("active_flows_snapshot", expvar.Func(func() interface{} { return metrics.ActiveFlows.Value() }))
	log.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Warn("metrics server stopped", "err", err)
	}
}
