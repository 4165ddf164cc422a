// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd wires cfg, internal/logger, common, and internal/vm/* into a
// runnable binary: a cobra.Command tree with a "run" command that boots one
// VM instance and a "stats" command that prints the fixed memory-layout
// constants.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/netinmax/inko/cfg"
	"github.com/netinmax/inko/common"
	"github.com/netinmax/inko/internal/logger"
	"github.com/netinmax/inko/internal/vm/block"
	"github.com/netinmax/inko/internal/vm/collector"
	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/object"
	"github.com/netinmax/inko/internal/vm/process"
)

var metricsAddr string
var crashDumpPath string

// NewRootCommand builds the "inko" command tree: persistent config flags
// bound through cfg.BindFlags, plus the run and stats subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "inko",
		Short:         "Immix-style heap manager and lightweight-process scheduler.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if err := cfg.BindFlags(root.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("cmd: binding flags: %v", err))
	}
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus /metrics on; empty disables the HTTP server.")
	root.PersistentFlags().StringVar(&crashDumpPath, "crash-dump", "", "File to append a panic report to before the process aborts; empty disables crash dumping.")

	root.AddCommand(newRunCommand())
	root.AddCommand(newStatsCommand())
	return root
}

// loadConfig decodes the viper-bound flags (and, if present, a config file
// already read by viper) into a cfg.Config, rationalizes host-dependent
// fields, and validates the result.
func loadConfig() (*cfg.Config, error) {
	conf := &cfg.Config{
		Logging:   cfg.GetDefaultLoggingConfig(),
		Allocator: cfg.GetDefaultAllocatorConfig(),
		Scheduler: cfg.GetDefaultSchedulerConfig(),
	}

	// Config's struct tags are "yaml" (for the optional config file), so the
	// mapstructure decoder underneath viper.Unmarshal is told to match
	// against those instead of its default "mapstructure" tag.
	err := viper.Unmarshal(conf, viper.DecodeHook(cfg.DecodeHook()), func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("cmd: decoding config: %w", err)
	}
	if err := cfg.Rationalize(conf); err != nil {
		return nil, fmt.Errorf("cmd: rationalizing config: %w", err)
	}
	if err := cfg.ValidateConfig(conf); err != nil {
		return nil, fmt.Errorf("cmd: validating config: %w", err)
	}
	return conf, nil
}

// setupMetrics wires an OTel MeterProvider backed by the Prometheus bridge
// exporter onto a dedicated prometheus.Registry, and (if addr is non-empty)
// serves that registry's /metrics page. Returns the MetricHandle the
// scheduler reports through and a shutdown func releasing the HTTP server.
func setupMetrics(addr string) (common.MetricHandle, func(), error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return nil, func() {}, fmt.Errorf("cmd: building prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	handle, err := common.NewOTelMetrics()
	if err != nil {
		return nil, func() {}, fmt.Errorf("cmd: building metric handle: %w", err)
	}

	shutdown := func() {}
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("cmd: metrics server: %v", err)
			}
		}()
		shutdown = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}
	}
	return handle, shutdown, nil
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Boot a VM instance, run a small demo workload, and print the free-block count.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithCrashDump(crashDumpPath, func() error {
				conf, err := loadConfig()
				if err != nil {
					return err
				}
				if err := logger.InitLogFile(conf.Logging); err != nil {
					return fmt.Errorf("cmd: initializing logger: %w", err)
				}
				collector.SetThresholdPolicy(conf.Allocator.SurvivorRatioHigh, conf.Allocator.ThresholdGrowthFactor)

				metrics, shutdownMetrics, err := setupMetrics(metricsAddr)
				if err != nil {
					logger.Warnf("cmd: metrics disabled: %v", err)
					metrics = common.NewNoopMetrics()
					shutdownMetrics = func() {}
				}
				defer shutdownMetrics()

				global := globalalloc.NewPreallocated(conf.Allocator.PreallocatedBlocks)
				scheduler, err := process.NewScheduler(global, uint32(conf.Scheduler.PriorityWorkers), uint32(conf.Scheduler.NormalWorkers))
				if err != nil {
					return fmt.Errorf("cmd: building scheduler: %w", err)
				}
				scheduler.WithMetrics(metrics)
				defer scheduler.Stop()

				return runDemoWorkload(scheduler, global, conf)
			})
		},
	}
}

// runDemoWorkload spawns a small, fixed set of processes that allocate,
// send each other a message, and receive it, then forces one collection
// cycle per process and prints the global pool's resulting free-block
// count. It never reads a
// source or bytecode file -- there is no instruction layer here, only the
// allocator and scheduler it would run on top of.
func runDemoWorkload(scheduler *process.Scheduler, global *globalalloc.Allocator, conf *cfg.Config) error {
	const demoProcesses = 4

	procs := make([]*process.Process, demoProcesses)
	for i := range procs {
		procs[i] = scheduler.Spawn()
		procs[i].Local.SetThreshold(conf.Allocator.YoungBlockThreshold)
		procs[i].Mailbox.SetThreshold(conf.Allocator.MailboxBlockThreshold)
	}

	for i, p := range procs {
		greeting := p.Local.AllocateWithoutPrototype(object.NewString(fmt.Sprintf("hello from pid %d", p.PID)))
		next := procs[(i+1)%len(procs)]
		next.Send(greeting)
	}

	for _, p := range procs {
		msg, ok := p.Receive()
		if !ok {
			continue
		}
		logger.Infof("pid %d received: %v", p.PID, msg.Get().Str)

		scheduler.Collect(p, nil)
	}

	for _, p := range procs {
		scheduler.OnProcessExit(p)
	}

	fmt.Printf("ran %d demo processes; %d blocks free in the global pool\n", demoProcesses, global.FreeBlockCount())
	return nil
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the fixed memory-layout constants this build was compiled with.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("block size:        %d bytes\n", block.Size)
			fmt.Printf("lines per block:   %d\n", block.LinesPerBlock)
			fmt.Printf("line size:         %d bytes\n", block.LineSize)
			fmt.Printf("object slot size:  %d bytes\n", block.BytesPerObject)
			fmt.Printf("slots per block:   %d\n", block.ObjectsPerBlock)
			fmt.Printf("slots per line:    %d\n", block.ObjectsPerLine)
			return nil
		},
	}
}

