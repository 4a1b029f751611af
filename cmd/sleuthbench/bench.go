package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/c360studio/sleuthbench/chunker"
	"github.com/c360studio/sleuthbench/config"
	"github.com/c360studio/sleuthbench/llm"
	"github.com/c360studio/sleuthbench/model"
	"github.com/c360studio/sleuthbench/pipeline"
	"github.com/c360studio/sleuthbench/report"
	"github.com/c360studio/sleuthbench/scenario"
)

type benchOptions struct {
	configPath string
	logLevel   string
	quick      bool
	seed       uint64
	workers    []string
}

func runBench(ctx context.Context, opts benchOptions) error {
	logger := setupLogger(opts.logLevel)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.quick {
		cfg.ApplyQuick()
	}
	if len(opts.workers) > 0 {
		cfg.Bench.Workers = opts.workers
	}
	if opts.seed != 0 {
		cfg.Bench.Seed = opts.seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry, err := loadRegistry(cfg.Registry.Path)
	if err != nil {
		return err
	}
	for _, w := range cfg.Bench.Workers {
		if registry.GetWorker(w) == nil {
			return fmt.Errorf("worker %q not found in registry (known: %s)",
				w, strings.Join(registry.ListWorkers(), ", "))
		}
	}

	tok := chunker.NewDefault(logger)
	ch, err := chunker.New(tok, cfg.Bench.ChunkSize)
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}

	publisher, err := report.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer publisher.Close()

	invoker := llm.NewClient(registry, llm.WithLogger(logger))
	runner := pipeline.NewRunner(invoker, registry, ch,
		pipeline.WithRunnerLogger(logger),
		pipeline.WithRunnerStepDelay(cfg.Bench.StepDelay),
	)

	seed := cfg.Bench.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewSource(int64(seed)))

	logger.Info("Starting benchmark sweep",
		"workers", cfg.Bench.Workers,
		"cases", cfg.Bench.Cases,
		"total_lines", cfg.Scenario.TotalLines,
		"chunk_size", cfg.Bench.ChunkSize,
		"tokenizer", tok.Name(),
		"seed", seed)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, worker := range cfg.Bench.Workers {
		for caseNum := 1; caseNum <= cfg.Bench.Cases; caseNum++ {
			if ctx.Err() != nil {
				logger.Warn("Sweep interrupted", "worker", worker, "case", caseNum)
				return writeSweepReport(cfg, os.Stdout)
			}

			c := scenario.Generate(rng)
			renderCfg := scenario.RenderConfig{
				TotalLines: cfg.Scenario.TotalLines,
				MarginLow:  cfg.Scenario.MarginLow,
				MarginHigh: cfg.Scenario.MarginHigh,
			}
			transcript, err := scenario.RenderTranscript(rng, c, renderCfg)
			if err != nil {
				return fmt.Errorf("render transcript: %w", err)
			}

			rec, err := runner.Run(ctx, caseNum, c, transcript, worker)
			if err != nil {
				return fmt.Errorf("run case %d against %s: %w", caseNum, worker, err)
			}

			runDir := filepath.Join(cfg.Report.Dir, worker)
			path, err := report.WriteRecord(runDir, rec)
			if err != nil {
				return err
			}
			if _, err := report.WriteTranscript(runDir, rec.RunID, transcript.Text()); err != nil {
				return err
			}
			logger.Info("Run record written", "path", path)

			if err := publisher.PublishRun(rec); err != nil {
				logger.Warn("Failed to publish run event", "error", err)
			}
		}
	}

	return writeSweepReport(cfg, os.Stdout)
}

// writeSweepReport aggregates whatever records exist under the report
// directory, including those of previous sweeps.
func writeSweepReport(cfg *config.Config, out *os.File) error {
	records, err := report.LoadRecords(cfg.Report.Dir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No run records to report.")
		return nil
	}

	csvPath := filepath.Join(cfg.Report.Dir, cfg.Report.CSVName)
	if err := report.WriteCSVFile(csvPath, records); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nReport written to %s (%d runs)\n\n", csvPath, len(records))
	printSummaries(out, report.Summarize(records))
	return nil
}

func printSummaries(out *os.File, summaries []report.WorkerSummary) {
	fmt.Fprintf(out, "%-28s %6s %7s %5s %8s %9s %8s\n",
		"WORKER", "RUNS", "SCORED", "HITS", "ABORTED", "DEGRADED", "HITRATE")
	for _, s := range summaries {
		fmt.Fprintf(out, "%-28s %6d %7d %5d %8d %9d %7.0f%%\n",
			s.Worker, s.Runs, s.Scored, s.Hits, s.Aborted, s.Degraded, s.HitRate()*100)
	}
}

func runReport(dir, out, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dir == "" {
		dir = cfg.Report.Dir
	}
	if out == "" {
		out = filepath.Join(dir, cfg.Report.CSVName)
	}

	records, err := report.LoadRecords(dir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No run records found.")
		return nil
	}

	if err := report.WriteCSVFile(out, records); err != nil {
		return err
	}
	fmt.Printf("Report written to %s (%d runs)\n\n", out, len(records))
	printSummaries(os.Stdout, report.Summarize(records))
	return nil
}

func loadRegistry(path string) (*model.Registry, error) {
	if path == "" {
		return model.NewDefaultRegistry(), nil
	}
	registry, err := model.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load worker registry: %w", err)
	}
	return registry, nil
}

func setupLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
