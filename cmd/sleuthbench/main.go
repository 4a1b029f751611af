// Package main provides the sleuthbench binary entry point.
// Sleuthbench measures whether small models can carry a planted murder
// mystery through recursive summarization of a long, noisy transcript.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/sleuthbench/llm/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sleuthbench"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		quick      bool
		seed       uint64
		workers    []string
	)

	cmd := &cobra.Command{
		Use:   "sleuthbench",
		Short: "Long-context summarization benchmark for small models",
		Long: `Sleuthbench plants a murder mystery in a long, noisy dialogue and
drives a worker model through recursive window-by-window summarization,
then checks whether the culprit survives into the final reasoning.

It provides:
- Deterministic scenario generation with true and decoy evidence
- A resilient model invoker with per-class retry and decoding escalation
- Per-run JSON records plus an aggregate CSV report`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), benchOptions{
				configPath: configPath,
				logLevel:   logLevel,
				quick:      quick,
				seed:       seed,
				workers:    workers,
			})
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&quick, "quick", false, "Shrink the sweep for a fast smoke run")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Scenario generation seed (0 = random)")
	cmd.Flags().StringSliceVar(&workers, "worker", nil, "Worker to benchmark (repeatable, overrides config)")

	cmd.AddCommand(reportCmd())

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func reportCmd() *cobra.Command {
	var (
		configPath string
		dir        string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate persisted run records into a CSV report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(dir, out, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&dir, "dir", "", "Record directory (default: report.dir from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output CSV path (default: report.csv_name inside the record directory)")

	return cmd
}
