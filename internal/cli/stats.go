package cli

import (
	"fmt"

	"github.com/jasperlabs/jasper-go/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Long: `Show in-memory runtime statistics of a running jasper-server:
operation counts, timings and token usage. Statistics reset on server
restart.

Requires --server.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	if !remoteMode() {
		return fmt.Errorf("stats requires --server (statistics live in the server process)")
	}

	snap, err := getClient().Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	fmt.Printf("Uptime: %.0fs\n\n", snap.UptimeSeconds)
	printOpStats("llm_generate", snap.LLMGenerate)
	printOpStats("llm_correction", snap.LLMCorrection)
	printOpStats("validate", snap.Validate)
	printOpStats("extract", snap.Extract)
	printOpStats("db_query", snap.DBQuery)
	return nil
}

func printOpStats(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		return
	}
	fmt.Printf("%s\n", name)
	fmt.Printf("  count: %d  avg: %.1fms  min: %dms  max: %dms\n",
		op.Count, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.TotalInputTokens != nil && op.TotalOutputTokens != nil {
		fmt.Printf("  tokens in: %d  out: %d\n", *op.TotalInputTokens, *op.TotalOutputTokens)
	}
	fmt.Println()
}
