package cli

import (
	"fmt"

	"github.com/jasperlabs/jasper-go/internal/engine"
	"github.com/spf13/cobra"
)

var intentsCmd = &cobra.Command{
	Use:   "intents",
	Short: "List the widget families Jasper can produce",
	Args:  cobra.NoArgs,
	RunE:  runIntents,
}

func runIntents(cmd *cobra.Command, args []string) error {
	registry := engine.NewRegistry()

	fmt.Printf("%-14s %-10s %-12s %s\n", "FAMILY", "POLICY", "GENERATION", "PREREQUISITE")
	for _, intent := range registry.Intents() {
		h := registry.Resolve(intent)

		generation := "model"
		if h.DirectCall {
			generation = "direct-call"
		}
		prerequisite := "-"
		if h.Prerequisite != nil {
			prerequisite = h.Prerequisite.Awaiting
		}
		fmt.Printf("%-14s %-10s %-12s %s\n", h.Family, h.Policy, generation, prerequisite)
	}
	return nil
}
