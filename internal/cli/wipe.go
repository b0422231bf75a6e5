package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var wipeForce bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all stored data",
	Long: `Delete all conversations, turns, attendance and token usage records
from the local database. Irreversible.`,
	Args: cobra.NoArgs,
	RunE: runWipe,
}

func init() {
	wipeCmd.Flags().BoolVarP(&wipeForce, "force", "f", false, "skip confirmation")
}

func runWipe(cmd *cobra.Command, args []string) error {
	if remoteMode() {
		return fmt.Errorf("wipe only works against the local database")
	}

	if !wipeForce {
		fmt.Print("This deletes ALL stored data. Type 'yes' to continue: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := dbClient.WipeData(cmd.Context()); err != nil {
		return fmt.Errorf("wipe data: %w", err)
	}
	fmt.Println("All data deleted.")
	return nil
}
