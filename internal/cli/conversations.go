package cli

import (
	"fmt"

	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/spf13/cobra"
)

var conversationsLimit int

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List stored conversations",
	Long: `List stored conversations, newest first.

Examples:
  jasper conversations
  jasper conversations -n 10
  jasper conversations --server http://localhost:8787`,
	Args: cobra.NoArgs,
	RunE: runConversations,
}

func init() {
	conversationsCmd.Flags().IntVarP(&conversationsLimit, "limit", "n", 50, "max conversations to list")
}

func runConversations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var conversations []models.Conversation
	var err error
	if remoteMode() {
		conversations, err = getClient().ListConversations(ctx, conversationsLimit)
	} else {
		conversations, err = dbClient.ListConversations(ctx, conversationsLimit)
	}
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	for _, conv := range conversations {
		id, err := models.RecordIDString(conv.ID)
		if err != nil {
			id = fmt.Sprintf("%v", conv.ID)
		}
		fmt.Printf("%-24s  %s  %s\n",
			id, conv.UpdatedAt.Format("2006-01-02 15:04"), conv.Title)
	}
	return nil
}
