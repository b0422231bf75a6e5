package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatConversationID string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with Jasper",
	Long: `Send a message to Jasper, or start an interactive session when no
message is given.

A new conversation starts unless --conversation is passed. Widget requests
that need more information (e.g. dietary restrictions) continue across
messages in the same conversation.

Examples:
  jasper chat "Create a 7-day meal plan for a wrestler"
  jasper chat --conversation conversation:abc "I'm allergic to peanuts"
  jasper chat
  jasper chat --server http://localhost:8787`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversationID, "conversation", "c", "", "continue an existing conversation")
}

// sendFunc abstracts local engine vs remote server for one message.
type sendFunc func(ctx context.Context, conversationID, message string) (*models.Result, error)

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var send sendFunc
	if remoteMode() {
		c := getClient()
		send = c.Chat
	} else {
		eng, err := getEngine(ctx)
		if err != nil {
			return err
		}
		send = eng.HandleMessage
	}

	// One-shot mode
	if len(args) == 1 {
		result, err := dispatch(ctx, send, chatConversationID, args[0])
		if err != nil {
			return err
		}
		printResult(os.Stdout, result)
		return nil
	}

	// Piped input is treated as a single message
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		message := strings.TrimSpace(string(data))
		if message == "" {
			return fmt.Errorf("no message given")
		}
		result, err := send(ctx, chatConversationID, message)
		if err != nil {
			return err
		}
		printResult(os.Stdout, result)
		return nil
	}

	return runInteractive(ctx, send)
}

// dispatch sends one message, animating a spinner when attached to a
// terminal.
func dispatch(ctx context.Context, send sendFunc, conversationID, message string) (*models.Result, error) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return send(ctx, conversationID, message)
	}
	return runWithSpinner("thinking", func() (*models.Result, error) {
		return send(ctx, conversationID, message)
	})
}

// runInteractive reads messages line by line until EOF or /quit.
func runInteractive(ctx context.Context, send sendFunc) error {
	theme := defaultTheme
	fmt.Println(theme.statusStyle().Render("Jasper interactive chat.") +
		theme.hintStyle().Render(" Type a message, or /quit to exit."))

	conversationID := chatConversationID
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "/quit" || message == "/exit" {
			return nil
		}

		result, err := dispatch(ctx, send, conversationID, message)
		if err != nil {
			fmt.Println(theme.errorStyle().Render("Error: " + err.Error()))
			continue
		}
		conversationID = result.ConversationID
		printResult(os.Stdout, result)
	}
}

// printResult writes the response plus widget and violation annotations.
func printResult(w io.Writer, result *models.Result) {
	theme := defaultTheme

	fmt.Fprintln(w, result.ResponseText)

	if result.Widget != nil {
		fmt.Fprintln(w, theme.hintStyle().Render(fmt.Sprintf(
			"[widget: %s via %s]", result.Widget.WidgetType, result.Widget.ExtractionMethod)))
	}
	if len(result.Violations) > 0 {
		fmt.Fprintln(w, theme.errorStyle().Render(fmt.Sprintf(
			"Note: accepted with %d unmet requirement(s):", len(result.Violations))))
		for _, v := range result.Violations {
			fmt.Fprintf(w, "  • %s\n", v)
		}
	}
	if verbose {
		fmt.Fprintln(w, theme.hintStyle().Render(fmt.Sprintf(
			"[conversation %s | intent %s | %d attempt(s)]",
			result.ConversationID, result.Intent, result.Attempts)))
	}
}
