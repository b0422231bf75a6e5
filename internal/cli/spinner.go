package cli

import (
	"fmt"
	"os"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/jasperlabs/jasper-go/internal/models"
)

// Theme holds the color scheme for interactive output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// chatResultMsg carries the engine result back into the UI loop.
type chatResultMsg struct {
	result *models.Result
	err    error
}

// spinnerModel shows a spinner while a chat request is in flight.
type spinnerModel struct {
	spinner  spinner.Model
	theme    Theme
	label    string
	resultCh <-chan chatResultMsg
	result   *models.Result
	err      error
	aborted  bool
}

func newSpinnerModel(label string, resultCh <-chan chatResultMsg) spinnerModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return spinnerModel{
		spinner:  sp,
		theme:    defaultTheme,
		label:    label,
		resultCh: resultCh,
	}
}

// Init starts the spinner animation and the result wait.
func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForResult())
}

// Update handles messages and returns the updated model.
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			m.aborted = true
			return m, tea.Quit
		}

	case chatResultMsg:
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the in-flight line; it is cleared once the program quits.
func (m spinnerModel) View() tea.View {
	if m.result != nil || m.err != nil || m.aborted {
		return tea.NewView("")
	}
	line := fmt.Sprintf("%s %s %s",
		m.spinner.View(),
		m.theme.statusStyle().Render(m.label),
		m.theme.hintStyle().Render("(Ctrl+C to abort)"))
	return tea.NewView(line)
}

func (m spinnerModel) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-m.resultCh
	}
}

// runWithSpinner executes fn while animating a spinner on stderr. In
// non-interactive contexts callers should invoke fn directly instead.
func runWithSpinner(label string, fn func() (*models.Result, error)) (*models.Result, error) {
	resultCh := make(chan chatResultMsg, 1)
	go func() {
		result, err := fn()
		resultCh <- chatResultMsg{result: result, err: err}
	}()

	p := tea.NewProgram(newSpinnerModel(label, resultCh), tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(spinnerModel)
	if !ok {
		return nil, fmt.Errorf("unexpected UI model type")
	}
	if m.aborted {
		return nil, fmt.Errorf("aborted")
	}
	return m.result, m.err
}
