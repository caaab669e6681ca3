// Package tui provides the interactive terminal UI: a browser over
// saved runs and a live nine-step progress monitor fed by the broker's
// broadcast channels.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driving"
)

// view identifies the active screen.
type view int

const (
	viewRuns view = iota
	viewProgress
)

// Messages delivered into the Elm loop.
type (
	// runsLoadedMsg carries the refreshed run list.
	runsLoadedMsg []domain.Run

	// progressMsg is one pipeline progress event.
	progressMsg domain.ProgressEvent

	// brokerErrMsg is an error broadcast from the broker.
	brokerErrMsg string

	// errMsg is a local command failure.
	errMsg struct{ err error }
)

// App is the TUI application following the Elm architecture.
type App struct {
	dispatcher  driving.Dispatcher
	progressSub driving.Subscription
	errorSub    driving.Subscription

	ctx    context.Context
	styles *Styles
	spin   spinner.Model

	currentView view
	runs        []domain.Run
	cursor      int
	selected    *domain.Run

	// steps tracks the latest status per pipeline step while a run is
	// in flight.
	steps   map[domain.Step]domain.Status
	running bool

	lastErr string
	width   int
	height  int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates the TUI over a dispatcher and broker. The caller owns
// the broker subscriptions' lifetime via Close.
func NewApp(dispatcher driving.Dispatcher, broker driving.Broker) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &App{
		dispatcher:  dispatcher,
		progressSub: broker.Subscribe(domain.ChannelClusterProgress),
		errorSub:    broker.Subscribe(domain.ChannelError),
		ctx:         context.Background(),
		styles:      DefaultStyles(),
		spin:        sp,
		currentView: viewRuns,
		steps:       make(map[domain.Step]domain.Status),
	}
}

// Close cancels the broker subscriptions.
func (a *App) Close() {
	a.progressSub.Cancel()
	a.errorSub.Cancel()
}

// Init starts the spinner, the first run-list load, and the broadcast
// listeners.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.spin.Tick,
		a.loadRuns(),
		waitForProgress(a.progressSub),
		waitForError(a.errorSub),
	)
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case runsLoadedMsg:
		a.runs = msg
		if a.cursor >= len(a.runs) {
			a.cursor = max(0, len(a.runs)-1)
		}
		return a, nil

	case progressMsg:
		return a.handleProgress(domain.ProgressEvent(msg))

	case brokerErrMsg:
		a.lastErr = string(msg)
		a.running = false
		return a, waitForError(a.errorSub)

	case errMsg:
		a.lastErr = msg.err.Error()
		return a, nil
	}

	return a, nil
}

// handleKey handles keyboard input.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}

	case "down", "j":
		if a.cursor < len(a.runs)-1 {
			a.cursor++
		}

	case "enter":
		if a.currentView == viewRuns && a.cursor < len(a.runs) {
			run := a.runs[a.cursor]
			a.selected = &run
			return a, a.selectRun(run.ID)
		}

	case "d":
		if a.currentView == viewRuns && a.cursor < len(a.runs) {
			return a, a.deleteRun(a.runs[a.cursor].ID)
		}

	case "r":
		return a, a.loadRuns()

	case "tab":
		if a.currentView == viewRuns {
			a.currentView = viewProgress
		} else {
			a.currentView = viewRuns
		}
	}
	return a, nil
}

// handleProgress applies one progress event and re-arms the listener.
func (a *App) handleProgress(ev domain.ProgressEvent) (tea.Model, tea.Cmd) {
	a.steps[ev.Step] = ev.Status
	a.running = true
	a.currentView = viewProgress
	a.lastErr = ""

	cmds := []tea.Cmd{waitForProgress(a.progressSub)}

	switch {
	case ev.Step == domain.StepSave && ev.Status == domain.StatusComplete:
		// Terminal success: the run list now includes the new run.
		a.running = false
		a.currentView = viewRuns
		cmds = append(cmds, a.loadRuns())

	case ev.Status == domain.StatusError:
		a.running = false
	}

	return a, tea.Batch(cmds...)
}

// View renders the active screen.
func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("psycluster"))
	b.WriteString("\n\n")

	switch a.currentView {
	case viewProgress:
		b.WriteString(a.renderProgress())
	default:
		b.WriteString(a.renderRuns())
	}

	if a.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(a.styles.Error.Render("error: " + a.lastErr))
	}

	b.WriteString("\n")
	b.WriteString(a.styles.Muted.Render("↑/↓ navigate · enter select · d delete · r refresh · tab view · q quit"))
	return b.String()
}

// renderRuns renders the saved-run browser.
func (a *App) renderRuns() string {
	if len(a.runs) == 0 {
		return a.styles.Muted.Render("No runs yet.")
	}

	var b strings.Builder
	for i, run := range a.runs {
		line := fmt.Sprintf("%s  %s  %s",
			run.CreatedAt.Format("2006-01-02 15:04"), run.Name, run.FilePath)
		if i == a.cursor {
			b.WriteString(a.styles.Selected.Render("> " + line))
		} else {
			b.WriteString(a.styles.Normal.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return a.styles.Box.Render(strings.TrimRight(b.String(), "\n"))
}

// renderProgress renders the nine pipeline steps with their current
// status.
func (a *App) renderProgress() string {
	var b strings.Builder
	for _, step := range domain.Steps() {
		var marker, label string
		switch a.steps[step] {
		case domain.StatusComplete:
			marker = a.styles.Success.Render("✓")
			label = a.styles.Normal.Render(string(step))
		case domain.StatusStart:
			marker = a.spin.View()
			label = a.styles.Normal.Render(string(step))
		case domain.StatusError:
			marker = a.styles.Error.Render("✗")
			label = a.styles.Error.Render(string(step))
		default:
			marker = a.styles.Muted.Render("·")
			label = a.styles.Muted.Render(string(step))
		}
		b.WriteString(fmt.Sprintf("%s %s\n", marker, label))
	}

	if !a.running && len(a.steps) == 0 {
		return a.styles.Muted.Render("No run in progress.")
	}
	return a.styles.Box.Render(strings.TrimRight(b.String(), "\n"))
}

// loadRuns fetches the run list.
func (a *App) loadRuns() tea.Cmd {
	return func() tea.Msg {
		msg, err := a.dispatcher.GetRuns(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return runsLoadedMsg(msg.Runs)
	}
}

// selectRun makes a run current.
func (a *App) selectRun(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		if err := a.dispatcher.SetRunID(a.ctx, id); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// deleteRun removes a run and refreshes the list.
func (a *App) deleteRun(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		if err := a.dispatcher.DeleteRun(a.ctx, id); err != nil {
			return errMsg{err}
		}
		msg, err := a.dispatcher.GetRuns(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return runsLoadedMsg(msg.Runs)
	}
}

// waitForProgress blocks for the next progress broadcast.
func waitForProgress(sub driving.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.Events()
		if !ok {
			return nil
		}
		if progress, ok := ev.Payload.(domain.ProgressEvent); ok {
			return progressMsg(progress)
		}
		return nil
	}
}

// waitForError blocks for the next error broadcast.
func waitForError(sub driving.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.Events()
		if !ok {
			return nil
		}
		if e, ok := ev.Payload.(domain.ErrorMessage); ok {
			return brokerErrMsg(e.Error)
		}
		return nil
	}
}
