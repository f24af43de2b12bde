// package ui renders a sync run's event stream as an interactive terminal view.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/perfectritone/spotify-to-tidal-web/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SyncView ViewState = iota
	ResultView
)

// collectionLine is one finished collection's summary row.
type collectionLine struct {
	task   string
	result *tasks.CollectionResult
}

// Model represents the TUI application state. It consumes a sync run's event
// channel one message at a time; the engine blocks between events, so the
// view is always a faithful prefix of the stream.
type Model struct {
	view   ViewState
	events <-chan tasks.Event

	spin spinner.Model
	bar  progress.Model

	currentTask  string
	currentLabel string
	percent      int
	item         string

	finished    []collectionLine
	authService string
	result      *tasks.RunResult

	width  int
	height int
	help   help.Model
	keys   keyMap
}

type keyMap struct {
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.quit}} }

type eventMsg tasks.Event

type streamClosedMsg struct{}

// NewModel creates a TUI model reading from the given event channel.
func NewModel(events <-chan tasks.Event) *Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	return &Model{
		view:   SyncView,
		events: events,
		spin:   spin,
		bar:    progress.New(progress.WithDefaultGradient()),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// waitForEvent blocks on the event channel and converts the next event into a
// bubbletea message.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Init starts the spinner and the event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-8, 50)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		return m.applyEvent(tasks.Event(msg))

	case streamClosedMsg:
		m.view = ResultView
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) applyEvent(ev tasks.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case tasks.EventStart:
		m.currentTask = ev.Task
		m.currentLabel = ev.Label
		m.percent = 0
		m.item = ""

	case tasks.EventProgress:
		m.percent = ev.Percent
		m.item = ev.Item

	case tasks.EventDone:
		m.finished = append(m.finished, collectionLine{task: ev.Task, result: ev.Result})
		m.currentTask = ""

	case tasks.EventError:
		m.finished = append(m.finished, collectionLine{
			task:   ev.Task,
			result: &tasks.CollectionResult{Error: ev.Err},
		})
		m.currentTask = ""

	case tasks.EventAuthExpired:
		m.authService = ev.Service
		m.view = ResultView

	case tasks.EventComplete:
		m.result = ev.Run
		m.view = ResultView
	}

	return m, m.waitForEvent()
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderSync() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Syncing library to Tidal"))
	b.WriteString("\n")
	m.renderFinished(&b)

	if m.currentTask != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spin.View(), m.currentLabel))
		b.WriteString(fmt.Sprintf("  %s %d%%\n", m.bar.ViewAs(float64(m.percent)/100), m.percent))
		if m.item != "" {
			b.WriteString(styles.help.Render("  "+m.item) + "\n")
		}
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Sync finished"))
	b.WriteString("\n")
	m.renderFinished(&b)

	if m.authService != "" {
		b.WriteString(styles.err.Render(fmt.Sprintf("%s session expired, reconnect and run again", m.authService)) + "\n")
	}

	if m.result != nil {
		if report := m.result.NotFoundReport(); len(report) > 0 {
			b.WriteString("\n" + styles.warn.Render(fmt.Sprintf("%d items not found on Tidal:", len(report))) + "\n")
			for _, entry := range report {
				b.WriteString("  " + entry + "\n")
			}
		}
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderFinished(b *strings.Builder) {
	for _, line := range m.finished {
		label := tasks.Label(line.task)
		if line.result.Error != "" {
			b.WriteString(styles.err.Render(fmt.Sprintf("✗ %s: %s", label, line.result.Error)) + "\n")
			continue
		}
		summary := fmt.Sprintf("✓ %s: %d added of %d", label, line.result.Added, line.result.Total)
		if n := len(line.result.NotFound); n > 0 {
			summary += fmt.Sprintf(" (%d not found)", n)
		}
		b.WriteString(styles.ok.Render(summary) + "\n")
	}
}
