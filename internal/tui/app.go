// internal/tui/app.go
//
// This is the live monitor for the behavior system manager.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the latest manager snapshot plus the transition history
// 2. Update: telemetry events, refresh ticks and key presses change the model
// 3. View: renders the model to a string
//
// The manager ticks on its own goroutine; the monitor only reads snapshots and
// calls the manager's locked control methods.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/system"
	"github.com/kingrea/robot-behaviors/internal/telemetry"
)

const (
	refreshInterval = 250 * time.Millisecond
	historyLimit    = 200
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	failureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// Controller is the part of the system manager the monitor drives.
type Controller interface {
	Snapshot() system.State
	Activities() []string
	ActivateActivity(id string) error
	Enabled() bool
	SetEnabled(enabled bool)
}

// Option customizes App construction.
type Option func(*App)

// WithLogger sets the monitor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEvents feeds telemetry events into the transition history.
func WithEvents(events ...<-chan telemetry.Event) Option {
	return func(a *App) {
		for _, ch := range events {
			if ch != nil {
				a.events = append(a.events, ch)
			}
		}
	}
}

type snapshotMsg struct {
	state system.State
}

type eventMsg struct {
	source int
	event  telemetry.Event
}

type eventsClosedMsg struct {
	source int
}

// historyItem implements list.Item for one telemetry event.
type historyItem struct {
	event telemetry.Event
}

func (i historyItem) Title() string {
	e := i.event
	switch e.Kind {
	case telemetry.KindTransition:
		if e.Transition != nil {
			return fmt.Sprintf("%s → %s", e.Transition.OldID, e.Transition.NewID)
		}
	case telemetry.KindResult:
		return fmt.Sprintf("%s %s", e.Behavior, e.Status)
	case telemetry.KindInitFailure:
		return fmt.Sprintf("%s failed to start", e.Behavior)
	case telemetry.KindActivity:
		return fmt.Sprintf("activity %s", e.Activity)
	}
	return string(e.Kind)
}

func (i historyItem) Description() string {
	e := i.event
	desc := fmt.Sprintf("tick %d · %s", e.Tick, e.At.Format("15:04:05.000"))
	if e.Detail != "" {
		desc += " · " + e.Detail
	}
	return desc
}

func (i historyItem) FilterValue() string { return i.Title() }

// App is the monitor model. In bubbletea, this holds ALL the state.
type App struct {
	ctrl   Controller
	logger *zap.Logger
	events []<-chan telemetry.Event
	open   int

	history   list.Model
	state     system.State
	statusMsg string
	err       error

	width  int
	height int
}

// NewApp builds a monitor over ctrl.
func NewApp(ctrl Controller, opts ...Option) (*App, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("tui: controller is required")
	}
	history := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history.Title = "Transitions"
	history.SetShowStatusBar(false)
	history.SetFilteringEnabled(false)

	app := &App{
		ctrl:    ctrl,
		logger:  zap.NewNop(),
		history: history,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.open = len(app.events)
	app.state = ctrl.Snapshot()
	return app, nil
}

// Init starts the refresh loop and the event readers.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.scheduleRefresh()}
	for i := range a.events {
		cmds = append(cmds, a.waitForEvent(i))
	}
	return tea.Batch(cmds...)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.history.SetSize(max(20, msg.Width-6), max(5, msg.Height-14))
		return a, nil

	case snapshotMsg:
		a.state = msg.state
		return a, a.scheduleRefresh()

	case eventMsg:
		a.record(msg.event)
		return a, a.waitForEvent(msg.source)

	case eventsClosedMsg:
		a.open--
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case " ", "p":
			a.togglePaused()
			return a, nil
		case "a":
			a.cycleActivity()
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.history, cmd = a.history.Update(msg)
	return a, cmd
}

// View renders the monitor.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	header := headerStyle.Render("⬡ BEHAVIOR MONITOR")
	status := boxStyle.Width(max(20, width-4)).Render(a.renderStatus())
	history := boxStyle.Width(max(20, width-4)).Render(a.renderHistory())
	footer := hintStyle.Render(a.renderFooter())
	return strings.Join([]string{header, status, history, footer}, "\n")
}

// Recorded returns the number of events in the history.
func (a *App) Recorded() int { return len(a.history.Items()) }

func (a *App) renderStatus() string {
	s := a.state
	lines := []string{titleStyle.Render(fmt.Sprintf("Activity: %s", orNone(s.Activity)))}

	var current string
	switch {
	case !s.Enabled:
		current = disabledStyle.Render("Paused")
	case s.Running():
		current = runningStyle.Render(string(s.Current))
		if s.CurrentClass != "" {
			current += detailStyle.Render(fmt.Sprintf(" (%s)", s.CurrentClass))
		}
		if !s.Since.IsZero() && !s.TakenAt.IsZero() {
			current += detailStyle.Render(" · " + humanizeDuration(s.TakenAt.Sub(s.Since)))
		}
	default:
		current = idleStyle.Render("idle")
	}
	lines = append(lines, "Behavior: "+current)

	helpers := "none"
	if len(s.Helpers) > 0 {
		helpers = strings.Join(s.Helpers, " › ")
		if s.HelperOwner != "" {
			helpers += detailStyle.Render(fmt.Sprintf(" (for %s)", s.HelperOwner))
		}
	}
	lines = append(lines, "Helpers: "+helpers)
	lines = append(lines, detailStyle.Render(fmt.Sprintf("tick %d", s.Tick)))
	if a.err != nil {
		lines = append(lines, failureStyle.Render(fmt.Sprintf("⚠ %v", a.err)))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderHistory() string {
	if len(a.history.Items()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Transitions"),
			idleStyle.Render("No transitions yet."),
		)
	}
	return a.history.View()
}

func (a *App) renderFooter() string {
	hint := "a → next activity    space → pause/resume    q → quit"
	if a.open == 0 && len(a.events) > 0 {
		hint += "    (event stream closed)"
	}
	if a.statusMsg != "" {
		return a.statusMsg + "\n" + hint
	}
	return hint
}

func (a *App) record(event telemetry.Event) {
	items := append([]list.Item{historyItem{event: event}}, a.history.Items()...)
	if len(items) > historyLimit {
		items = items[:historyLimit]
	}
	a.history.SetItems(items)
	if event.Kind == telemetry.KindInitFailure {
		a.statusMsg = failureStyle.Render(fmt.Sprintf("%s failed to start", event.Behavior))
	}
}

func (a *App) togglePaused() {
	enabled := !a.ctrl.Enabled()
	a.ctrl.SetEnabled(enabled)
	a.state = a.ctrl.Snapshot()
	if enabled {
		a.statusMsg = "Behavior selection resumed"
	} else {
		a.statusMsg = "Behavior selection paused"
	}
	a.logger.Info("monitor toggled selection", zap.Bool("enabled", enabled))
}

func (a *App) cycleActivity() {
	ids := a.ctrl.Activities()
	if len(ids) == 0 {
		return
	}
	next := ids[0]
	for i, id := range ids {
		if id == a.state.Activity {
			next = ids[(i+1)%len(ids)]
			break
		}
	}
	if err := a.ctrl.ActivateActivity(next); err != nil {
		a.err = err
		a.logger.Warn("monitor could not change activity", zap.String("activity", next), zap.Error(err))
		return
	}
	a.err = nil
	a.state = a.ctrl.Snapshot()
	a.statusMsg = fmt.Sprintf("Activity set to %s", next)
}

func (a *App) scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return snapshotMsg{state: a.ctrl.Snapshot()}
	})
}

func (a *App) waitForEvent(source int) tea.Cmd {
	ch := a.events[source]
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return eventsClosedMsg{source: source}
		}
		return eventMsg{source: source, event: event}
	}
}

func orNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "none"
	}
	return value
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}
