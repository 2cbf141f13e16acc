package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/system"
	"github.com/kingrea/robot-behaviors/internal/telemetry"
)

type fakeController struct {
	activities []string
	active     string
	enabled    bool
	failOn     string
	current    behavior.ID
}

func newFakeController() *fakeController {
	return &fakeController{
		activities: []string{"freeplay", "selection"},
		active:     "freeplay",
		enabled:    true,
		current:    "FetchCube",
	}
}

func (f *fakeController) Snapshot() system.State {
	return system.State{
		Tick:         7,
		Enabled:      f.enabled,
		Activity:     f.active,
		Current:      f.current,
		CurrentClass: "HelperSequence",
		Helpers:      []string{"pickup"},
		HelperOwner:  string(f.current),
	}
}

func (f *fakeController) Activities() []string { return f.activities }

func (f *fakeController) ActivateActivity(id string) error {
	if id == f.failOn {
		return errors.New("boom")
	}
	f.active = id
	return nil
}

func (f *fakeController) Enabled() bool { return f.enabled }

func (f *fakeController) SetEnabled(enabled bool) { f.enabled = enabled }

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestNewAppRequiresController(t *testing.T) {
	if _, err := NewApp(nil); err == nil {
		t.Fatalf("expected error for nil controller")
	}
}

func TestActivityKeyCyclesActivities(t *testing.T) {
	ctrl := newFakeController()
	app, err := NewApp(ctrl)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	app.Update(keyRune('a'))
	if ctrl.active != "selection" {
		t.Fatalf("expected selection, got %s", ctrl.active)
	}
	app.Update(keyRune('a'))
	if ctrl.active != "freeplay" {
		t.Fatalf("expected wrap to freeplay, got %s", ctrl.active)
	}

	ctrl.failOn = "selection"
	app.Update(keyRune('a'))
	if app.err == nil {
		t.Fatalf("expected activation error to be kept")
	}
	if !strings.Contains(app.View(), "boom") {
		t.Fatalf("expected error in view")
	}
}

func TestSpaceTogglesSelection(t *testing.T) {
	ctrl := newFakeController()
	app, _ := NewApp(ctrl)

	app.Update(tea.KeyMsg{Type: tea.KeySpace})
	if ctrl.enabled {
		t.Fatalf("expected selection paused")
	}
	if !strings.Contains(app.View(), "Paused") {
		t.Fatalf("expected paused indicator in view")
	}
	app.Update(keyRune('p'))
	if !ctrl.enabled {
		t.Fatalf("expected selection resumed")
	}
}

func TestQuitKey(t *testing.T) {
	app, _ := NewApp(newFakeController())
	_, cmd := app.Update(keyRune('q'))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestEventsAreRecordedNewestFirst(t *testing.T) {
	ch := make(chan telemetry.Event, 2)
	app, _ := NewApp(newFakeController(), WithEvents(ch))

	first := telemetry.NewEvent(telemetry.KindTransition, 1, time.Now())
	first.Transition = &telemetry.Transition{OldID: behavior.NoneID, NewID: "FetchCube"}
	second := telemetry.NewEvent(telemetry.KindResult, 4, time.Now())
	second.Behavior = "FetchCube"
	second.Status = behavior.StatusComplete

	_, cmd := app.Update(eventMsg{source: 0, event: first})
	if cmd == nil {
		t.Fatalf("expected the reader to be re-armed")
	}
	app.Update(eventMsg{source: 0, event: second})
	if app.Recorded() != 2 {
		t.Fatalf("expected 2 recorded events, got %d", app.Recorded())
	}
	top := app.history.Items()[0].(historyItem)
	if !strings.Contains(top.Title(), "FetchCube") || top.event.Kind != telemetry.KindResult {
		t.Fatalf("expected newest event first, got %q", top.Title())
	}
}

func TestWaitForEventReportsClosedStream(t *testing.T) {
	ch := make(chan telemetry.Event)
	close(ch)
	app, _ := NewApp(newFakeController(), WithEvents(ch))

	msg := app.waitForEvent(0)()
	if _, ok := msg.(eventsClosedMsg); !ok {
		t.Fatalf("expected eventsClosedMsg, got %T", msg)
	}
	app.Update(msg)
	if !strings.Contains(app.View(), "event stream closed") {
		t.Fatalf("expected closed stream hint")
	}
}

func TestViewShowsSnapshot(t *testing.T) {
	app, _ := NewApp(newFakeController())
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	view := app.View()
	for _, want := range []string{"BEHAVIOR MONITOR", "freeplay", "FetchCube", "pickup", "No transitions yet."} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestHumanizeDuration(t *testing.T) {
	cases := map[time.Duration]string{
		1500 * time.Millisecond: "1.5s",
		3 * time.Minute:         "3m",
		2 * time.Hour:           "2h",
	}
	for in, want := range cases {
		if got := humanizeDuration(in); got != want {
			t.Fatalf("humanizeDuration(%v) = %s, want %s", in, got, want)
		}
	}
}
