package system

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/robot-behaviors/internal/activity"
	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/chooser"
	"github.com/kingrea/robot-behaviors/internal/helper"
	"github.com/kingrea/robot-behaviors/internal/telemetry"
)

type recorder struct {
	calls  []string
	active int
	max    int
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) index(call string) int {
	for i, c := range r.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeBehavior struct {
	id       behavior.ID
	rec      *recorder
	runnable bool
	initErr  error
	status   behavior.Status
	onInit   func(ctx *behavior.Context)
	running  bool
}

func newFake(rec *recorder, id string) *fakeBehavior {
	return &fakeBehavior{id: behavior.ID(id), rec: rec, runnable: true}
}

func (b *fakeBehavior) ID() behavior.ID                   { return b.id }
func (b *fakeBehavior) Class() behavior.Class             { return "Fake" }
func (b *fakeBehavior) Groups() []string                  { return nil }
func (b *fakeBehavior) IsRunnable(*behavior.Context) bool { return b.runnable }
func (b *fakeBehavior) Score(*behavior.Context) float64   { return 1 }

func (b *fakeBehavior) Init(ctx *behavior.Context) error {
	b.rec.add("%s.init", b.id)
	if b.initErr != nil {
		return b.initErr
	}
	b.running = true
	b.rec.active++
	if b.rec.active > b.rec.max {
		b.rec.max = b.rec.active
	}
	if b.onInit != nil {
		b.onInit(ctx)
	}
	return nil
}

func (b *fakeBehavior) Update(*behavior.Context) behavior.Status {
	b.rec.add("%s.update", b.id)
	return b.status
}

func (b *fakeBehavior) Stop(*behavior.Context) {
	b.rec.add("%s.stop", b.id)
	if b.running {
		b.running = false
		b.rec.active--
	}
}

type scriptedActivity struct {
	id      string
	rec     *recorder
	desired func(tick uint64, current behavior.Behavior) behavior.Behavior
}

func (a *scriptedActivity) ID() string { return a.id }

func (a *scriptedActivity) OnEnter(*behavior.Context) {
	if a.rec != nil {
		a.rec.add("%s.enter", a.id)
	}
}

func (a *scriptedActivity) OnExit(*behavior.Context) {
	if a.rec != nil {
		a.rec.add("%s.exit", a.id)
	}
}

func (a *scriptedActivity) DesiredBehavior(ctx *behavior.Context, current behavior.Behavior) behavior.Behavior {
	if a.desired == nil {
		return behavior.None
	}
	return a.desired(ctx.Tick, current)
}

func fixedClock() func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(100 * time.Millisecond)
		return now
	}
}

func collect(events *[]telemetry.Event) telemetry.Sink {
	return telemetry.SinkFunc(func(e telemetry.Event) { *events = append(*events, e) })
}

func transitions(events []telemetry.Event) []string {
	var out []string
	for _, e := range events {
		if e.Kind == telemetry.KindTransition {
			out = append(out, fmt.Sprintf("%s->%s", e.Transition.OldID, e.Transition.NewID))
		}
	}
	return out
}

func tickN(t *testing.T, m *Manager, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := m.Update(context.Background()); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
}

func TestManagerStopsOldBeforeInitNew(t *testing.T) {
	rec := &recorder{}
	a, b := newFake(rec, "A"), newFake(rec, "B")
	act := &scriptedActivity{id: "freeplay", desired: func(tick uint64, _ behavior.Behavior) behavior.Behavior {
		if tick == 1 {
			return a
		}
		return b
	}}
	var events []telemetry.Event
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()), WithSink(collect(&events)))
	require.NoError(t, err)

	tickN(t, m, 2)

	stop, initB := rec.index("A.stop"), rec.index("B.init")
	if stop < 0 || initB < 0 || stop > initB {
		t.Fatalf("expected A.stop before B.init, got %v", rec.calls)
	}
	require.Equal(t, behavior.ID("B"), m.Current().ID())
	if diff := cmp.Diff([]string{"NoneBehavior->A", "A->B"}, transitions(events)); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestManagerInitFailureLeavesIdle(t *testing.T) {
	rec := &recorder{}
	a, b := newFake(rec, "A"), newFake(rec, "B")
	b.initErr = errors.New("no cube")
	act := &scriptedActivity{id: "freeplay", desired: func(tick uint64, _ behavior.Behavior) behavior.Behavior {
		if tick == 1 {
			return a
		}
		return b
	}}
	var events []telemetry.Event
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()), WithSink(collect(&events)))
	require.NoError(t, err)

	tickN(t, m, 2)

	require.True(t, behavior.IsNone(m.Current()))
	require.Zero(t, rec.count("B.update"))
	require.Equal(t, 1, rec.count("A.stop"))
	require.Equal(t, []string{"NoneBehavior->A", "A->NoneBehavior"}, transitions(events))

	var initFailures int
	for _, e := range events {
		if e.Kind == telemetry.KindInitFailure {
			initFailures++
			require.Equal(t, behavior.ID("B"), e.Behavior)
		}
	}
	require.Equal(t, 1, initFailures)
}

func TestManagerCompleteSwitchesToNone(t *testing.T) {
	rec := &recorder{}
	a := newFake(rec, "A")
	a.status = behavior.StatusComplete
	picks := 0
	act := &scriptedActivity{id: "freeplay", desired: func(uint64, behavior.Behavior) behavior.Behavior {
		picks++
		if picks == 1 {
			return a
		}
		return behavior.None
	}}
	var events []telemetry.Event
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()), WithSink(collect(&events)))
	require.NoError(t, err)

	tickN(t, m, 1)
	require.True(t, behavior.IsNone(m.Current()))
	require.Equal(t, []string{"A.init", "A.update", "A.stop"}, rec.calls)

	tickN(t, m, 2)
	require.Equal(t, 1, rec.count("A.init"))

	var results []behavior.Status
	for _, e := range events {
		if e.Kind == telemetry.KindResult {
			results = append(results, e.Status)
		}
	}
	require.Equal(t, []behavior.Status{behavior.StatusComplete}, results)
}

func TestManagerFailureDoesNotStickOnSameBehavior(t *testing.T) {
	rec := &recorder{}
	a := newFake(rec, "A")
	a.status = behavior.StatusFailure
	act := &scriptedActivity{id: "freeplay", desired: func(uint64, behavior.Behavior) behavior.Behavior { return a }}
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()))
	require.NoError(t, err)

	tickN(t, m, 3)

	require.Equal(t, 3, rec.count("A.init"))
	require.Equal(t, 3, rec.count("A.stop"))
	require.True(t, behavior.IsNone(m.Current()))
}

func TestManagerNeverRunsTwoBehaviors(t *testing.T) {
	rec := &recorder{}
	pool := []*fakeBehavior{newFake(rec, "A"), newFake(rec, "B"), newFake(rec, "C")}
	pool[1].status = behavior.StatusComplete
	pool[2].initErr = errors.New("broken")
	act := &scriptedActivity{id: "freeplay", desired: func(tick uint64, _ behavior.Behavior) behavior.Behavior {
		switch tick % 5 {
		case 0:
			return behavior.None
		default:
			return pool[int(tick*7)%len(pool)]
		}
	}}
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		tickN(t, m, 1)
		if rec.active > 1 {
			t.Fatalf("tick %d: %d behaviors active", i+1, rec.active)
		}
		cur := m.Current()
		for _, b := range pool {
			if b.running && b.ID() != behavior.IDOf(cur) {
				t.Fatalf("tick %d: %s running but current is %s", i+1, b.ID(), behavior.IDOf(cur))
			}
		}
	}
	require.LessOrEqual(t, rec.max, 1)
}

func TestManagerInitsUnrunnableBehaviorAnyway(t *testing.T) {
	rec := &recorder{}
	a := newFake(rec, "A")
	a.runnable = false
	act := &scriptedActivity{id: "freeplay", desired: func(uint64, behavior.Behavior) behavior.Behavior { return a }}
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()))
	require.NoError(t, err)

	tickN(t, m, 1)
	require.Equal(t, behavior.ID("A"), m.Current().ID())
}

func TestManagerClearsHelpersLeftByStoppedBehavior(t *testing.T) {
	rec := &recorder{}
	leaky := newFake(rec, "Leaky")
	leaky.onInit = func(ctx *behavior.Context) {
		_, err := ctx.Helpers.Delegate(ctx.HelperEnv(), "Leaky", &foreverHelper{rec: rec}, nil, nil)
		require.NoError(t, err)
	}
	act := &scriptedActivity{id: "freeplay", desired: func(tick uint64, _ behavior.Behavior) behavior.Behavior {
		if tick == 1 {
			return leaky
		}
		return behavior.None
	}}
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()))
	require.NoError(t, err)

	tickN(t, m, 1)
	require.Equal(t, 1, m.Helpers().Depth())
	tickN(t, m, 1)
	require.Zero(t, m.Helpers().Depth())
	require.Equal(t, 1, rec.count("forever.stop"))
}

type foreverHelper struct{ rec *recorder }

func (h *foreverHelper) Name() string                       { return "forever" }
func (h *foreverHelper) Init(*helper.Context) helper.Status { return helper.StatusRunning }
func (h *foreverHelper) UpdateWhileActive(*helper.Context) helper.Status {
	return helper.StatusRunning
}
func (h *foreverHelper) ShouldCancelDelegates(*helper.Context) bool { return false }
func (h *foreverHelper) Stop(*helper.Context, bool)                 { h.rec.add("forever.stop") }

func TestManagerSetEnabled(t *testing.T) {
	rec := &recorder{}
	a := newFake(rec, "A")
	act := &scriptedActivity{id: "freeplay", desired: func(uint64, behavior.Behavior) behavior.Behavior { return a }}
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()))
	require.NoError(t, err)

	tickN(t, m, 1)
	m.SetEnabled(false)
	require.False(t, m.Enabled())
	require.True(t, behavior.IsNone(m.Current()))
	require.Equal(t, 1, rec.count("A.stop"))

	tickN(t, m, 3)
	require.Equal(t, 1, rec.count("A.init"))

	m.SetEnabled(true)
	tickN(t, m, 1)
	require.Equal(t, 2, rec.count("A.init"))
}

func TestManagerActivateActivity(t *testing.T) {
	rec := &recorder{}
	a := newFake(rec, "A")
	freeplay := &scriptedActivity{id: "freeplay", rec: rec, desired: func(uint64, behavior.Behavior) behavior.Behavior { return a }}
	quiet := &scriptedActivity{id: "quiet", rec: rec}
	m, err := New([]activity.Activity{freeplay, quiet}, WithClock(fixedClock()))
	require.NoError(t, err)
	require.Equal(t, "freeplay", m.ActiveActivity())

	tickN(t, m, 1)
	require.NoError(t, m.ActivateActivity("quiet"))
	require.Equal(t, "quiet", m.ActiveActivity())
	require.True(t, behavior.IsNone(m.Current()))

	stop, exit, enter := rec.index("A.stop"), rec.index("freeplay.exit"), rec.index("quiet.enter")
	if !(stop < exit && exit < enter) {
		t.Fatalf("unexpected activation order: %v", rec.calls)
	}

	err = m.ActivateActivity("missing")
	require.ErrorIs(t, err, ErrUnknownActivity)
	require.NoError(t, m.ActivateActivity("quiet"))
	require.Equal(t, 1, rec.count("quiet.enter"))
}

func TestManagerRejectsDuplicateActivities(t *testing.T) {
	a := &scriptedActivity{id: "freeplay"}
	b := &scriptedActivity{id: "freeplay"}
	_, err := New([]activity.Activity{a, b})
	require.Error(t, err)
	_, err = New(nil)
	require.Error(t, err)
}

func TestManagerUpdateHonoursContext(t *testing.T) {
	act := &scriptedActivity{id: "freeplay"}
	m, err := New([]activity.Activity{act})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Update(ctx), context.Canceled)
	require.Zero(t, m.Tick())
}

func TestManagerExecuteBehavior(t *testing.T) {
	rec := &recorder{}
	a := newFake(rec, "A")
	a.status = behavior.StatusComplete
	container := behavior.NewContainer()
	require.NoError(t, container.TryAdd(a))
	sel, err := activity.NewChooserActivity("selection", chooser.NewSelection("selection", container, nil))
	require.NoError(t, err)
	idle := &scriptedActivity{id: "idle"}
	m, err := New([]activity.Activity{idle, sel}, WithClock(fixedClock()))
	require.NoError(t, err)

	require.NoError(t, m.ExecuteBehavior("A", 2))
	require.Equal(t, "selection", m.ActiveActivity())
	tickN(t, m, 5)
	require.Equal(t, 2, rec.count("A.init"))
	require.Error(t, m.ExecuteBehavior("missing", 1))
}

func TestManagerExecuteBehaviorWithoutSelection(t *testing.T) {
	m, err := New([]activity.Activity{&scriptedActivity{id: "idle"}})
	require.NoError(t, err)
	require.ErrorIs(t, m.ExecuteBehavior("A", 1), ErrNoSelectionActivity)
}

func TestManagerActiveForGrowsWhileRunning(t *testing.T) {
	rec := &recorder{}
	a := newFake(rec, "A")
	var seen []time.Duration
	act := &scriptedActivity{id: "freeplay"}
	m, err := New([]activity.Activity{act}, WithClock(fixedClock()))
	require.NoError(t, err)
	act.desired = func(uint64, behavior.Behavior) behavior.Behavior { return a }
	tickN(t, m, 1)
	act.desired = nil
	m.activities["freeplay"] = &probeActivity{scriptedActivity: act, b: a, seen: &seen}
	m.active = m.activities["freeplay"]
	tickN(t, m, 2)
	require.Len(t, seen, 2)
	require.Greater(t, seen[1], seen[0])
}

type probeActivity struct {
	*scriptedActivity
	b    behavior.Behavior
	seen *[]time.Duration
}

func (p *probeActivity) DesiredBehavior(ctx *behavior.Context, _ behavior.Behavior) behavior.Behavior {
	*p.seen = append(*p.seen, ctx.ActiveFor)
	return p.b
}
