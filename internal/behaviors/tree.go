package behaviors

import (
	"fmt"
	"strings"

	bt "github.com/joeycumines/go-behaviortree"
	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/helper"
	"github.com/kingrea/robot-behaviors/internal/world"
)

// ClassTree runs actions composed as a behavior tree.
const ClassTree behavior.Class = "Tree"

// Tree composition modes.
const (
	ModeSequence = "sequence"
	ModeSelector = "selector"
)

// Tree builds a go-behaviortree root over action leaves on every activation
// and hands it to the helper component as a single tree helper.
type Tree struct {
	behavior.Base
	mode    string
	leaves  []action.Request
	factory *helper.Factory

	running []*actionLeaf
	status  behavior.Status
}

// NewTree builds a Tree. Params: mode (sequence|selector), steps of
// {action, object, upright, trigger}.
func NewTree(def behavior.Definition) (behavior.Behavior, error) {
	base, err := behavior.NewBase(def)
	if err != nil {
		return nil, err
	}
	mode := strings.ToLower(def.Params.String("mode", ModeSequence))
	if mode != ModeSequence && mode != ModeSelector {
		return nil, fmt.Errorf("behaviors: %s: unknown tree mode %q", def.ID, mode)
	}
	raw, err := def.Params.Maps("steps")
	if err != nil {
		return nil, fmt.Errorf("behaviors: %s: %w", def.ID, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("behaviors: %s: at least one step is required", def.ID)
	}
	leaves := make([]action.Request, 0, len(raw))
	for i, m := range raw {
		p := behavior.Params(m)
		req := action.Request{
			Type:    action.Type(p.String("action", "")),
			Object:  world.ObjectID(p.Int("object", 0)),
			Upright: p.Bool("upright", false),
			Trigger: p.String("trigger", ""),
		}
		if req.Type == "" {
			return nil, fmt.Errorf("behaviors: %s: step %d: action is required", def.ID, i)
		}
		leaves = append(leaves, req)
	}
	return &Tree{
		Base:    base,
		mode:    mode,
		leaves:  leaves,
		factory: helper.NewFactory(string(def.ID)),
	}, nil
}

// Init implements behavior.Behavior.
func (t *Tree) Init(ctx *behavior.Context) error {
	if ctx.Actions == nil {
		return fmt.Errorf("behaviors: %s: no action runner", t.ID())
	}
	t.running = make([]*actionLeaf, 0, len(t.leaves))
	children := make([]bt.Node, 0, len(t.leaves))
	for _, req := range t.leaves {
		leaf := &actionLeaf{runner: ctx.Actions, req: req}
		t.running = append(t.running, leaf)
		children = append(children, bt.New(leaf.tick))
	}
	tick := bt.Sequence
	if t.mode == ModeSelector {
		tick = bt.Selector
	}
	root := bt.New(tick, children...)

	t.Activate(ctx)
	t.status = behavior.StatusRunning
	err := t.Delegate(ctx, t.factory.Tree(t.mode, root),
		func() { t.status = behavior.StatusComplete },
		func() { t.status = behavior.StatusFailure },
	)
	if err != nil {
		t.Deactivate(ctx)
		return fmt.Errorf("behaviors: %s: %w", t.ID(), err)
	}
	return nil
}

// Update implements behavior.Behavior.
func (t *Tree) Update(*behavior.Context) behavior.Status {
	return t.status
}

// Stop implements behavior.Behavior.
func (t *Tree) Stop(ctx *behavior.Context) {
	if !t.Deactivate(ctx) {
		return
	}
	for _, leaf := range t.running {
		leaf.cancel()
	}
	t.running = nil
	ctx.Log().Debug("tree stopped", zap.String("behavior", string(t.ID())))
}

// actionLeaf is a tree leaf that starts its action on the first tick and
// reports Running until the result arrives.
type actionLeaf struct {
	runner  action.Runner
	req     action.Request
	started bool
	tag     action.Tag
	result  *action.Result
}

func (l *actionLeaf) tick([]bt.Node) (bt.Status, error) {
	if l.result != nil {
		if *l.result == action.ResultSuccess {
			return bt.Success, nil
		}
		return bt.Failure, nil
	}
	if !l.started {
		l.started = true
		tag, err := l.runner.Start(l.req, func(_ action.Tag, res action.Result) {
			l.result = &res
		})
		if err != nil {
			failed := action.ResultFailure
			l.result = &failed
			return bt.Failure, nil
		}
		l.tag = tag
		if l.result != nil {
			return l.tick(nil)
		}
	}
	return bt.Running, nil
}

func (l *actionLeaf) cancel() {
	if l.started && l.result == nil {
		l.runner.Cancel(l.tag)
	}
}
