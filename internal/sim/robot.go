// Package sim provides a deterministic, tick-driven stand-in for the robot:
// it answers world queries and executes actions by completing them after a
// configured number of steps.
package sim

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/world"
)

const defaultDuration = 2

type job struct {
	tag       action.Tag
	req       action.Request
	remaining int
	done      action.Callback
}

// Option customizes a Robot.
type Option func(*Robot)

// WithLogger sets the robot logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Robot) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDuration sets how many steps actions of type t take. Zero completes on
// the next step.
func WithDuration(t action.Type, steps int) Option {
	return func(r *Robot) { r.durations[t] = steps }
}

// WithDefaultDuration sets the duration for action types without an override.
func WithDefaultDuration(steps int) Option {
	return func(r *Robot) { r.defaultDuration = steps }
}

// Robot implements world.State and action.Runner.
type Robot struct {
	logger *zap.Logger

	origin    world.OriginID
	connected bool
	carried   world.ObjectID
	objects   map[world.ObjectID]world.Object
	hidden    map[world.ObjectID]world.Object

	nextTag         action.Tag
	jobs            map[action.Tag]*job
	durations       map[action.Type]int
	defaultDuration int
	scripted        map[action.Type][]action.Result
	startErr        map[action.Type]error

	started   []action.Request
	cancelled []action.Tag
	steps     uint64
}

// New returns a connected robot with no known objects.
func New(opts ...Option) *Robot {
	r := &Robot{
		logger:          zap.NewNop(),
		origin:          1,
		connected:       true,
		objects:         map[world.ObjectID]world.Object{},
		hidden:          map[world.ObjectID]world.Object{},
		jobs:            map[action.Tag]*job{},
		durations:       map[action.Type]int{},
		defaultDuration: defaultDuration,
		scripted:        map[action.Type][]action.Result{},
		startErr:        map[action.Type]error{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Origin implements world.State.
func (r *Robot) Origin() world.OriginID { return r.origin }

// Object implements world.State.
func (r *Robot) Object(id world.ObjectID) (world.Object, bool) {
	obj, ok := r.objects[id]
	return obj, ok
}

// IsIdle implements world.State. The robot is idle when no action runs.
func (r *Robot) IsIdle() bool { return len(r.jobs) == 0 }

// IsCubeConnected implements world.State.
func (r *Robot) IsCubeConnected() bool { return r.connected }

// CarriedObject implements world.State.
func (r *Robot) CarriedObject() world.ObjectID { return r.carried }

// AddObject makes obj known to the world.
func (r *Robot) AddObject(obj world.Object) {
	obj.Carried = obj.ID == r.carried
	r.objects[obj.ID] = obj
	delete(r.hidden, obj.ID)
}

// HideObject places obj in the world without the robot knowing about it. A
// successful search reveals it.
func (r *Robot) HideObject(obj world.Object) {
	delete(r.objects, obj.ID)
	r.hidden[obj.ID] = obj
}

// RemoveObject forgets id.
func (r *Robot) RemoveObject(id world.ObjectID) {
	delete(r.objects, id)
	delete(r.hidden, id)
	if r.carried == id {
		r.carried = world.InvalidObject
	}
}

// MoveObject bumps the pose revision of id, as if it had been seen elsewhere.
func (r *Robot) MoveObject(id world.ObjectID) bool {
	obj, ok := r.objects[id]
	if !ok {
		return false
	}
	obj.PoseRevision++
	r.objects[id] = obj
	return true
}

// SetUpright flips the upright flag of id.
func (r *Robot) SetUpright(id world.ObjectID, upright bool) bool {
	obj, ok := r.objects[id]
	if !ok {
		return false
	}
	obj.Upright = upright
	r.objects[id] = obj
	return true
}

// Relocalize moves the robot to a new world origin.
func (r *Robot) Relocalize() world.OriginID {
	r.origin++
	r.logger.Debug("robot relocalized", zap.Uint32("origin", uint32(r.origin)))
	return r.origin
}

// SetCubeConnected toggles the cube connection.
func (r *Robot) SetCubeConnected(connected bool) { r.connected = connected }

// Script queues results for the next actions of type t. Unscripted actions
// succeed.
func (r *Robot) Script(t action.Type, results ...action.Result) {
	r.scripted[t] = append(r.scripted[t], results...)
}

// FailStart makes every Start of type t return err. A nil err clears it.
func (r *Robot) FailStart(t action.Type, err error) {
	if err == nil {
		delete(r.startErr, t)
		return
	}
	r.startErr[t] = err
}

// Start implements action.Runner.
func (r *Robot) Start(req action.Request, done action.Callback) (action.Tag, error) {
	if err := r.startErr[req.Type]; err != nil {
		return 0, fmt.Errorf("sim: start %s: %w", req.Type, err)
	}
	if req.Type == "" {
		return 0, fmt.Errorf("sim: action type is required")
	}
	r.nextTag++
	steps, ok := r.durations[req.Type]
	if !ok {
		steps = r.defaultDuration
	}
	if steps < 1 {
		steps = 1
	}
	r.jobs[r.nextTag] = &job{tag: r.nextTag, req: req, remaining: steps, done: done}
	r.started = append(r.started, req)
	r.logger.Debug("action started", zap.Uint32("tag", uint32(r.nextTag)), zap.Stringer("request", req))
	return r.nextTag, nil
}

// Cancel implements action.Runner. The callback fires with ResultCancelled.
func (r *Robot) Cancel(tag action.Tag) {
	j, ok := r.jobs[tag]
	if !ok {
		return
	}
	delete(r.jobs, tag)
	r.cancelled = append(r.cancelled, tag)
	if j.done != nil {
		j.done(tag, action.ResultCancelled)
	}
}

// Step advances one tick, completing due actions in start order.
func (r *Robot) Step() {
	r.steps++
	tags := make([]action.Tag, 0, len(r.jobs))
	for tag, j := range r.jobs {
		j.remaining--
		if j.remaining <= 0 {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	for _, tag := range tags {
		j, ok := r.jobs[tag]
		if !ok {
			continue
		}
		delete(r.jobs, tag)
		res := r.resultFor(j.req.Type)
		if res == action.ResultSuccess {
			r.apply(j.req)
		}
		r.logger.Debug("action finished",
			zap.Uint32("tag", uint32(tag)),
			zap.Stringer("request", j.req),
			zap.Stringer("result", res),
		)
		if j.done != nil {
			j.done(tag, res)
		}
	}
}

func (r *Robot) resultFor(t action.Type) action.Result {
	queue := r.scripted[t]
	if len(queue) == 0 {
		return action.ResultSuccess
	}
	res := queue[0]
	r.scripted[t] = queue[1:]
	return res
}

func (r *Robot) apply(req action.Request) {
	switch req.Type {
	case action.TypePickup:
		if obj, ok := r.objects[req.Object]; ok {
			obj.Carried = true
			r.objects[req.Object] = obj
			r.carried = req.Object
		}
	case action.TypePlace:
		if obj, ok := r.objects[r.carried]; ok {
			obj.Carried = false
			obj.PoseRevision++
			r.objects[r.carried] = obj
		}
		r.carried = world.InvalidObject
	case action.TypeRoll:
		if obj, ok := r.objects[req.Object]; ok {
			obj.Upright = true
			obj.PoseRevision++
			r.objects[req.Object] = obj
		}
	case action.TypeSearch:
		if obj, ok := r.hidden[req.Object]; ok {
			r.AddObject(obj)
		}
	}
}

// Started lists every action request in start order.
func (r *Robot) Started() []action.Request {
	return append([]action.Request(nil), r.started...)
}

// Cancelled lists cancelled tags in order.
func (r *Robot) Cancelled() []action.Tag {
	return append([]action.Tag(nil), r.cancelled...)
}

// InFlight returns how many actions are running.
func (r *Robot) InFlight() int { return len(r.jobs) }

// Steps returns how many times Step ran.
func (r *Robot) Steps() uint64 { return r.steps }
