package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/world"
)

func TestRobotCompletesActionsAfterDuration(t *testing.T) {
	r := New(WithDuration(action.TypeDriveTo, 3))
	r.AddObject(world.Object{ID: 1})
	var results []action.Result
	_, err := r.Start(action.Request{Type: action.TypeDriveTo, Object: 1}, func(_ action.Tag, res action.Result) {
		results = append(results, res)
	})
	require.NoError(t, err)
	require.False(t, r.IsIdle())

	r.Step()
	r.Step()
	require.Empty(t, results)
	r.Step()
	require.Equal(t, []action.Result{action.ResultSuccess}, results)
	require.True(t, r.IsIdle())
}

func TestRobotScriptedResultsAndEffects(t *testing.T) {
	r := New(WithDefaultDuration(1))
	r.AddObject(world.Object{ID: 2})
	r.Script(action.TypePickup, action.ResultFailure)

	var got []action.Result
	record := func(_ action.Tag, res action.Result) { got = append(got, res) }
	_, err := r.Start(action.Request{Type: action.TypePickup, Object: 2}, record)
	require.NoError(t, err)
	r.Step()
	require.Equal(t, world.InvalidObject, r.CarriedObject())

	_, err = r.Start(action.Request{Type: action.TypePickup, Object: 2}, record)
	require.NoError(t, err)
	r.Step()
	require.Equal(t, world.ObjectID(2), r.CarriedObject())
	obj, _ := r.Object(2)
	require.True(t, obj.Carried)
	require.Equal(t, []action.Result{action.ResultFailure, action.ResultSuccess}, got)
}

func TestRobotCancelReportsCancelled(t *testing.T) {
	r := New()
	var got action.Result = -1
	tag, err := r.Start(action.Request{Type: action.TypeTurnInPlace}, func(_ action.Tag, res action.Result) { got = res })
	require.NoError(t, err)
	r.Cancel(tag)
	r.Cancel(tag)
	require.Equal(t, action.ResultCancelled, got)
	require.Equal(t, []action.Tag{tag}, r.Cancelled())
	require.True(t, r.IsIdle())
}

func TestRobotSearchRevealsHiddenObject(t *testing.T) {
	r := New(WithDefaultDuration(1))
	r.HideObject(world.Object{ID: 5})
	_, ok := r.Object(5)
	require.False(t, ok)
	_, err := r.Start(action.Request{Type: action.TypeSearch, Object: 5}, nil)
	require.NoError(t, err)
	r.Step()
	_, ok = r.Object(5)
	require.True(t, ok)
}

func TestRobotWorldMutations(t *testing.T) {
	r := New()
	r.AddObject(world.Object{ID: 1})
	before := r.Origin()
	require.Equal(t, before+1, r.Relocalize())
	require.True(t, r.MoveObject(1))
	require.False(t, r.MoveObject(9))
	obj, _ := r.Object(1)
	require.Equal(t, uint64(1), obj.PoseRevision)
	require.True(t, r.SetUpright(1, true))
	r.SetCubeConnected(false)
	require.False(t, r.IsCubeConnected())

	r.FailStart(action.TypeRoll, errors.New("motors off"))
	_, err := r.Start(action.Request{Type: action.TypeRoll, Object: 1}, nil)
	require.Error(t, err)
	r.FailStart(action.TypeRoll, nil)
	_, err = r.Start(action.Request{Type: action.TypeRoll, Object: 1}, nil)
	require.NoError(t, err)
}
