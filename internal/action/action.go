// Package action declares the action-runner collaborator: start an action and
// get a completion callback carrying a result code. The execution protocol
// itself (path planning, docking, animation streaming) is owned elsewhere.
package action

import (
	"fmt"

	"github.com/kingrea/robot-behaviors/internal/world"
)

// Type names a kind of robot action.
type Type string

const (
	TypeDriveTo       Type = "drive_to_object"
	TypePickup        Type = "pickup_object"
	TypePlace         Type = "place_object"
	TypeRoll          Type = "roll_object"
	TypeSearch        Type = "search_for_object"
	TypePlayAnimation Type = "play_animation"
	TypeTurnInPlace   Type = "turn_in_place"
)

// Result is the completion code reported by the runner.
type Result int

const (
	ResultSuccess Result = iota
	ResultFailure
	ResultRetry
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultRetry:
		return "retry"
	case ResultCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Tag identifies an in-flight action.
type Tag uint32

// Request describes an action to start.
type Request struct {
	Type    Type
	Object  world.ObjectID
	Upright bool
	// Trigger names an animation trigger for TypePlayAnimation.
	Trigger string
}

func (r Request) String() string {
	if r.Trigger != "" {
		return fmt.Sprintf("%s(%s)", r.Type, r.Trigger)
	}
	if r.Object != world.InvalidObject {
		return fmt.Sprintf("%s(%d)", r.Type, r.Object)
	}
	return string(r.Type)
}

// Callback receives the result of a finished action. Runners invoke it from
// the tick thread.
type Callback func(Tag, Result)

// Runner starts and cancels actions.
type Runner interface {
	Start(req Request, done Callback) (Tag, error)
	Cancel(tag Tag)
}
