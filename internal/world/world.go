// Package world declares the read-only view of robot and object state that
// behaviors and helpers query. Implementations live outside this repository
// (the perception and localization subsystems); internal/sim provides a
// deterministic stand-in.
package world

// ObjectID identifies a tracked object (usually a light cube).
type ObjectID int

// InvalidObject is the zero value used when no target is set.
const InvalidObject ObjectID = 0

// OriginID identifies the robot's current localization frame. It changes
// whenever the robot re-localizes, which invalidates every stored pose.
type OriginID uint32

// Object is a snapshot of a tracked object.
type Object struct {
	ID ObjectID
	// PoseRevision increments every time the object is observed to move.
	PoseRevision uint64
	Upright      bool
	Carried      bool
}

// State is the query surface consumed by the behavior core.
type State interface {
	Origin() OriginID
	Object(id ObjectID) (Object, bool)
	IsIdle() bool
	IsCubeConnected() bool
	CarriedObject() ObjectID
}
