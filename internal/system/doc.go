// Package system hosts the behavior system manager: the per-tick driver that
// owns the single current-behavior slot, asks the active activity what should
// run, switches behaviors (Stop old, then Init new, commit only on success),
// and updates the current behavior once per tick.
//
// Manager methods are safe to call from another goroutine than the tick loop,
// but behaviors, helpers and choosers only ever run on the tick goroutine.
package system
