// Package helper implements the behavior helper stack: a LIFO of cooperating
// sub-tasks ("helpers") run on behalf of one calling behavior. Only the top
// helper is ticked. A helper may push a delegate above itself and is told the
// delegate's outcome before it is ticked again. Paused helpers may reclaim
// control at the start of every tick. When the stack drains, exactly one of the
// calling behavior's success/failure callbacks runs.
package helper
