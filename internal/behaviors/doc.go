// Package behaviors provides the generic built-in behavior classes that a
// robot configuration can instantiate: Wait, PlayAnimation, HelperSequence and
// Tree.
package behaviors
