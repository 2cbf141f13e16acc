// Package behavior defines the behavior lifecycle (IsRunnable, Init, Update,
// Stop), the sentinel None behavior, the closed set of declarative
// preconditions, and the class registry and container that build behavior
// instances from configuration once at startup.
package behavior
