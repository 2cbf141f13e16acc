// Package chooser selects the next behavior to run. Simple resolves enabled
// state from ordered group/behavior directives and scores candidates with a
// bonus for the running behavior; Selection runs one requested behavior a fixed
// number of times.
package chooser
