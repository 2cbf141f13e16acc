// Package telemetry carries one-way notifications out of the behavior system:
// behavior transitions, terminal results, and init failures. A Router fans
// events to in-process subscribers such as the monitor, and Metrics turns the
// same stream into Prometheus counters.
package telemetry
