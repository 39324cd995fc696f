// Package telemetry holds the span model, the process-wide sink handle,
// and the exporters that ship finished spans to a backend.
//
// The sink is optional. Instrumented entry points resolve it
// with Active() on every call; when no sink has been configured they
// execute the original call with no telemetry work at all. Configuring
// the sink is a single call:
//
//	sink, err := telemetry.Setup(telemetry.Config{
//		WorkflowName: "support-bot",
//		Exporter:     "console",
//	})
//
// Everything past that point is failure-soft: exporter errors are logged
// and dropped, and SendSpan never panics into the instrumented call.
package telemetry
