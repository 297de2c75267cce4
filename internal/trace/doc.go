// Package trace records what the compiler is doing while it runs.
//
// Events are organised in spans: the driver opens one span per pipeline
// stage, passes open one per component, and discharge opens one per solver
// query. The verbosity Level decides which scopes are recorded:
//
//	off     nothing
//	error   nothing is streamed; the ring buffer is dumped on a crash
//	phase   driver and pass boundaries
//	detail  plus one span per component
//	debug   plus every solver query
//
// A Tracer travels in a context.Context (WithTracer/FromContext) so that
// library code never needs a global.
package trace
