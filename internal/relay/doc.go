// Package relay wires the VLM result relay: a single pipeline goroutine tails
// the upstream Redis stream through a cursor reader, normalizes each raw
// record into a canonical result, encodes it once, and fans it out to every
// connected subscriber. Transport connections interact with the core only
// through the subscriber registry; the pipeline never blocks on a slow or
// broken subscriber.
//
// Service owns the wiring and the read-only status surface: / (service info),
// /health, /stats, and optionally /metrics for Prometheus. Construct it with
// NewService, register the WebSocket transport handler on the HTTP port, and
// call Start with a signal-aware context; Start returns after the in-flight
// pipeline iteration completes.
package relay
