// Package health probes the engine's external collaborators.
//
// The cache store and the tag index are the only durable state the engine
// has, so their reachability decides whether an instance should receive
// traffic. Checkers exercise each with a small round trip; the Registry
// aggregates them and http.go exposes the usual liveness/readiness
// endpoints.
package health
