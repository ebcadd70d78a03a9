// Package hub implements the WebSocket subscriber fan-out described in
// spec.md §4.6: authenticated subscribers receive a live stream of
// Readings bounded to their authorized devices, with heartbeat
// liveness checks and a configurable policy for handling subscribers
// that fall behind.
package hub
