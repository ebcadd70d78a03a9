// Package sink is the durable sink adapter (C5): a write-ahead buffer in
// front of a pluggable storage Adapter (SQL, line protocol, InfluxDB, a
// fan-out composite, or no-op), with batching, retry, and backpressure.
package sink
