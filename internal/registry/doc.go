// Package registry implements the gateway's device directory: resolve
// credentials, track last-seen and health score, and serve lock-free
// snapshots to the ingest and pipeline components.
package registry
