// Package authn issues and validates the bearer tokens that gate the
// gateway's HTTP ingest, admin, and WebSocket subscriber surfaces.
package authn
