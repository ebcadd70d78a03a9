// Package ingest implements the gateway's two ingestion front-ends: an
// MQTT subscriber draining device-data topics across a fixed worker
// pool, and an HTTP batch endpoint for devices that can't hold a
// persistent broker connection. Both front-ends authenticate against
// the Device Registry and submit decoded Readings to the Pipeline;
// neither front-end knows anything about storage, subscribers, or
// alerting downstream of Submit.
package ingest
