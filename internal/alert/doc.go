// Package alert is the gateway's Alert Engine (C7): declarative rules,
// per-(device,rule) dedup, hold-down hysteresis, and retrying dispatch
// to an external sink (webhook or MQTT).
package alert
