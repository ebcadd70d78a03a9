package mqtt

import "fmt"

// Topics builds MQTT topics under a configurable root, matching the
// scheme `<root>/devices/{device_id}/data` used by inbound telemetry and
// `<root>/system/*` used for gateway lifecycle.
//
//	topics := mqtt.Topics{Root: "telemetry"}
//	dataTopic := topics.DeviceData("sensor-42")
//	// Returns: "telemetry/devices/sensor-42/data"
type Topics struct {
	// Root is the configured topic root (ingest.mqtt.topic_root).
	Root string
}

// DeviceData returns the topic a single device publishes readings to.
//
// Example: telemetry/devices/sensor-42/data
func (t Topics) DeviceData(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/data", t.Root, deviceID)
}

// AllDeviceData returns the wildcard pattern matching every device's
// data topic. This is what the gateway's MQTT subscriber actually
// subscribes to.
//
// Pattern: telemetry/devices/+/data
func (t Topics) AllDeviceData() string {
	return fmt.Sprintf("%s/devices/+/data", t.Root)
}

// GatewayStatus returns the topic for gateway online/offline status,
// published retained and set as the Last Will and Testament.
//
// Example: telemetry/system/status
func (t Topics) GatewayStatus() string {
	return fmt.Sprintf("%s/system/status", t.Root)
}

// DeviceCommand returns the topic for commands addressed to a device
// (used by the admin API to request a device reconfigure or reboot).
//
// Example: telemetry/devices/sensor-42/command
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/command", t.Root, deviceID)
}

// AlertNotification returns the topic an alert's MQTT sink publishes to.
//
// Example: telemetry/alerts/rule-high-temp
func (t Topics) AlertNotification(ruleID string) string {
	return fmt.Sprintf("%s/alerts/%s", t.Root, ruleID)
}
