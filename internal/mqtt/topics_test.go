package mqtt

import "testing"

func TestTopics_DeviceData(t *testing.T) {
	topics := Topics{Root: "telemetry"}
	got := topics.DeviceData("sensor-42")
	want := "telemetry/devices/sensor-42/data"
	if got != want {
		t.Errorf("DeviceData() = %q, want %q", got, want)
	}
}

func TestTopics_AllDeviceData(t *testing.T) {
	topics := Topics{Root: "telemetry"}
	got := topics.AllDeviceData()
	want := "telemetry/devices/+/data"
	if got != want {
		t.Errorf("AllDeviceData() = %q, want %q", got, want)
	}
}

func TestTopics_GatewayStatus(t *testing.T) {
	topics := Topics{Root: "telemetry"}
	got := topics.GatewayStatus()
	want := "telemetry/system/status"
	if got != want {
		t.Errorf("GatewayStatus() = %q, want %q", got, want)
	}
}

func TestTopics_AlertNotification(t *testing.T) {
	topics := Topics{Root: "telemetry"}
	got := topics.AlertNotification("rule-high-temp")
	want := "telemetry/alerts/rule-high-temp"
	if got != want {
		t.Errorf("AlertNotification() = %q, want %q", got, want)
	}
}
