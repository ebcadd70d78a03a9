package codec

// Envelope is the wire shape published by devices over MQTT and HTTP, per
// the gateway's telemetry payload contract:
//
//	{ "device_id":"...", "timestamp":"RFC3339", "firmware":"...",
//	  "sensors": { "temperature": 35.2, "humidity": 60.1, "pressure": 1013.2,
//	               "tires":[{"position":"FL","pressure_kpa":220.0,"temperature_c":35.0}],
//	               "battery_v":3.7, "rssi":-58 } }
//
// Unknown top-level keys are ignored; all fields but device_id are optional.
type Envelope struct {
	DeviceID  string      `json:"device_id"`
	Timestamp string      `json:"timestamp"`
	Firmware  string      `json:"firmware"`
	Sensors   SensorBlock `json:"sensors"`
}

// SensorBlock is the free-form sensor payload sub-object. Fields use
// pointers so "not present" (nil) is distinguishable from "reported as
// zero".
type SensorBlock struct {
	Temperature *float64    `json:"temperature"`
	Humidity    *float64    `json:"humidity"`
	Pressure    *float64    `json:"pressure"`
	Tires       []TireBlock `json:"tires"`
	BatteryV    *float64    `json:"battery_v"`
	RSSI        *int        `json:"rssi"`
}

// TireBlock is a single tire's reading within the "tires" array.
type TireBlock struct {
	Position      string   `json:"position"`
	PressureKPa   *float64 `json:"pressure_kpa"`
	TemperatureC  *float64 `json:"temperature_c"`
}

// tirePosition maps the wire position abbreviation to model.Position.
var tirePosition = map[string]string{
	"FL": "front_left",
	"FR": "front_right",
	"RL": "rear_left",
	"RR": "rear_right",
}
