// Package behavior defines the behavioral event model and turns raw event
// batches into the fixed-length feature vectors the scoring pipeline runs on.
package behavior

// EventType tags a raw behavioral event.
type EventType string

const (
	EventKeystroke      EventType = "keystroke"
	EventMouseMove      EventType = "mouse_move"
	EventMouseClick     EventType = "mouse_click"
	EventAppSwitch      EventType = "app_switch"
	EventNetworkLatency EventType = "network_latency"
	EventIdle           EventType = "idle"
)

// Data keys carried by events. Samples with missing or non-positive values
// are ignored by extraction, except idle counts which default to 1.
const (
	KeyTypingSpeed  = "typingSpeed"
	KeyHoldTime     = "holdTime"
	KeyFlightTime   = "flightTime"
	KeyMouseSpeed   = "mouseSpeed"
	KeyAcceleration = "acceleration"
	KeyLatency      = "latency"
	KeyCount        = "count"
)

// Event is a single low-level interaction observation reported by a session
// agent. Timestamp is epoch milliseconds; zero means not reported.
type Event struct {
	Type      EventType          `json:"type"`
	Timestamp int64              `json:"timestamp,omitempty"`
	Data      map[string]float64 `json:"data,omitempty"`
}

// Feature slots, in wire order. The order is part of the model contract:
// checkpoints store mean/std vectors indexed by these positions.
const (
	SlotTypingSpeedAvg = iota
	SlotTypingSpeedStd
	SlotHoldTimeAvg
	SlotHoldTimeStd
	SlotFlightTimeAvg
	SlotFlightTimeStd
	SlotMouseSpeedAvg
	SlotMouseSpeedStd
	SlotMouseAccelerationAvg
	SlotClickFrequency
	SlotAppSwitchesPerMin
	SlotNetworkLatencyAvg
	SlotNetworkLatencyStd
	SlotIdleTimeRatio
	SlotActiveTimeMinutes

	// FeatureCount is the fixed vector length.
	FeatureCount = 15
)

// FeatureNames lists slot names in wire order.
var FeatureNames = [FeatureCount]string{
	"typing_speed_avg",
	"typing_speed_std",
	"hold_time_avg",
	"hold_time_std",
	"flight_time_avg",
	"flight_time_std",
	"mouse_speed_avg",
	"mouse_speed_std",
	"mouse_acceleration_avg",
	"click_frequency",
	"app_switches_per_min",
	"network_latency_avg",
	"network_latency_std",
	"idle_time_ratio",
	"active_time_minutes",
}

// Vector is a length-FeatureCount feature vector.
type Vector []float64

// NewVector returns an all-zero feature vector.
func NewVector() Vector {
	return make(Vector, FeatureCount)
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}
