package behavior

import "math"

// Clamp bounds applied to every feature slot after extraction.
const (
	slotMin = -10.0
	slotMax = 1000.0
)

// Extract converts a raw event batch into a feature vector, deriving the
// session duration from event timestamps. Pure and deterministic: the same
// events always produce the same vector.
func Extract(events []Event) Vector {
	return ExtractWithDuration(events, deriveDuration(events))
}

// ExtractWithDuration is Extract with an explicit session duration in
// minutes. Derived durations are floored at one minute by Extract; an
// explicit duration is taken as given, guarded only against non-positive
// or non-finite values so rate features stay defined.
func ExtractWithDuration(events []Event, durationMinutes float64) Vector {
	v := NewVector()
	if len(events) == 0 {
		return v
	}
	if durationMinutes <= 0 || math.IsNaN(durationMinutes) || math.IsInf(durationMinutes, 0) {
		durationMinutes = 1.0
	}

	var (
		typingSpeeds  []float64
		holdTimes     []float64
		flightTimes   []float64
		mouseSpeeds   []float64
		accelerations []float64
		latencies     []float64
		clicks        int
		appSwitches   int
		idleWeight    float64
	)

	for _, e := range events {
		switch e.Type {
		case EventKeystroke:
			typingSpeeds = appendPositive(typingSpeeds, e.Data[KeyTypingSpeed])
			holdTimes = appendPositive(holdTimes, e.Data[KeyHoldTime])
			flightTimes = appendPositive(flightTimes, e.Data[KeyFlightTime])
		case EventMouseMove, EventMouseClick:
			mouseSpeeds = appendPositive(mouseSpeeds, e.Data[KeyMouseSpeed])
			accelerations = appendPositive(accelerations, e.Data[KeyAcceleration])
			if e.Type == EventMouseClick {
				clicks++
			}
		case EventAppSwitch:
			appSwitches++
		case EventNetworkLatency:
			latencies = appendPositive(latencies, e.Data[KeyLatency])
		case EventIdle:
			w, ok := e.Data[KeyCount]
			if !ok {
				w = 1
			}
			idleWeight += w
		}
	}

	v[SlotTypingSpeedAvg], v[SlotTypingSpeedStd] = meanStd(typingSpeeds)
	v[SlotHoldTimeAvg], v[SlotHoldTimeStd] = meanStd(holdTimes)
	v[SlotFlightTimeAvg], v[SlotFlightTimeStd] = meanStd(flightTimes)
	v[SlotMouseSpeedAvg], v[SlotMouseSpeedStd] = meanStd(mouseSpeeds)
	v[SlotMouseAccelerationAvg], _ = meanStd(accelerations)
	v[SlotClickFrequency] = float64(clicks) / durationMinutes
	v[SlotAppSwitchesPerMin] = float64(appSwitches) / durationMinutes
	v[SlotNetworkLatencyAvg], v[SlotNetworkLatencyStd] = meanStd(latencies)
	v[SlotIdleTimeRatio] = idleWeight / math.Max(float64(len(events)), 1)
	v[SlotActiveTimeMinutes] = durationMinutes

	sanitize(v)
	return v
}

// Validate sanity-checks a vector before it is scored. This is an advisory
// gate: a false result routes the request to the neutral fallback, it is
// never an error.
func Validate(v Vector) bool {
	if len(v) != FeatureCount {
		return false
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	if v[SlotTypingSpeedAvg] < 0 || v[SlotTypingSpeedAvg] > 300 {
		return false
	}
	if v[SlotMouseSpeedAvg] < 0 || v[SlotMouseSpeedAvg] > 10000 {
		return false
	}
	return true
}

// deriveDuration estimates session length in minutes from the span of event
// timestamps. Events without a timestamp are ignored; if none carry one the
// session is treated as one minute long.
func deriveDuration(events []Event) float64 {
	var minTS, maxTS int64
	seen := false
	for _, e := range events {
		if e.Timestamp == 0 {
			continue
		}
		if !seen || e.Timestamp < minTS {
			minTS = e.Timestamp
		}
		if !seen || e.Timestamp > maxTS {
			maxTS = e.Timestamp
		}
		seen = true
	}
	if !seen {
		return 1.0
	}
	return math.Max(float64(maxTS-minTS)/60000.0, 1.0)
}

// appendPositive filters out missing, zero, and negative samples.
func appendPositive(dst []float64, x float64) []float64 {
	if x > 0 {
		dst = append(dst, x)
	}
	return dst
}

// meanStd returns the mean and population standard deviation of samples.
// Fewer than two samples yield a zero stdev; no samples yield zeros.
func meanStd(samples []float64) (mean, std float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	for _, x := range samples {
		mean += x
	}
	mean /= float64(len(samples))
	if len(samples) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range samples {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(samples)))
}

// sanitize replaces non-finite slots and clamps everything to the schema
// bounds, in place.
func sanitize(v Vector) {
	for i, x := range v {
		switch {
		case math.IsNaN(x):
			v[i] = 0
		case math.IsInf(x, 1):
			v[i] = slotMax
		case math.IsInf(x, -1):
			v[i] = slotMin
		case x > slotMax:
			v[i] = slotMax
		case x < slotMin:
			v[i] = slotMin
		}
	}
}
