// Package synth generates synthetic behavioral data: realistic event
// batches for dev/test endpoints and feature datasets for checkpoint
// generation. All output is driven by a caller-supplied *rand.Rand so
// generation is reproducible under a fixed seed.
package synth

import (
	"math"
	"math/rand"

	"github.com/HarshSankhe/behavior-guard-insight/internal/behavior"
)

// Profile names.
const (
	ProfileNormal      = "normal"
	ProfileFastTyper   = "fast_typer"
	ProfileSlowCareful = "slow_careful"
)

// Profile is a user-type baseline: the centers and spreads of the
// behavioral distributions a synthetic user samples from.
type Profile struct {
	Name string

	TypingSpeedBase float64
	TypingSpeedStd  float64
	HoldTimeBase    float64
	HoldTimeStd     float64
	FlightTimeBase  float64
	FlightTimeStd   float64
	MouseSpeedBase  float64
	MouseSpeedStd   float64
	ClickFreqBase   float64
	LatencyBase     float64
}

var profiles = map[string]Profile{
	ProfileNormal: {
		Name:            ProfileNormal,
		TypingSpeedBase: 60, TypingSpeedStd: 10,
		HoldTimeBase: 110, HoldTimeStd: 20,
		FlightTimeBase: 220, FlightTimeStd: 40,
		MouseSpeedBase: 320, MouseSpeedStd: 60,
		ClickFreqBase: 1.8, LatencyBase: 30,
	},
	ProfileFastTyper: {
		Name:            ProfileFastTyper,
		TypingSpeedBase: 85, TypingSpeedStd: 12,
		HoldTimeBase: 80, HoldTimeStd: 15,
		FlightTimeBase: 150, FlightTimeStd: 30,
		MouseSpeedBase: 450, MouseSpeedStd: 80,
		ClickFreqBase: 2.5, LatencyBase: 25,
	},
	ProfileSlowCareful: {
		Name:            ProfileSlowCareful,
		TypingSpeedBase: 35, TypingSpeedStd: 8,
		HoldTimeBase: 150, HoldTimeStd: 25,
		FlightTimeBase: 350, FlightTimeStd: 60,
		MouseSpeedBase: 200, MouseSpeedStd: 40,
		ClickFreqBase: 1.2, LatencyBase: 35,
	},
}

// Lookup returns the named profile, falling back to "normal" for
// unknown names.
func Lookup(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles[ProfileNormal]
}

// ProfileNames lists the available profile names.
func ProfileNames() []string {
	return []string{ProfileNormal, ProfileFastTyper, ProfileSlowCareful}
}

// Vector samples one feature vector from the profile's distributions.
func Vector(p Profile, rng *rand.Rand) behavior.Vector {
	v := behavior.NewVector()
	v[behavior.SlotTypingSpeedAvg] = clamp(normal(rng, p.TypingSpeedBase, p.TypingSpeedStd), 10, 200)
	v[behavior.SlotTypingSpeedStd] = math.Abs(normal(rng, 0, 5))
	v[behavior.SlotHoldTimeAvg] = clamp(normal(rng, p.HoldTimeBase, p.HoldTimeStd), 50, 300)
	v[behavior.SlotHoldTimeStd] = math.Abs(normal(rng, 0, 10))
	v[behavior.SlotFlightTimeAvg] = clamp(normal(rng, p.FlightTimeBase, p.FlightTimeStd), 80, 800)
	v[behavior.SlotFlightTimeStd] = math.Abs(normal(rng, 0, 20))
	v[behavior.SlotMouseSpeedAvg] = clamp(normal(rng, p.MouseSpeedBase, p.MouseSpeedStd), 50, 1000)
	v[behavior.SlotMouseSpeedStd] = math.Abs(normal(rng, 0, 30))
	v[behavior.SlotMouseAccelerationAvg] = gamma(rng, 2, 0.5)
	v[behavior.SlotClickFrequency] = float64(poisson(rng, p.ClickFreqBase))
	v[behavior.SlotAppSwitchesPerMin] = float64(poisson(rng, 0.8))
	v[behavior.SlotNetworkLatencyAvg] = clamp(normal(rng, p.LatencyBase, 8), 10, 200)
	v[behavior.SlotNetworkLatencyStd] = math.Abs(normal(rng, 0, 5))
	v[behavior.SlotIdleTimeRatio] = beta(rng, 2, 8)
	v[behavior.SlotActiveTimeMinutes] = expovariate(rng, 15)
	return v
}

// AnomalousVector samples a deviant feature vector: widened spreads,
// doubled latency and click volume, inverted idle ratio.
func AnomalousVector(p Profile, rng *rand.Rand) behavior.Vector {
	const factor = 3.0
	v := behavior.NewVector()
	v[behavior.SlotTypingSpeedAvg] = normal(rng, p.TypingSpeedBase, p.TypingSpeedStd*factor)
	v[behavior.SlotTypingSpeedStd] = math.Abs(normal(rng, 0, 5*factor))
	v[behavior.SlotHoldTimeAvg] = normal(rng, p.HoldTimeBase, p.HoldTimeStd*factor)
	v[behavior.SlotHoldTimeStd] = math.Abs(normal(rng, 0, 10*factor))
	v[behavior.SlotFlightTimeAvg] = normal(rng, p.FlightTimeBase, p.FlightTimeStd*factor)
	v[behavior.SlotFlightTimeStd] = math.Abs(normal(rng, 0, 20*factor))
	v[behavior.SlotMouseSpeedAvg] = normal(rng, p.MouseSpeedBase, p.MouseSpeedStd*factor)
	v[behavior.SlotMouseSpeedStd] = math.Abs(normal(rng, 0, 30*factor))
	v[behavior.SlotMouseAccelerationAvg] = gamma(rng, 5, 1.0)
	v[behavior.SlotClickFrequency] = float64(poisson(rng, p.ClickFreqBase*2))
	v[behavior.SlotAppSwitchesPerMin] = float64(poisson(rng, 3.0))
	v[behavior.SlotNetworkLatencyAvg] = normal(rng, p.LatencyBase*2, 20)
	v[behavior.SlotNetworkLatencyStd] = math.Abs(normal(rng, 0, 5*factor))
	v[behavior.SlotIdleTimeRatio] = beta(rng, 8, 2)
	v[behavior.SlotActiveTimeMinutes] = expovariate(rng, 45)
	return v
}

// Dataset samples n feature vectors with the given anomaly fraction.
// Normal samples come first; callers who need them shuffled can do so.
func Dataset(p Profile, n int, anomalyRate float64, rng *rand.Rand) []behavior.Vector {
	if n <= 0 {
		return nil
	}
	normalCount := int(float64(n) * (1 - anomalyRate))
	out := make([]behavior.Vector, 0, n)
	for i := 0; i < normalCount; i++ {
		out = append(out, Vector(p, rng))
	}
	for i := normalCount; i < n; i++ {
		out = append(out, AnomalousVector(p, rng))
	}
	return out
}

// Session emits a realistic event batch for the profile: a few minutes
// of keystrokes, pointer movement, clicks, app switches, latency samples,
// and idle markers with monotonically increasing timestamps.
func Session(p Profile, rng *rand.Rand) []behavior.Event {
	const (
		startMillis = int64(1691766600000)
		spanMillis  = int64(3 * 60 * 1000)
	)

	var events []behavior.Event
	ts := startMillis
	step := func() int64 {
		ts += int64(rng.Intn(1500)) + 100
		return ts
	}

	for i := 0; i < 30; i++ {
		events = append(events, behavior.Event{
			Type:      behavior.EventKeystroke,
			Timestamp: step(),
			Data: map[string]float64{
				behavior.KeyTypingSpeed: clamp(normal(rng, p.TypingSpeedBase, p.TypingSpeedStd), 10, 200),
				behavior.KeyHoldTime:    clamp(normal(rng, p.HoldTimeBase, p.HoldTimeStd), 50, 300),
				behavior.KeyFlightTime:  clamp(normal(rng, p.FlightTimeBase, p.FlightTimeStd), 80, 800),
			},
		})
	}
	for i := 0; i < 20; i++ {
		events = append(events, behavior.Event{
			Type:      behavior.EventMouseMove,
			Timestamp: step(),
			Data: map[string]float64{
				behavior.KeyMouseSpeed:   clamp(normal(rng, p.MouseSpeedBase, p.MouseSpeedStd), 50, 1000),
				behavior.KeyAcceleration: gamma(rng, 2, 0.5),
			},
		})
	}
	for i := 0; i < poisson(rng, p.ClickFreqBase*3); i++ {
		events = append(events, behavior.Event{Type: behavior.EventMouseClick, Timestamp: step()})
	}
	for i := 0; i < poisson(rng, 2); i++ {
		events = append(events, behavior.Event{Type: behavior.EventAppSwitch, Timestamp: step()})
	}
	for i := 0; i < 5; i++ {
		events = append(events, behavior.Event{
			Type:      behavior.EventNetworkLatency,
			Timestamp: step(),
			Data: map[string]float64{
				behavior.KeyLatency: clamp(normal(rng, p.LatencyBase, 8), 10, 200),
			},
		})
	}
	if rng.Float64() < 0.5 {
		events = append(events, behavior.Event{
			Type:      behavior.EventIdle,
			Timestamp: startMillis + spanMillis,
			Data:      map[string]float64{behavior.KeyCount: 1},
		})
	}
	return events
}

// ---- samplers ----

func normal(rng *rand.Rand, mean, std float64) float64 {
	return mean + rng.NormFloat64()*std
}

func expovariate(rng *rand.Rand, mean float64) float64 {
	return rng.ExpFloat64() * mean
}

// gamma samples Gamma(shape, scale) via Marsaglia-Tsang, with the usual
// boost for shape < 1.
func gamma(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return gamma(rng, shape+1, scale) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// beta samples Beta(a, b) as Ga/(Ga+Gb).
func beta(rng *rand.Rand, a, b float64) float64 {
	ga := gamma(rng, a, 1)
	gb := gamma(rng, b, 1)
	if ga+gb == 0 {
		return 0
	}
	return ga / (ga + gb)
}

// poisson samples Poisson(lambda) by Knuth's product method; fine for
// the small lambdas used here.
func poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
