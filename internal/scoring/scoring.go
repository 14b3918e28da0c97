// Package scoring converts autoencoder reconstruction error into a
// 0-100 risk score with per-factor breakdowns and anomaly summaries.
package scoring

import (
	"math"

	"github.com/HarshSankhe/behavior-guard-insight/internal/behavior"
	"github.com/HarshSankhe/behavior-guard-insight/internal/model"
)

// Reconstruction-error thresholds separating the risk bands.
// Empirically calibrated; treat as tunable parameters, but changing them
// changes every historical score.
const (
	ThresholdLow      = 0.01
	ThresholdMedium   = 0.05
	ThresholdHigh     = 0.15
	ThresholdCritical = 0.30
)

// Deviation labels reported per factor.
const (
	LevelNormal   = "Normal"
	LevelSlight   = "Slight"
	LevelModerate = "Moderate"
	LevelHigh     = "High"
	LevelCritical = "Critical"
	LevelUnknown  = "Unknown"
)

// Factor keys in the assessment response.
const (
	FactorTypingSpeed = "typingSpeed"
	FactorMouseSpeed  = "mouseSpeed"
	FactorLatency     = "latency"
	FactorAppUsage    = "appUsage"
)

const epsilon = 1e-8

// Factor pairs a raw feature value with its graded deviation label.
type Factor struct {
	Value     float64 `json:"value"`
	Deviation string  `json:"deviation"`
}

// Result is the outcome of scoring one feature vector against one model.
type Result struct {
	RiskScore           int
	ReconstructionError float64
	Factors             map[string]Factor
	Anomalies           []string
	Confidence          float64
}

// Normalize applies the model's stored z-score parameters to a raw vector.
// A small epsilon keeps zero-variance features from dividing by zero.
func Normalize(features behavior.Vector, mean, std []float64) behavior.Vector {
	out := features.Clone()
	for i := range out {
		out[i] = (out[i] - mean[i]) / (std[i] + epsilon)
	}
	return out
}

// ReconstructionError is the mean squared error between a normalized
// input and the network's reconstruction of it.
func ReconstructionError(input, output []float64) float64 {
	var sum float64
	for i := range input {
		d := input[i] - output[i]
		sum += d * d
	}
	return sum / float64(len(input))
}

// MapScore converts a reconstruction error to an integer risk score.
// The mapping is piecewise linear across the threshold bands, truncating
// within each band, and saturates at 100.
func MapScore(err float64) int {
	switch {
	case err <= ThresholdLow:
		return int(20 * (err / ThresholdLow))
	case err <= ThresholdMedium:
		return 20 + int(30*((err-ThresholdLow)/(ThresholdMedium-ThresholdLow)))
	case err <= ThresholdHigh:
		return 50 + int(30*((err-ThresholdMedium)/(ThresholdHigh-ThresholdMedium)))
	case err <= ThresholdCritical:
		return 80 + int(15*((err-ThresholdHigh)/(ThresholdCritical-ThresholdHigh)))
	default:
		return int(math.Min(100, 95+float64(int(5*math.Min(err/ThresholdCritical, 2)))))
	}
}

// deviationLevel grades a single feature's reconstruction error.
func deviationLevel(err float64) string {
	switch {
	case err < 0.5:
		return LevelNormal
	case err < 1.0:
		return LevelSlight
	case err < 2.0:
		return LevelModerate
	case err < 3.0:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Score runs a full assessment of features against a model artifact:
// normalize, reconstruct, measure error, map to a score, and grade the
// individual behavioral factors. eventCount is the size of the raw event
// batch the features came from and feeds the confidence estimate.
func Score(art *model.Artifact, features behavior.Vector, eventCount int) Result {
	normalized := Normalize(features, art.Mean, art.Std)
	reconstructed := art.Net.Forward(normalized)

	errVal := ReconstructionError(normalized, reconstructed)

	slotErrs := make([]float64, len(normalized))
	for i := range normalized {
		slotErrs[i] = math.Abs(reconstructed[i] - normalized[i])
	}

	factors := map[string]Factor{
		FactorTypingSpeed: {
			Value:     features[behavior.SlotTypingSpeedAvg],
			Deviation: deviationLevel(slotErrs[behavior.SlotTypingSpeedAvg]),
		},
		FactorMouseSpeed: {
			Value:     features[behavior.SlotMouseSpeedAvg],
			Deviation: deviationLevel(slotErrs[behavior.SlotMouseSpeedAvg]),
		},
		FactorLatency: {
			Value:     features[behavior.SlotNetworkLatencyAvg],
			Deviation: deviationLevel(slotErrs[behavior.SlotNetworkLatencyAvg]),
		},
		FactorAppUsage: {
			Value:     features[behavior.SlotAppSwitchesPerMin],
			Deviation: deviationLevel(slotErrs[behavior.SlotAppSwitchesPerMin]),
		},
	}

	return Result{
		RiskScore:           MapScore(errVal),
		ReconstructionError: errVal,
		Factors:             factors,
		Anomalies:           detectAnomalies(features, slotErrs),
		Confidence:          Confidence(errVal, eventCount),
	}
}

// detectAnomalies appends anomaly messages in a fixed check order so
// output is deterministic for a given input.
func detectAnomalies(features behavior.Vector, slotErrs []float64) []string {
	var out []string

	if slotErrs[behavior.SlotTypingSpeedAvg] > 2.0 {
		out = append(out, "Unusual typing speed pattern")
	}
	if slotErrs[behavior.SlotMouseSpeedAvg] > 2.0 {
		out = append(out, "Abnormal mouse movement behavior")
	}
	if slotErrs[behavior.SlotNetworkLatencyAvg] > 2.0 {
		out = append(out, "Network latency deviation")
	}
	if slotErrs[behavior.SlotAppSwitchesPerMin] > 2.0 {
		out = append(out, "Irregular application usage")
	}

	typing := features[behavior.SlotTypingSpeedAvg]
	if typing > 200 {
		out = append(out, "Extremely high typing speed")
	} else if typing > 0 && typing < 10 {
		out = append(out, "Unusually slow typing speed")
	}
	if features[behavior.SlotClickFrequency] > 10 {
		out = append(out, "Excessive mouse clicking")
	}

	return out
}

// Confidence blends error proximity with event volume into a [0.1, 1.0]
// confidence estimate. More events and lower error both raise it; 50
// events is full sample confidence.
func Confidence(errVal float64, eventCount int) float64 {
	errConf := math.Max(0.1, 1-math.Min(errVal/0.5, 1))
	sampleConf := math.Min(1, float64(eventCount)/50)
	return math.Min(1, (errConf+sampleConf)/2)
}

// UnknownFactors returns the fixed factor map used when no assessment
// could be produced.
func UnknownFactors() map[string]Factor {
	return map[string]Factor{
		FactorTypingSpeed: {Deviation: LevelUnknown},
		FactorMouseSpeed:  {Deviation: LevelUnknown},
		FactorLatency:     {Deviation: LevelUnknown},
		FactorAppUsage:    {Deviation: LevelUnknown},
	}
}
