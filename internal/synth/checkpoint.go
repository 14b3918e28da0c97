package synth

import (
	"math"
	"math/rand"
	"time"

	"github.com/HarshSankhe/behavior-guard-insight/internal/behavior"
	"github.com/HarshSankhe/behavior-guard-insight/internal/model"
)

// Stats computes the per-slot mean and population standard deviation of
// a dataset, the normalization parameters stored in a checkpoint.
func Stats(vectors []behavior.Vector) (mean, std []float64) {
	mean = make([]float64, behavior.FeatureCount)
	std = make([]float64, behavior.FeatureCount)
	if len(vectors) == 0 {
		return mean, std
	}

	for _, v := range vectors {
		for i := range mean {
			mean[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range mean {
		mean[i] /= n
	}

	for _, v := range vectors {
		for i := range std {
			d := v[i] - mean[i]
			std[i] += d * d
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / n)
	}
	return mean, std
}

// Checkpoint builds a complete, valid model checkpoint from generated
// data: dataset statistics plus an identity-reconstruction network.
//
// The network uses the paired-ReLU construction: the hidden layer holds
// relu(x) and relu(-x), the output layer subtracts them, so the network
// reproduces its input exactly while still having a nonlinearity.
// noise > 0 perturbs the weights, giving the reconstruction a small
// controlled error.
func Checkpoint(p Profile, samples int, anomalyRate, noise float64, rng *rand.Rand) *model.Checkpoint {
	vectors := Dataset(p, samples, anomalyRate, rng)
	mean, std := Stats(vectors)

	const n = behavior.FeatureCount

	hidden := make([][]float64, 2*n)
	hiddenBias := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		hidden[i] = make([]float64, n)
		hidden[i][i] = 1
		hidden[n+i] = make([]float64, n)
		hidden[n+i][i] = -1
	}

	out := make([][]float64, n)
	outBias := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, 2*n)
		out[i][i] = 1
		out[i][n+i] = -1
	}

	if noise > 0 {
		perturb(hidden, noise, rng)
		perturb(out, noise, rng)
	}

	return &model.Checkpoint{
		Layers: []model.Layer{
			{Weights: hidden, Bias: hiddenBias, Activation: model.ActivationReLU},
			{Weights: out, Bias: outBias, Activation: model.ActivationLinear},
		},
		Mean:         mean,
		Std:          std,
		FeatureCount: n,
		EncodingDim:  2 * n,
		Version:      "1.0",
		TrainingInfo: map[string]any{
			"samples":      samples,
			"profile":      p.Name,
			"anomaly_rate": anomalyRate,
			"generated_at": time.Now().UTC().Format(time.RFC3339),
			"generator":    "modelgen",
		},
	}
}

func perturb(weights [][]float64, noise float64, rng *rand.Rand) {
	for _, row := range weights {
		for j := range row {
			row[j] += rng.NormFloat64() * noise
		}
	}
}
