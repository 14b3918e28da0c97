package model

import (
	"fmt"
	"math"
)

// Network is the reconstruction capability a checkpoint provides. Forward
// maps a normalized feature vector to its reconstruction; input and output
// have the same dimensionality. Implementations must be safe for concurrent
// use — artifacts are shared across request goroutines.
type Network interface {
	Forward(in []float64) []float64
}

// Layer is one dense layer of a feedforward network. Weights is row-major:
// Weights[i] holds the input weights of output unit i.
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// Supported layer activations.
const (
	ActivationReLU    = "relu"
	ActivationSigmoid = "sigmoid"
	ActivationLinear  = "linear"
)

// feedforward applies dense layers in order. Built once by the loader and
// never mutated afterwards.
type feedforward struct {
	layers []Layer
}

// NewNetwork validates layer shapes and builds a feedforward network.
// Exposed for checkpoint generation and tests; the loader uses the same path.
func NewNetwork(layers []Layer) (Network, error) {
	return newFeedforward(layers)
}

// newFeedforward validates layer shapes and returns the network.
// Layers must be non-empty, rectangular, and dimension-chained: each
// layer's input width equals the previous layer's output width.
func newFeedforward(layers []Layer) (*feedforward, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("network has no layers")
	}
	prevOut := -1
	for i, l := range layers {
		if len(l.Weights) == 0 {
			return nil, fmt.Errorf("layer %d: empty weights", i)
		}
		in := len(l.Weights[0])
		if in == 0 {
			return nil, fmt.Errorf("layer %d: zero-width weights", i)
		}
		for r, row := range l.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("layer %d: ragged weights at row %d", i, r)
			}
		}
		if len(l.Bias) != len(l.Weights) {
			return nil, fmt.Errorf("layer %d: bias length %d != %d units", i, len(l.Bias), len(l.Weights))
		}
		if prevOut >= 0 && in != prevOut {
			return nil, fmt.Errorf("layer %d: input width %d != previous output %d", i, in, prevOut)
		}
		switch l.Activation {
		case ActivationReLU, ActivationSigmoid, ActivationLinear, "":
		default:
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		prevOut = len(l.Weights)
	}
	return &feedforward{layers: layers}, nil
}

// InputSize returns the input width of the first layer.
func (n *feedforward) InputSize() int {
	return len(n.layers[0].Weights[0])
}

// OutputSize returns the output width of the last layer.
func (n *feedforward) OutputSize() int {
	return len(n.layers[len(n.layers)-1].Weights)
}

// Forward runs the input through every layer in order.
func (n *feedforward) Forward(in []float64) []float64 {
	x := in
	for _, l := range n.layers {
		out := make([]float64, len(l.Weights))
		for i, row := range l.Weights {
			sum := l.Bias[i]
			for j, w := range row {
				sum += w * x[j]
			}
			out[i] = activate(sum, l.Activation)
		}
		x = out
	}
	return x
}

func activate(x float64, fn string) float64 {
	switch fn {
	case ActivationReLU:
		if x < 0 {
			return 0
		}
		return x
	case ActivationSigmoid:
		return 1 / (1 + math.Exp(-x))
	default: // linear
		return x
	}
}
