package model

import (
	"fmt"
	"math"
)

// Dimensions of the temperature model: 36 hourly readings in, 24 hourly
// forecasts out.
const (
	InputSize = 36
	Horizon   = 24
)

// Activation names accepted in the model artifact.
const (
	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationTanh    = "tanh"
	ActivationSigmoid = "sigmoid"
)

// Layer is one dense layer. Weights are stored row-major as [out][in].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// Network is a pre-trained feed-forward regression model. It is immutable
// after construction and safe for concurrent use.
type Network struct {
	layers []Layer
	in     int
	out    int
}

// NewNetwork validates that consecutive layers chain and returns the model.
func NewNetwork(layers []Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: model has no layers", ErrIncompatibleArtifact)
	}

	in := 0
	for i, l := range layers {
		if len(l.Weights) == 0 {
			return nil, fmt.Errorf("%w: layer %d has no weights", ErrIncompatibleArtifact, i)
		}
		width := len(l.Weights[0])
		if i == 0 {
			in = width
		} else if width != len(layers[i-1].Weights) {
			return nil, fmt.Errorf("%w: layer %d expects %d inputs, previous layer emits %d",
				ErrIncompatibleArtifact, i, width, len(layers[i-1].Weights))
		}
		for r, row := range l.Weights {
			if len(row) != width {
				return nil, fmt.Errorf("%w: layer %d row %d has %d weights, want %d", ErrIncompatibleArtifact, i, r, len(row), width)
			}
		}
		if len(l.Bias) != len(l.Weights) {
			return nil, fmt.Errorf("%w: layer %d has %d biases for %d units", ErrIncompatibleArtifact, i, len(l.Bias), len(l.Weights))
		}
		switch l.Activation {
		case "", ActivationLinear, ActivationReLU, ActivationTanh, ActivationSigmoid:
		default:
			return nil, fmt.Errorf("%w: layer %d has unknown activation %q", ErrIncompatibleArtifact, i, l.Activation)
		}
	}

	return &Network{
		layers: layers,
		in:     in,
		out:    len(layers[len(layers)-1].Weights),
	}, nil
}

// InputWidth is the number of values Predict expects.
func (n *Network) InputWidth() int { return n.in }

// OutputWidth is the number of values Predict returns.
func (n *Network) OutputWidth() int { return n.out }

// Predict runs a forward pass.
func (n *Network) Predict(input []float64) ([]float64, error) {
	if len(input) != n.in {
		return nil, fmt.Errorf("model expects %d inputs, got %d", n.in, len(input))
	}

	x := input
	for _, l := range n.layers {
		y := make([]float64, len(l.Weights))
		for o, row := range l.Weights {
			sum := l.Bias[o]
			for j, w := range row {
				sum += w * x[j]
			}
			y[o] = activate(l.Activation, sum)
		}
		x = y
	}
	return x, nil
}

func activate(name string, v float64) float64 {
	switch name {
	case ActivationReLU:
		return math.Max(0, v)
	case ActivationTanh:
		return math.Tanh(v)
	case ActivationSigmoid:
		return 1 / (1 + math.Exp(-v))
	default:
		return v
	}
}
