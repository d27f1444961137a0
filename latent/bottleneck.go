// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package latent

import (
	"encoding/gob"
	"fmt"

	"github.com/nlpodyssey/spago/ag"
	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/float"
	"github.com/nlpodyssey/spago/nn"
	"github.com/nlpodyssey/varnmt/lstmstack"
)

// Config is the static configuration of the bottleneck.
type Config struct {
	// Layers is the decoder stack depth the latent code maps back to.
	Layers int
	// StateSize is the per-layer state width after any bidirectional merge.
	StateSize int
	// LatentSize is the width of the latent code.
	LatentSize int
	// Deterministic makes Sample pass the mean through unchanged.
	Deterministic bool
	// PReLU enables the learned parametric nonlinearity on the three heads.
	PReLU bool
}

// FlatSize is the width of a flattened (hidden, cell) final state.
func (c Config) FlatSize() int {
	return c.Layers * c.StateSize * 2
}

var _ nn.Model = &Bottleneck{}

// Bottleneck maps encoder final states to a latent Gaussian, samples from it,
// and maps latent codes back to decoder initial states.
type Bottleneck struct {
	nn.Module
	// MuW/MuB project the flattened state to the latent mean.
	MuW *nn.Param
	MuB *nn.Param
	// NuW/NuB project the flattened state to the nonnegative auxiliary ν.
	NuW *nn.Param
	NuB *nn.Param
	// LogVarW/LogVarB project ν to the log-variance, scaled by −2·|·| so that
	// the variance never exceeds one.
	LogVarW *nn.Param
	LogVarB *nn.Param
	// DecW/DecB project a latent code back to a flattened decoder state.
	DecW *nn.Param
	DecB *nn.Param
	// PReLU slopes, nil unless enabled.
	AlphaMu     *nn.Param
	AlphaLogVar *nn.Param
	AlphaDec    *nn.Param
	Config      Config

	noise NoiseSource
}

func init() {
	gob.Register(&Bottleneck{})
}

// New returns a new bottleneck for the given geometry.
func New[T float.DType](c Config) *Bottleneck {
	m := &Bottleneck{
		MuW:     nn.NewParam(mat.NewDense[T](mat.WithShape(c.LatentSize, c.FlatSize()))),
		MuB:     nn.NewParam(mat.NewDense[T](mat.WithShape(c.LatentSize))),
		NuW:     nn.NewParam(mat.NewDense[T](mat.WithShape(c.LatentSize, c.FlatSize()))),
		NuB:     nn.NewParam(mat.NewDense[T](mat.WithShape(c.LatentSize))),
		LogVarW: nn.NewParam(mat.NewDense[T](mat.WithShape(c.LatentSize, c.LatentSize))),
		LogVarB: nn.NewParam(mat.NewDense[T](mat.WithShape(c.LatentSize))),
		DecW:    nn.NewParam(mat.NewDense[T](mat.WithShape(c.FlatSize(), c.LatentSize))),
		DecB:    nn.NewParam(mat.NewDense[T](mat.WithShape(c.FlatSize()))),
		Config:  c,
	}
	if c.PReLU {
		m.AlphaMu = nn.NewParam(mat.Scalar[T](0.25))
		m.AlphaLogVar = nn.NewParam(mat.Scalar[T](0.25))
		m.AlphaDec = nn.NewParam(mat.Scalar[T](0.25))
	}
	return m
}

// SetNoise overrides the standard-normal source used by Sample.
func (m *Bottleneck) SetNoise(src NoiseSource) {
	m.noise = src
}

// Encode maps a batch of final states to per-example latent means and
// log-variances. Each state must carry one (hidden, cell) pair per layer,
// directions already merged; the pairs are flattened in h‖c order per layer.
// The log-variance is nonpositive by construction.
func (m *Bottleneck) Encode(states []*lstmstack.State) (mu, logVar []mat.Tensor, err error) {
	mu = make([]mat.Tensor, len(states))
	logVar = make([]mat.Tensor, len(states))
	for e, s := range states {
		if s.Layers() != m.Config.Layers {
			return nil, nil, fmt.Errorf("latent: state with %d layers, expected %d", s.Layers(), m.Config.Layers)
		}
		flat := flatten(s)
		mu[e] = linear(m.MuW, flat, m.MuB)
		nu := ag.ReLU(linear(m.NuW, flat, m.NuB))
		lv := ag.ProdScalar(abs(linear(m.LogVarW, nu, m.LogVarB)), mat.Scalar(-2.0))
		if m.Config.PReLU {
			mu[e] = prelu(mu[e], m.AlphaMu)
			lv = prelu(lv, m.AlphaLogVar)
		}
		logVar[e] = lv
	}
	return mu, logVar, nil
}

// Sample draws one latent code per example. In stochastic mode
// z = μ + exp(0.5·logσ²)⊙ε with ε fresh standard normal per call; in
// deterministic mode z is μ itself.
func (m *Bottleneck) Sample(mu, logVar []mat.Tensor) []mat.Tensor {
	if m.Config.Deterministic {
		return mu
	}
	src := m.noise
	if src == nil {
		src = StandardNormal
	}
	z := make([]mat.Tensor, len(mu))
	for e := range mu {
		std := ag.Exp(ag.ProdScalar(logVar[e], mat.Scalar(0.5)))
		z[e] = ag.Add(ag.Prod(src(m.Config.LatentSize), std), mu[e])
	}
	return z
}

// Decode maps a batch of latent codes to decoder initial states, one
// (hidden, cell) pair per layer — the structural inverse of Encode's flatten.
func (m *Bottleneck) Decode(z []mat.Tensor) []*lstmstack.State {
	states := make([]*lstmstack.State, len(z))
	for e := range z {
		dec := linear(m.DecW, z[e], m.DecB)
		if m.Config.PReLU {
			dec = prelu(dec, m.AlphaDec)
		}
		s := &lstmstack.State{
			Hidden: make([]mat.Tensor, m.Config.Layers),
			Cell:   make([]mat.Tensor, m.Config.Layers),
		}
		size := m.Config.StateSize
		for l := 0; l < m.Config.Layers; l++ {
			base := l * 2 * size
			s.Hidden[l] = ag.Slice(dec, base, 0, base+size, 1)
			s.Cell[l] = ag.Slice(dec, base+size, 0, base+2*size, 1)
		}
		states[e] = s
	}
	return states
}

func flatten(s *lstmstack.State) mat.Tensor {
	parts := make([]mat.Tensor, 0, 2*len(s.Hidden))
	for l := range s.Hidden {
		parts = append(parts, s.Hidden[l], s.Cell[l])
	}
	return ag.Concat(parts...)
}

func linear(w, x, b mat.Tensor) mat.Tensor {
	return ag.Add(ag.Mul(w, x), b)
}

// abs is ReLU(x) + ReLU(−x), written with primitives shared by the rest of
// the graph.
func abs(x mat.Tensor) mat.Tensor {
	return ag.Add(ag.ReLU(x), ag.ReLU(neg(x)))
}

func neg(x mat.Tensor) mat.Tensor {
	return ag.ProdScalar(x, mat.Scalar(-1.0))
}

// prelu is ReLU(x) − α·ReLU(−x) with a learned scalar slope α.
func prelu(x mat.Tensor, alpha *nn.Param) mat.Tensor {
	return ag.Sub(ag.ReLU(x), ag.ProdScalar(ag.ReLU(neg(x)), alpha))
}
