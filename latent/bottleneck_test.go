// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package latent

import (
	"math"
	"testing"

	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/varnmt/lstmstack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicSampleIsMean(t *testing.T) {
	m := New[float32](Config{Layers: 1, StateSize: 4, LatentSize: 3, Deterministic: true})

	mu := []mat.Tensor{vec(1, -2, 3)}
	logVar := []mat.Tensor{vec(-1, 0, -5)}

	z := m.Sample(mu, logVar)
	require.Len(t, z, 1)
	assert.Same(t, mu[0], z[0])
}

func TestSampleReparameterization(t *testing.T) {
	m := New[float32](Config{Layers: 1, StateSize: 4, LatentSize: 2})
	m.SetNoise(func(size int) mat.Tensor {
		data := make([]float32, size)
		for i := range data {
			data[i] = 1
		}
		return mat.NewDense[float32](mat.WithShape(size), mat.WithBacking(data))
	})

	mu := []mat.Tensor{vec(1, 2)}
	logVar := []mat.Tensor{vec(0, float32(math.Log(4)))}

	z := m.Sample(mu, logVar)
	require.Len(t, z, 1)
	// z = μ + exp(0.5·logσ²)⊙ε with ε = 1
	assert.InDeltaSlice(t, []float64{2, 4}, z[0].Value().Data().F64(), 1e-4)
}

func TestEncodeDecodeShapeRoundTrip(t *testing.T) {
	cases := []Config{
		{Layers: 1, StateSize: 4, LatentSize: 3, Deterministic: true},
		{Layers: 2, StateSize: 6, LatentSize: 5, Deterministic: true},
		{Layers: 3, StateSize: 2, LatentSize: 7},
		{Layers: 2, StateSize: 8, LatentSize: 4, PReLU: true, Deterministic: true},
	}
	for _, c := range cases {
		m := New[float32](c)

		states := []*lstmstack.State{
			lstmstack.NewState(c.Layers, c.StateSize),
			lstmstack.NewState(c.Layers, c.StateSize),
		}
		mu, logVar, err := m.Encode(states)
		require.NoError(t, err)
		require.Len(t, mu, 2)
		require.Len(t, logVar, 2)
		assert.Equal(t, c.LatentSize, mu[0].Value().Size())
		assert.Equal(t, c.LatentSize, logVar[0].Value().Size())

		back := m.Decode(m.Sample(mu, logVar))
		require.Len(t, back, 2)
		for _, s := range back {
			require.Equal(t, c.Layers, s.Layers())
			for l := 0; l < c.Layers; l++ {
				assert.Equal(t, c.StateSize, s.Hidden[l].Value().Size())
				assert.Equal(t, c.StateSize, s.Cell[l].Value().Size())
			}
		}
	}
}

func TestEncodeRejectsWrongDepth(t *testing.T) {
	m := New[float32](Config{Layers: 2, StateSize: 4, LatentSize: 3})
	_, _, err := m.Encode([]*lstmstack.State{lstmstack.NewState(1, 4)})
	assert.Error(t, err)
}

func TestLogVarNeverPositive(t *testing.T) {
	c := Config{Layers: 1, StateSize: 3, LatentSize: 4}
	m := New[float32](c)

	// arbitrary mixed-sign weights of large magnitude
	fill := func(p interface{ ReplaceValue(mat.Matrix) }, rows, cols int) {
		data := make([]float32, rows*cols)
		for i := range data {
			data[i] = float32(i%7-3) * 4.5
		}
		p.ReplaceValue(mat.NewDense[float32](mat.WithShape(rows, cols), mat.WithBacking(data)))
	}
	fill(m.NuW, c.LatentSize, c.FlatSize())
	fill(m.LogVarW, c.LatentSize, c.LatentSize)
	m.NuB.ReplaceValue(mat.NewDense[float32](mat.WithShape(c.LatentSize), mat.WithBacking([]float32{5, -5, 0.5, 100})))
	m.LogVarB.ReplaceValue(mat.NewDense[float32](mat.WithShape(c.LatentSize), mat.WithBacking([]float32{-3, 3, 0, 42})))

	state := &lstmstack.State{
		Hidden: []mat.Tensor{vec(100, -100, 7)},
		Cell:   []mat.Tensor{vec(-0.5, 3000, 0)},
	}
	_, logVar, err := m.Encode([]*lstmstack.State{state})
	require.NoError(t, err)

	for _, v := range logVar[0].Value().Data().F64() {
		assert.LessOrEqual(t, v, 1e-6)
	}
}

func TestGaussianKL(t *testing.T) {
	kl := GaussianKL(vec(0, 0), vec(0, 0))
	assert.InDelta(t, 0, kl.Value().Data().F64()[0], 1e-6)

	kl = GaussianKL(vec(1), vec(0))
	assert.InDelta(t, 0.5, kl.Value().Data().F64()[0], 1e-6)

	kl = GaussianKL(vec(0), vec(1))
	assert.InDelta(t, -0.5*(2-math.E), kl.Value().Data().F64()[0], 1e-4)
}

func vec(values ...float32) mat.Tensor {
	return mat.NewDense[float32](mat.WithShape(len(values)), mat.WithBacking(values))
}
