// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package latent

import (
	"math"

	"github.com/nlpodyssey/spago/ag"
	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/rand"
)

// NoiseSource returns a fresh standard-normal vector of the given size.
// Sample calls it once per example per forward pass; implementations must not
// memoize draws.
type NoiseSource func(size int) mat.Tensor

// StandardNormal draws N(0, I) noise via Box–Muller from the global uniform
// source. Reproducibility comes from seeding that source, not from here.
func StandardNormal(size int) mat.Tensor {
	data := make([]float32, size)
	for i := 0; i < size; i += 2 {
		u1 := rand.Float[float64]()
		if u1 < 1e-12 {
			u1 = 1e-12
		}
		u2 := rand.Float[float64]()
		r := math.Sqrt(-2 * math.Log(u1))
		data[i] = float32(r * math.Cos(2*math.Pi*u2))
		if i+1 < size {
			data[i+1] = float32(r * math.Sin(2*math.Pi*u2))
		}
	}
	return mat.NewDense[float32](mat.WithShape(size), mat.WithBacking(data))
}

// GaussianKL is the divergence of N(μ, diag(exp(logσ²))) from the standard
// normal prior: −0.5·Σ(1 + logσ² − μ² − exp(logσ²)). Together with a
// reconstruction loss over the decoder logits it forms the training objective.
func GaussianKL(mu, logVar mat.Tensor) mat.Tensor {
	t := ag.Sub(ag.Sub(ag.AddScalar(logVar, mat.Scalar(1.0)), ag.Square(mu)), ag.Exp(logVar))
	return ag.ProdScalar(ag.ReduceSum(t), mat.Scalar(-0.5))
}
