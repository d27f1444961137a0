// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lstmstack

import (
	"github.com/nlpodyssey/spago/ag"
	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/rand"
)

// UniformSource yields values in [0, 1). Stochastic components accept one so
// tests can fix their draws; a nil source falls back to the global generator.
type UniformSource func() float64

// DefaultUniform draws from the global random source.
func DefaultUniform() float64 {
	return rand.Float[float64]()
}

// Dropout applies an inverted-dropout mask to x, drawing one value per element
// from src. It is the identity when p is zero. The mask is never persisted.
func Dropout(x mat.Tensor, p float64, src UniformSource) mat.Tensor {
	if p == 0 {
		return x
	}
	if src == nil {
		src = DefaultUniform
	}
	keep := 1 - p
	data := make([]float32, x.Size())
	for i := range data {
		if src() < keep {
			data[i] = float32(1 / keep)
		}
	}
	mask := mat.NewDense[float32](mat.WithShape(len(data)), mat.WithBacking(data))
	return ag.Prod(x, mask)
}
