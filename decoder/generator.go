// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decoder

import (
	"encoding/gob"

	"github.com/nlpodyssey/spago/ag"
	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/float"
	"github.com/nlpodyssey/spago/nn"
)

// Generator projects a decoder hidden vector to vocabulary logits. The decoder
// treats it as an opaque differentiable map, so alternative heads (weight-tied,
// factored, adaptive) can be plugged in.
type Generator interface {
	Forward(x mat.Tensor) mat.Tensor
}

var _ Generator = &Linear{}

// Linear is the default generator, a plain projection to vocabulary size.
type Linear struct {
	nn.Module
	W *nn.Param
}

func init() {
	gob.Register(&Linear{})
}

// NewLinear returns a generator projecting vectors of size in to vocab logits.
func NewLinear[T float.DType](in, vocab int) *Linear {
	return &Linear{
		W: nn.NewParam(mat.NewDense[T](mat.WithShape(vocab, in))),
	}
}

// Forward computes the logits for one hidden vector.
func (m *Linear) Forward(x mat.Tensor) mat.Tensor {
	return ag.Mul(m.W, x)
}
