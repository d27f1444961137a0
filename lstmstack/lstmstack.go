// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lstmstack

import (
	"encoding/gob"

	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/float"
	"github.com/nlpodyssey/spago/nn"
)

var _ nn.Model = &Model{}

// Model is a vertical stack of LSTM cells advanced one timestep at a time.
// The input flows through the cells bottom-up; dropout is applied to the
// inter-layer activations, never after the top cell, and only in training.
type Model struct {
	nn.Module
	Cells   []*Cell
	Dropout float64

	training bool
	rand     UniformSource
}

func init() {
	gob.Register(&Model{})
}

// New returns a stack of the given depth. The first cell consumes vectors of
// size in, every other cell consumes the hidden vector below it.
func New[T float.DType](layers, in, hidden int, dropout float64) *Model {
	m := &Model{Dropout: dropout}
	size := in
	for i := 0; i < layers; i++ {
		m.Cells = append(m.Cells, NewCell[T](size, hidden))
		size = hidden
	}
	return m
}

// SetTraining switches inter-layer dropout on or off.
func (m *Model) SetTraining(v bool) {
	m.training = v
}

// SetRand overrides the uniform source used for dropout masks.
func (m *Model) SetRand(src UniformSource) {
	m.rand = src
}

// Forward performs one timestep for one example, returning the top cell's
// hidden vector and the updated state. The new state has exactly the shape of
// the one passed in; mismatched shapes are a caller bug.
func (m *Model) Forward(x mat.Tensor, state *State) (mat.Tensor, *State) {
	next := &State{
		Hidden: make([]mat.Tensor, len(m.Cells)),
		Cell:   make([]mat.Tensor, len(m.Cells)),
	}
	for i, cell := range m.Cells {
		h, c := cell.Next(x, state.Hidden[i], state.Cell[i])
		next.Hidden[i] = h
		next.Cell[i] = c
		x = h
		if i+1 != len(m.Cells) && m.training {
			x = Dropout(x, m.Dropout, m.rand)
		}
	}
	return x, next
}
