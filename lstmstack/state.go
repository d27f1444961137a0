// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lstmstack

import (
	"github.com/nlpodyssey/spago/mat"
)

// State holds the recurrent state of one example: one (hidden, cell) pair per
// layer. Hidden and Cell always have the same length and per-entry sizes.
type State struct {
	Hidden []mat.Tensor
	Cell   []mat.Tensor
}

// NewState returns a zero state for a stack of the given depth and state size.
func NewState(layers, size int) *State {
	s := &State{
		Hidden: make([]mat.Tensor, layers),
		Cell:   make([]mat.Tensor, layers),
	}
	for i := 0; i < layers; i++ {
		s.Hidden[i] = ZeroVec(size)
		s.Cell[i] = ZeroVec(size)
	}
	return s
}

// Layers reports the depth of the state.
func (s *State) Layers() int {
	return len(s.Hidden)
}

// ZeroVec returns a fresh zero vector usable as a graph input.
func ZeroVec(size int) mat.Tensor {
	return mat.NewDense[float32](mat.WithShape(size))
}
