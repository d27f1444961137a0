// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package encoder

import (
	"encoding/gob"
	"fmt"

	"github.com/nlpodyssey/spago/ag"
	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/float"
	"github.com/nlpodyssey/spago/nn"
	"github.com/nlpodyssey/spago/nn/embedding"
	"github.com/nlpodyssey/varnmt/lstmstack"
)

// Config is the static configuration of the encoder.
type Config struct {
	Layers        int
	Bidirectional bool
	WordVecSize   int
	RNNSize       int
	Dropout       float64
}

// NumDirections is 2 when the encoder is bidirectional, 1 otherwise.
func (c Config) NumDirections() int {
	if c.Bidirectional {
		return 2
	}
	return 1
}

// HiddenSize is the per-direction recurrent state size.
func (c Config) HiddenSize() int {
	return c.RNNSize / c.NumDirections()
}

var _ nn.Model = &Model{}

// Model embeds a source token sequence and runs a multi-layer, optionally
// bidirectional LSTM over it in a single pass. It needs no autoregressive
// feedback, so each example is consumed whole.
//
// The embedding table is shared with the decoder and not owned here; after a
// gob round trip it must be re-attached with SetEmbeddings.
type Model struct {
	nn.Module
	FwdCells []*lstmstack.Cell
	BwdCells []*lstmstack.Cell
	Config   Config

	embs     *embedding.Model
	training bool
	rand     lstmstack.UniformSource
}

func init() {
	gob.Register(&Model{})
}

// New returns a new encoder reading from the given embedding table.
// The recurrent size must be divisible by the number of directions.
func New[T float.DType](c Config, embs *embedding.Model) (*Model, error) {
	if c.RNNSize%c.NumDirections() != 0 {
		return nil, fmt.Errorf("encoder: rnn size %d not divisible by %d directions", c.RNNSize, c.NumDirections())
	}
	m := &Model{Config: c, embs: embs}
	in := c.WordVecSize
	for i := 0; i < c.Layers; i++ {
		m.FwdCells = append(m.FwdCells, lstmstack.NewCell[T](in, c.HiddenSize()))
		if c.Bidirectional {
			m.BwdCells = append(m.BwdCells, lstmstack.NewCell[T](in, c.HiddenSize()))
		}
		in = c.RNNSize
	}
	return m, nil
}

// SetEmbeddings attaches the shared embedding table.
func (m *Model) SetEmbeddings(embs *embedding.Model) {
	m.embs = embs
}

// SetTraining switches inter-layer dropout on or off.
func (m *Model) SetTraining(v bool) {
	m.training = v
}

// SetRand overrides the uniform source used for dropout masks.
func (m *Model) SetRand(src lstmstack.UniformSource) {
	m.rand = src
}

// Forward runs the network over a time-major token matrix.
//
// lengths, when non-nil, gives the true length of each example: positions at
// or beyond it never touch the recurrent state, and the corresponding outputs
// come back as zero vectors so the result keeps the full padded shape.
//
// init, when non-nil, supplies the initial state of each example, holding
// layers×directions entries ordered forward/backward per layer; the final
// states follow the same layout. The second result is the top-layer output
// sequence, indexed [time][example].
func (m *Model) Forward(src [][]int, lengths []int, init []*lstmstack.State) ([]*lstmstack.State, [][]mat.Tensor, error) {
	if len(src) == 0 || len(src[0]) == 0 {
		return nil, nil, fmt.Errorf("encoder: empty input sequence")
	}
	batch := len(src[0])
	if lengths != nil && len(lengths) != batch {
		return nil, nil, fmt.Errorf("encoder: %d lengths for a batch of %d", len(lengths), batch)
	}
	if init != nil && len(init) != batch {
		return nil, nil, fmt.Errorf("encoder: %d initial states for a batch of %d", len(init), batch)
	}

	steps := len(src)
	states := make([]*lstmstack.State, batch)
	outputs := make([][]mat.Tensor, steps)
	for t := range outputs {
		outputs[t] = make([]mat.Tensor, batch)
	}

	for e := 0; e < batch; e++ {
		n := steps
		if lengths != nil {
			n = lengths[e]
			if n < 1 || n > steps {
				return nil, nil, fmt.Errorf("encoder: length %d out of range for a sequence of %d steps", n, steps)
			}
		}
		var s0 *lstmstack.State
		if init != nil {
			s0 = init[e]
		}
		xs, final, err := m.forwardExample(column(src, e, n), s0)
		if err != nil {
			return nil, nil, err
		}
		states[e] = final
		for t := 0; t < n; t++ {
			outputs[t][e] = xs[t]
		}
		for t := n; t < steps; t++ {
			outputs[t][e] = lstmstack.ZeroVec(m.Config.RNNSize)
		}
	}
	return states, outputs, nil
}

func (m *Model) forwardExample(tokens []int, init *lstmstack.State) ([]mat.Tensor, *lstmstack.State, error) {
	xs, err := m.embs.Encode(tokens)
	if err != nil {
		return nil, nil, fmt.Errorf("encoder: failed to embed tokens: %w", err)
	}
	final := &lstmstack.State{}
	for l := 0; l < m.Config.Layers; l++ {
		h0, c0 := m.initPair(init, l, 0)
		fwd, fh, fc := runDirection(m.FwdCells[l], xs, false, h0, c0)
		final.Hidden = append(final.Hidden, fh)
		final.Cell = append(final.Cell, fc)
		if m.Config.Bidirectional {
			h0, c0 = m.initPair(init, l, 1)
			bwd, bh, bc := runDirection(m.BwdCells[l], xs, true, h0, c0)
			final.Hidden = append(final.Hidden, bh)
			final.Cell = append(final.Cell, bc)
			ys := make([]mat.Tensor, len(xs))
			for t := range ys {
				ys[t] = ag.Concat(fwd[t], bwd[t])
			}
			xs = ys
		} else {
			xs = fwd
		}
		if l+1 != m.Config.Layers && m.training {
			for t := range xs {
				xs[t] = lstmstack.Dropout(xs[t], m.Config.Dropout, m.rand)
			}
		}
	}
	return xs, final, nil
}

func (m *Model) initPair(init *lstmstack.State, layer, direction int) (h, c mat.Tensor) {
	if init == nil {
		return lstmstack.ZeroVec(m.Config.HiddenSize()), lstmstack.ZeroVec(m.Config.HiddenSize())
	}
	i := layer*m.Config.NumDirections() + direction
	return init.Hidden[i], init.Cell[i]
}

func runDirection(cell *lstmstack.Cell, xs []mat.Tensor, reverse bool, h, c mat.Tensor) ([]mat.Tensor, mat.Tensor, mat.Tensor) {
	ys := make([]mat.Tensor, len(xs))
	for i := 0; i < len(xs); i++ {
		t := i
		if reverse {
			t = len(xs) - 1 - i
		}
		h, c = cell.Next(xs[t], h, c)
		ys[t] = h
	}
	return ys, h, c
}

func column(src [][]int, e, n int) []int {
	tokens := make([]int, n)
	for t := 0; t < n; t++ {
		tokens[t] = src[t][e]
	}
	return tokens
}
