// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decoder

import (
	"encoding/gob"
	"fmt"

	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/float"
	"github.com/nlpodyssey/spago/nn"
	"github.com/nlpodyssey/spago/nn/embedding"
	"github.com/nlpodyssey/varnmt/lstmstack"
)

// Config is the static configuration of the decoder.
type Config struct {
	Layers      int
	WordVecSize int
	RNNSize     int
	Dropout     float64
	// DynamicDecode feeds the decoder its own previous prediction instead of
	// the ground-truth token at every step after the first.
	DynamicDecode bool
}

var _ nn.Model = &Model{}

// Model embeds a target token sequence and drives the cell stack one timestep
// at a time, projecting each step's output to vocabulary logits through the
// generator collaborator.
//
// The embedding table is shared with the encoder and not owned here; after a
// gob round trip it must be re-attached with SetEmbeddings.
type Model struct {
	nn.Module
	Stack     *lstmstack.Model
	Generator Generator
	Config    Config

	embs     *embedding.Model
	training bool
	rand     lstmstack.UniformSource
}

func init() {
	gob.Register(&Model{})
}

// New returns a new decoder reading from the given embedding table and
// projecting through the given generator.
func New[T float.DType](c Config, embs *embedding.Model, gen Generator) *Model {
	return &Model{
		Stack:     lstmstack.New[T](c.Layers, c.WordVecSize, c.RNNSize, c.Dropout),
		Generator: gen,
		Config:    c,
		embs:      embs,
	}
}

// SetEmbeddings attaches the shared embedding table.
func (m *Model) SetEmbeddings(embs *embedding.Model) {
	m.embs = embs
}

// SetTraining switches dropout on or off.
func (m *Model) SetTraining(v bool) {
	m.training = v
	m.Stack.SetTraining(v)
}

// SetRand overrides the uniform source used for dropout masks.
func (m *Model) SetRand(src lstmstack.UniformSource) {
	m.rand = src
	m.Stack.SetRand(src)
}

// Forward consumes a time-major target matrix and produces one logits vector
// per timestep per example plus the final recurrent states. The loop runs
// exactly once per input timestep; the caller fixes the length.
//
// initOutput, when non-nil, must hold one vector per example (the previous
// top-layer output, reserved for input feeding). step is the caller's offset
// into the full target sequence.
func (m *Model) Forward(tgt [][]int, states []*lstmstack.State, initOutput []mat.Tensor, step int) ([][]mat.Tensor, []*lstmstack.State, error) {
	if len(tgt) == 0 || len(tgt[0]) == 0 {
		return nil, nil, fmt.Errorf("decoder: empty input sequence")
	}
	batch := len(tgt[0])
	if len(states) != batch {
		return nil, nil, fmt.Errorf("decoder: %d initial states for a batch of %d", len(states), batch)
	}
	if initOutput != nil && len(initOutput) != batch {
		return nil, nil, fmt.Errorf("decoder: %d initial outputs for a batch of %d", len(initOutput), batch)
	}

	outputs := make([][]mat.Tensor, len(tgt))
	for t := range outputs {
		outputs[t] = make([]mat.Tensor, batch)
	}
	final := make([]*lstmstack.State, batch)

	for e := 0; e < batch; e++ {
		logits, state, err := m.forwardExample(column(tgt, e), states[e])
		if err != nil {
			return nil, nil, err
		}
		for t := range logits {
			outputs[t][e] = logits[t]
		}
		final[e] = state
	}
	return outputs, final, nil
}

func (m *Model) forwardExample(tokens []int, state *lstmstack.State) ([]mat.Tensor, *lstmstack.State, error) {
	emb, err := m.embs.Encode(tokens)
	if err != nil {
		return nil, nil, fmt.Errorf("decoder: failed to embed tokens: %w", err)
	}
	logits := make([]mat.Tensor, len(tokens))
	var input mat.Tensor
	for t := range tokens {
		if !m.Config.DynamicDecode || t == 0 {
			input = emb[t]
		}
		var out mat.Tensor
		out, state = m.Stack.Forward(input, state)
		if m.training {
			out = lstmstack.Dropout(out, m.Config.Dropout, m.rand)
		}
		logit := m.Generator.Forward(out)
		if m.Config.DynamicDecode {
			best := logit.Value().(mat.Matrix).ArgMax()
			next, err := m.embs.Encode([]int{best})
			if err != nil {
				return nil, nil, fmt.Errorf("decoder: failed to embed predicted token %d: %w", best, err)
			}
			input = next[0]
		}
		logits[t] = logit
	}
	return logits, state, nil
}

func column(tgt [][]int, e int) []int {
	tokens := make([]int, len(tgt))
	for t := range tgt {
		tokens[t] = tgt[t][e]
	}
	return tokens
}
