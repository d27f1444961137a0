// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package varnmt implements a latent-variable sequence-to-sequence translation
// model: a bidirectional LSTM encoder, a Gaussian bottleneck sampled with the
// reparameterization trick, and an autoregressive LSTM decoder conditioned on
// the sampled code.
package varnmt

import (
	"encoding/gob"
	"fmt"

	"github.com/nlpodyssey/spago/ag"
	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/float"
	"github.com/nlpodyssey/spago/nn"
	"github.com/nlpodyssey/spago/nn/embedding"
	"github.com/nlpodyssey/varnmt/decoder"
	"github.com/nlpodyssey/varnmt/encoder"
	"github.com/nlpodyssey/varnmt/latent"
	"github.com/nlpodyssey/varnmt/lstmstack"
	"github.com/nlpodyssey/varnmt/vocab"
	"github.com/rs/zerolog/log"
)

var _ nn.Model = &Model{}

// Model is the full encode → sample → decode pipeline. It owns every learned
// parameter, including the embedding tables the encoder and decoder share by
// reference; the external optimizer mutates them between forward calls.
type Model struct {
	nn.Module
	SrcEmbeddings *embedding.Model
	TgtEmbeddings *embedding.Model
	Encoder       *encoder.Model
	Decoder       *decoder.Model
	Bottleneck    *latent.Bottleneck
	Config        Config

	training bool
	rand     lstmstack.UniformSource
}

func init() {
	gob.Register(&Model{})
}

// New builds a model from a validated configuration. With ShareEmbeddings the
// decoder reads the very same table instance as the encoder.
func New[T float.DType](c Config) (*Model, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	srcEmbs := embedding.New[T](c.SrcVocabSize, c.WordVecSize)
	tgtEmbs := srcEmbs
	if !c.ShareEmbeddings {
		tgtEmbs = embedding.New[T](c.TgtVocabSize, c.WordVecSize)
	}

	enc, err := encoder.New[T](encoder.Config{
		Layers:        c.Layers,
		Bidirectional: c.Bidirectional,
		WordVecSize:   c.WordVecSize,
		RNNSize:       c.RNNSize,
		Dropout:       c.Dropout,
	}, srcEmbs)
	if err != nil {
		return nil, err
	}

	dec := decoder.New[T](decoder.Config{
		Layers:        c.Layers,
		WordVecSize:   c.WordVecSize,
		RNNSize:       c.RNNSize,
		Dropout:       c.Dropout,
		DynamicDecode: c.DynamicDecode,
	}, tgtEmbs, decoder.NewLinear[T](c.RNNSize, c.TgtVocabSize))

	bot := latent.New[T](latent.Config{
		Layers:        c.Layers,
		StateSize:     c.RNNSize,
		LatentSize:    c.LatentSize,
		Deterministic: c.Deterministic,
		PReLU:         c.PReLU,
	})

	return &Model{
		SrcEmbeddings: srcEmbs,
		TgtEmbeddings: tgtEmbs,
		Encoder:       enc,
		Decoder:       dec,
		Bottleneck:    bot,
		Config:        c,
	}, nil
}

// SetTraining switches training-only behavior on or off: dropout and the
// scheduled-sampling token replacement.
func (m *Model) SetTraining(v bool) {
	m.training = v
	m.Encoder.SetTraining(v)
	m.Decoder.SetTraining(v)
}

// SetRand overrides the uniform source behind dropout masks and the
// scheduled-sampling draws.
func (m *Model) SetRand(src lstmstack.UniformSource) {
	m.rand = src
	m.Encoder.SetRand(src)
	m.Decoder.SetRand(src)
}

// Forward runs the full pass over time-major token matrices. The final target
// token is dropped before decoding (it is predicted, never consumed), so the
// logits sequence is one step shorter than tgt. The returned μ and logσ² hold
// one latent vector per example; callers combine the logits with a
// reconstruction loss and the pair with latent.GaussianKL.
func (m *Model) Forward(src, tgt [][]int, step int) (logits [][]mat.Tensor, mu, logVar []mat.Tensor, err error) {
	if len(tgt) < 2 {
		return nil, nil, nil, fmt.Errorf("varnmt: target must hold at least two timesteps, got %d", len(tgt))
	}
	if len(src) == 0 || len(src[0]) != len(tgt[0]) {
		return nil, nil, nil, fmt.Errorf("varnmt: source and target batch sizes differ")
	}

	dec := tgt[:len(tgt)-1]
	if m.training && m.Config.FeedGroundTruthProb < 1 {
		dec = m.replaceByUnk(dec, m.Config.FeedGroundTruthProb)
	}

	log.Trace().Msgf("forward pass: %d source steps, %d target steps, batch %d", len(src), len(dec), len(src[0]))

	mu, logVar, err = m.Encode(src, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	z := m.Bottleneck.Sample(mu, logVar)
	logits, err = m.Decode(z, dec, step)
	if err != nil {
		return nil, nil, nil, err
	}
	return logits, mu, logVar, nil
}

// Encode runs the source side up to the latent distribution. lengths, when
// non-nil, packs the batch so padding never leaks into the states.
func (m *Model) Encode(src [][]int, lengths []int) (mu, logVar []mat.Tensor, err error) {
	states, _, err := m.Encoder.Forward(src, lengths, nil)
	if err != nil {
		return nil, nil, err
	}
	return m.Bottleneck.Encode(m.mergeDirections(states))
}

// Decode drives the decoder from a batch of latent codes over the given
// (already truncated) target matrix.
func (m *Model) Decode(z []mat.Tensor, tgt [][]int, step int) ([][]mat.Tensor, error) {
	states := m.Bottleneck.Decode(z)
	initOutput := make([]mat.Tensor, len(z))
	for e := range initOutput {
		initOutput[e] = lstmstack.ZeroVec(m.Config.RNNSize)
	}
	logits, _, err := m.Decoder.Forward(tgt, states, initOutput, step)
	return logits, err
}

// mergeDirections folds the encoder's forward/backward pairs into one
// concatenated vector per layer, matching the flatten order the bottleneck
// expects. It is the identity for a unidirectional encoder.
func (m *Model) mergeDirections(states []*lstmstack.State) []*lstmstack.State {
	if !m.Config.Bidirectional {
		return states
	}
	merged := make([]*lstmstack.State, len(states))
	for e, s := range states {
		ms := &lstmstack.State{
			Hidden: make([]mat.Tensor, m.Config.Layers),
			Cell:   make([]mat.Tensor, m.Config.Layers),
		}
		for l := 0; l < m.Config.Layers; l++ {
			ms.Hidden[l] = ag.Concat(s.Hidden[2*l], s.Hidden[2*l+1])
			ms.Cell[l] = ag.Concat(s.Cell[2*l], s.Cell[2*l+1])
		}
		merged[e] = ms
	}
	return merged
}

// replaceByUnk returns a copy of tgt where every non-first position keeps its
// token with probability p and becomes the unknown token otherwise, with one
// independent draw per position. The first row is always preserved: it
// carries the start-of-sequence marker and must remain authentic.
func (m *Model) replaceByUnk(tgt [][]int, p float64) [][]int {
	src := m.rand
	if src == nil {
		src = lstmstack.DefaultUniform
	}
	out := make([][]int, len(tgt))
	out[0] = tgt[0]
	for t := 1; t < len(tgt); t++ {
		row := make([]int, len(tgt[t]))
		for e := range row {
			if src() < p {
				row[e] = tgt[t][e]
			} else {
				row[e] = vocab.Unk
			}
		}
		out[t] = row
	}
	return out
}
