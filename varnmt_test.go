// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package varnmt

import (
	"path/filepath"
	"testing"

	"github.com/nlpodyssey/varnmt/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Layers:              1,
		WordVecSize:         4,
		RNNSize:             4,
		LatentSize:          3,
		SrcVocabSize:        10,
		TgtVocabSize:        10,
		Deterministic:       true,
		FeedGroundTruthProb: 1,
	}
}

func TestForward(t *testing.T) {
	m, err := New[float32](testConfig())
	require.NoError(t, err)

	src := [][]int{{vocab.Bos}, {5}, {vocab.Eos}}
	tgt := [][]int{{vocab.Bos}, {7}, {vocab.Eos}, {vocab.Pad}}

	logits, mu, logVar, err := m.Forward(src, tgt, 0)
	require.NoError(t, err)

	// the final target token is dropped before decoding
	require.Len(t, logits, 3)
	require.Len(t, logits[0], 1)
	assert.Equal(t, 10, logits[0][0].Value().Size())

	require.Len(t, mu, 1)
	assert.Equal(t, 3, mu[0].Value().Size())
	require.Len(t, logVar, 1)
	for _, v := range logVar[0].Value().Data().F64() {
		assert.LessOrEqual(t, v, 1e-6)
	}
}

func TestForwardBidirectional(t *testing.T) {
	c := testConfig()
	c.Bidirectional = true
	c.Layers = 2
	m, err := New[float32](c)
	require.NoError(t, err)

	src := [][]int{{vocab.Bos, vocab.Bos}, {4, 5}, {vocab.Eos, vocab.Eos}}
	tgt := [][]int{{vocab.Bos, vocab.Bos}, {6, 7}, {vocab.Eos, vocab.Eos}}

	logits, mu, _, err := m.Forward(src, tgt, 0)
	require.NoError(t, err)
	require.Len(t, logits, 2)
	require.Len(t, logits[0], 2)
	require.Len(t, mu, 2)
	assert.Equal(t, 3, mu[0].Value().Size())
}

func TestForwardPreconditions(t *testing.T) {
	m, err := New[float32](testConfig())
	require.NoError(t, err)

	_, _, _, err = m.Forward([][]int{{2}}, [][]int{{2}}, 0)
	assert.Error(t, err)

	_, _, _, err = m.Forward([][]int{{2, 2}}, [][]int{{2}, {3}}, 0)
	assert.Error(t, err)
}

func TestReplaceByUnk(t *testing.T) {
	m, err := New[float32](testConfig())
	require.NoError(t, err)
	m.SetTraining(true)

	tgt := [][]int{{vocab.Bos, vocab.Bos}, {5, 6}, {7, 8}}

	// p = 0 replaces every non-first token
	m.SetRand(func() float64 { return 0 })
	out := m.replaceByUnk(tgt, 0)
	assert.Equal(t, []int{vocab.Bos, vocab.Bos}, out[0])
	assert.Equal(t, []int{vocab.Unk, vocab.Unk}, out[1])
	assert.Equal(t, []int{vocab.Unk, vocab.Unk}, out[2])

	// p = 1 keeps everything, since the draws live in [0, 1)
	out = m.replaceByUnk(tgt, 1)
	assert.Equal(t, tgt, out)

	// the input is never mutated
	assert.Equal(t, []int{5, 6}, tgt[1])
}

func TestConfigValidate(t *testing.T) {
	c := testConfig()
	require.NoError(t, c.Validate())

	bad := c
	bad.Layers = 0
	assert.Error(t, bad.Validate())

	bad = c
	bad.Bidirectional = true
	bad.RNNSize = 5
	assert.Error(t, bad.Validate())

	bad = c
	bad.Dropout = 1
	assert.Error(t, bad.Validate())

	bad = c
	bad.FeedGroundTruthProb = 1.5
	assert.Error(t, bad.Validate())

	bad = c
	bad.ShareEmbeddings = true
	bad.TgtVocabSize = 7
	assert.Error(t, bad.Validate())
}

func TestDumpAndLoad(t *testing.T) {
	c := testConfig()
	c.ShareEmbeddings = true
	m, err := New[float32](c)
	require.NoError(t, err)

	filename := filepath.Join(t.TempDir(), DefaultOutputFilename)
	require.NoError(t, Dump(m, filename))

	loaded, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, c, loaded.Config)
	assert.Same(t, loaded.SrcEmbeddings, loaded.TgtEmbeddings)

	src := [][]int{{vocab.Bos}, {5}, {vocab.Eos}}
	tgt := [][]int{{vocab.Bos}, {7}, {vocab.Eos}}
	logits, mu, _, err := loaded.Forward(src, tgt, 0)
	require.NoError(t, err)
	require.Len(t, logits, 2)
	assert.Equal(t, 10, logits[0][0].Value().Size())
	assert.Equal(t, 3, mu[0].Value().Size())
}
