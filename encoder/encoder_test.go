// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package encoder

import (
	"testing"

	"github.com/nlpodyssey/spago/nn/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsIndivisibleRNNSize(t *testing.T) {
	_, err := New[float32](Config{
		Layers:        1,
		Bidirectional: true,
		WordVecSize:   4,
		RNNSize:       5,
	}, embedding.New[float32](10, 4))
	assert.Error(t, err)
}

func TestForwardShapes(t *testing.T) {
	embs := embedding.New[float32](10, 4)
	m, err := New[float32](Config{
		Layers:        2,
		Bidirectional: true,
		WordVecSize:   4,
		RNNSize:       6,
	}, embs)
	require.NoError(t, err)

	src := [][]int{{2, 3}, {5, 4}, {1, 1}}
	states, outputs, err := m.Forward(src, nil, nil)
	require.NoError(t, err)

	require.Len(t, states, 2)
	for _, s := range states {
		// 2 layers × 2 directions
		require.Equal(t, 4, s.Layers())
		for i := 0; i < s.Layers(); i++ {
			assert.Equal(t, 3, s.Hidden[i].Value().Size())
			assert.Equal(t, 3, s.Cell[i].Value().Size())
		}
	}

	require.Len(t, outputs, 3)
	for _, row := range outputs {
		require.Len(t, row, 2)
		for _, out := range row {
			assert.Equal(t, 6, out.Value().Size())
		}
	}
}

func TestForwardPacksByLength(t *testing.T) {
	embs := embedding.New[float32](10, 3)
	m, err := New[float32](Config{
		Layers:      1,
		WordVecSize: 3,
		RNNSize:     4,
	}, embs)
	require.NoError(t, err)

	src := [][]int{{2, 2}, {5, 0}, {1, 0}}
	_, outputs, err := m.Forward(src, []int{3, 1}, nil)
	require.NoError(t, err)

	// positions beyond the second example's length come back zero-padded
	for t2 := 1; t2 < 3; t2++ {
		for _, v := range outputs[t2][1].Value().Data().F64() {
			assert.Zero(t, v)
		}
	}
}

func TestForwardPreconditions(t *testing.T) {
	embs := embedding.New[float32](10, 3)
	m, err := New[float32](Config{Layers: 1, WordVecSize: 3, RNNSize: 4}, embs)
	require.NoError(t, err)

	_, _, err = m.Forward(nil, nil, nil)
	assert.Error(t, err)

	_, _, err = m.Forward([][]int{{1, 2}}, []int{1}, nil)
	assert.Error(t, err)

	_, _, err = m.Forward([][]int{{1}, {2}}, []int{5}, nil)
	assert.Error(t, err)
}
