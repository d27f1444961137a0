// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lstmstack

import (
	"testing"

	"github.com/nlpodyssey/spago/mat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardPreservesStateShape(t *testing.T) {
	m := New[float32](3, 4, 5, 0.5)
	state := NewState(3, 5)

	out, next := m.Forward(ZeroVec(4), state)

	assert.Equal(t, 5, out.Value().Size())
	require.Equal(t, 3, next.Layers())
	for i := 0; i < next.Layers(); i++ {
		assert.Equal(t, 5, next.Hidden[i].Value().Size())
		assert.Equal(t, 5, next.Cell[i].Value().Size())
	}
}

func TestForwardFromZero(t *testing.T) {
	m := New[float32](2, 3, 3, 0)
	out, _ := m.Forward(ZeroVec(3), NewState(2, 3))

	for _, v := range out.Value().Data().F64() {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestDropoutIdentityWithoutProbability(t *testing.T) {
	x := mat.NewDense[float32](mat.WithShape(2), mat.WithBacking([]float32{1, 2}))
	assert.Same(t, x, Dropout(x, 0, nil))
}

func TestDropoutMask(t *testing.T) {
	x := mat.NewDense[float32](mat.WithShape(2), mat.WithBacking([]float32{1, 2}))

	kept := Dropout(x, 0.5, func() float64 { return 0 })
	assert.InDeltaSlice(t, []float64{2, 4}, kept.Value().Data().F64(), 1e-6)

	dropped := Dropout(x, 0.5, func() float64 { return 0.99 })
	assert.InDeltaSlice(t, []float64{0, 0}, dropped.Value().Data().F64(), 1e-6)
}
