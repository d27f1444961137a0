// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHoldsSpecials(t *testing.T) {
	v := New()
	assert.Equal(t, 4, v.Size())
	assert.Equal(t, Pad, v.ID("<blank>"))
	assert.Equal(t, Unk, v.ID("<unk>"))
	assert.Equal(t, Bos, v.ID("<s>"))
	assert.Equal(t, Eos, v.ID("</s>"))
}

func TestAddIsIdempotent(t *testing.T) {
	v := New()
	id := v.Add("hello")
	assert.Equal(t, 4, id)
	assert.Equal(t, id, v.Add("hello"))
	assert.Equal(t, 5, v.Size())
}

func TestIDFallsBackToUnk(t *testing.T) {
	v := New()
	assert.Equal(t, Unk, v.ID("never-seen"))
}

func TestToken(t *testing.T) {
	v := New()
	v.Add("world")

	s, ok := v.Token(4)
	assert.True(t, ok)
	assert.Equal(t, "world", s)

	_, ok = v.Token(99)
	assert.False(t, ok)
	_, ok = v.Token(-1)
	assert.False(t, ok)
}
