// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lstmstack

import (
	"encoding/gob"

	"github.com/nlpodyssey/spago/ag"
	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/float"
	"github.com/nlpodyssey/spago/nn"
)

var _ nn.Model = &Cell{}

// Cell is a single-step LSTM update. It owns one weight matrix, one recurrent
// matrix and one bias per gate, and carries no state of its own: the caller
// threads (hidden, cell) through Next.
type Cell struct {
	nn.Module
	WIn      *nn.Param
	WInRec   *nn.Param
	BIn      *nn.Param
	WFor     *nn.Param
	WForRec  *nn.Param
	BFor     *nn.Param
	WOut     *nn.Param
	WOutRec  *nn.Param
	BOut     *nn.Param
	WCand    *nn.Param
	WCandRec *nn.Param
	BCand    *nn.Param
}

func init() {
	gob.Register(&Cell{})
}

// NewCell returns a new LSTM cell mapping inputs of size in to a state of size
// hidden.
func NewCell[T float.DType](in, hidden int) *Cell {
	return &Cell{
		WIn:      nn.NewParam(mat.NewDense[T](mat.WithShape(hidden, in))),
		WInRec:   nn.NewParam(mat.NewDense[T](mat.WithShape(hidden, hidden))),
		BIn:      nn.NewParam(mat.NewDense[T](mat.WithShape(hidden))),
		WFor:     nn.NewParam(mat.NewDense[T](mat.WithShape(hidden, in))),
		WForRec:  nn.NewParam(mat.NewDense[T](mat.WithShape(hidden, hidden))),
		BFor:     nn.NewParam(mat.NewDense[T](mat.WithShape(hidden))),
		WOut:     nn.NewParam(mat.NewDense[T](mat.WithShape(hidden, in))),
		WOutRec:  nn.NewParam(mat.NewDense[T](mat.WithShape(hidden, hidden))),
		BOut:     nn.NewParam(mat.NewDense[T](mat.WithShape(hidden))),
		WCand:    nn.NewParam(mat.NewDense[T](mat.WithShape(hidden, in))),
		WCandRec: nn.NewParam(mat.NewDense[T](mat.WithShape(hidden, hidden))),
		BCand:    nn.NewParam(mat.NewDense[T](mat.WithShape(hidden))),
	}
}

// Next computes one recurrent step, returning the new (hidden, cell) pair.
func (m *Cell) Next(x, hPrev, cPrev mat.Tensor) (h, c mat.Tensor) {
	inG := ag.Sigmoid(gate(m.BIn, m.WIn, x, m.WInRec, hPrev))
	forG := ag.Sigmoid(gate(m.BFor, m.WFor, x, m.WForRec, hPrev))
	outG := ag.Sigmoid(gate(m.BOut, m.WOut, x, m.WOutRec, hPrev))
	cand := ag.Tanh(gate(m.BCand, m.WCand, x, m.WCandRec, hPrev))

	c = ag.Add(ag.Prod(forG, cPrev), ag.Prod(inG, cand))
	h = ag.Prod(outG, ag.Tanh(c))
	return
}

func gate(b, w, x, wRec, h mat.Tensor) mat.Tensor {
	return ag.Add(ag.Add(ag.Mul(w, x), ag.Mul(wRec, h)), b)
}
