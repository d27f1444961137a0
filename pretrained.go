// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package varnmt

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/float"
	"github.com/nlpodyssey/spago/nn/embedding"
	"github.com/rs/zerolog/log"
)

// ImportPretrainedVectors reads a PyTorch-saved 2-D tensor of word vectors and
// copies it wholesale into the given embedding table, replacing the existing
// weights. The tensor shape must be exactly (vocabSize, dim); any mismatch is
// a configuration error and nothing is written.
func ImportPretrainedVectors[T float.DType](embs *embedding.Model, vocabSize, dim int, filename string) error {
	log.Debug().Str("file", filename).Msg("Loading pretrained word vectors")

	loaded, err := pytorch.Load(filename)
	if err != nil {
		return fmt.Errorf("failed to load pretrained vectors %q: %w", filename, err)
	}
	tensor, ok := loaded.(*pytorch.Tensor)
	if !ok {
		return fmt.Errorf("expected a single tensor in %q, actual %T", filename, loaded)
	}
	if len(tensor.Size) != 2 {
		return fmt.Errorf("expected 2 dimensions, actual %d", len(tensor.Size))
	}
	if tensor.Size[0] != vocabSize || tensor.Size[1] != dim {
		return fmt.Errorf("expected pretrained vectors of size %dx%d, actual %dx%d",
			vocabSize, dim, tensor.Size[0], tensor.Size[1])
	}

	data, err := tensorData(tensor)
	if err != nil {
		return err
	}

	for i := 0; i < vocabSize; i++ {
		row := castVectorData[T](data[i*dim : (i+1)*dim])
		embs.Weights[i].ReplaceValue(mat.NewDense[T](mat.WithShape(dim), mat.WithBacking(row)))
	}

	log.Debug().Msgf("Replaced %d embedding vectors of size %d", vocabSize, dim)
	return nil
}

func castVectorData[T float.DType](d []float32) []T {
	return float.SliceValueOf[T](float.Make(d...))
}

func tensorData(t *pytorch.Tensor) ([]float32, error) {
	size := tensorDataSize(t)
	switch st := t.Source.(type) {
	case *pytorch.FloatStorage:
		return st.Data[t.StorageOffset : t.StorageOffset+size], nil
	case *pytorch.DoubleStorage:
		data := make([]float32, size)
		for i, v := range st.Data[t.StorageOffset : t.StorageOffset+size] {
			data[i] = float32(v)
		}
		return data, nil
	case *pytorch.BFloat16Storage:
		return st.Data[t.StorageOffset : t.StorageOffset+size], nil
	default:
		return nil, fmt.Errorf("unsupported tensor storage %T", t.Source)
	}
}

func tensorDataSize(t *pytorch.Tensor) int {
	size := t.Size[0]
	for _, v := range t.Size[1:] {
		size *= v
	}
	return size
}
