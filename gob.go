// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package varnmt

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/nlpodyssey/spago/nn/embedding"
	"github.com/nlpodyssey/varnmt/decoder"
	"github.com/nlpodyssey/varnmt/encoder"
	"github.com/nlpodyssey/varnmt/latent"
)

// DefaultOutputFilename is the conventional name of a dumped model.
const DefaultOutputFilename = "varnmt_model.bin"

// Dump saves the model to a file.
// See gobEncode for further details.
func Dump(obj *Model, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to open model dump file %q for writing: %w", filename, err)
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = fmt.Errorf("failed to close model dump file %q: %w", filename, e)
		}
	}()
	if err = gobEncode(obj, f); err != nil {
		return fmt.Errorf("failed to encode model dump: %w", err)
	}
	return nil
}

// Load reads a previously dumped model back from a file, rewiring the shared
// embedding tables into the encoder and decoder.
func Load(filename string) (*Model, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return gobDecoding(f)
}

// gobEncode writes the model as a sequence of chunks, configuration first, so
// decoding can rebuild the shared-table wiring before the large parameter
// blocks arrive.
func gobEncode(obj *Model, w io.Writer) error {
	bw := bufio.NewWriter(w)
	encoder := gob.NewEncoder(bw)

	for _, chunk := range getChunksForGobEncoding(obj) {
		if err := encoder.Encode(chunk); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func getChunksForGobEncoding(obj *Model) []interface{} {
	chunks := []interface{}{
		obj.Config,
		obj.SrcEmbeddings,
	}
	if !obj.Config.ShareEmbeddings {
		chunks = append(chunks, obj.TgtEmbeddings)
	}
	return append(chunks, obj.Encoder, obj.Decoder, obj.Bottleneck)
}

func gobDecoding(r io.Reader) (*Model, error) {
	obj := &Model{
		SrcEmbeddings: &embedding.Model{},
		Encoder:       &encoder.Model{},
		Decoder:       &decoder.Model{},
		Bottleneck:    &latent.Bottleneck{},
	}

	br := bufio.NewReader(r)
	dec := gob.NewDecoder(br)

	if err := dec.Decode(&obj.Config); err != nil {
		return nil, err
	}
	if err := dec.Decode(&obj.SrcEmbeddings); err != nil {
		return nil, err
	}
	if obj.Config.ShareEmbeddings {
		obj.TgtEmbeddings = obj.SrcEmbeddings
	} else {
		obj.TgtEmbeddings = &embedding.Model{}
		if err := dec.Decode(&obj.TgtEmbeddings); err != nil {
			return nil, err
		}
	}
	if err := dec.Decode(&obj.Encoder); err != nil {
		return nil, err
	}
	if err := dec.Decode(&obj.Decoder); err != nil {
		return nil, err
	}
	if err := dec.Decode(&obj.Bottleneck); err != nil {
		return nil, err
	}

	obj.Encoder.SetEmbeddings(obj.SrcEmbeddings)
	obj.Decoder.SetEmbeddings(obj.TgtEmbeddings)
	return obj, nil
}
