// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package varnmt

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the static configuration of the model, fixed at construction.
type Config struct {
	// Layers is the recurrent depth of both encoder and decoder.
	Layers int `json:"layers"`
	// Bidirectional runs the encoder in both directions.
	Bidirectional bool `json:"brnn"`
	// WordVecSize is the embedding width.
	WordVecSize int `json:"word_vec_size"`
	// RNNSize is the recurrent state width (split across directions in the
	// encoder).
	RNNSize int `json:"rnn_size"`
	// LatentSize is the width of the latent code.
	LatentSize int `json:"latent_size"`
	// SrcVocabSize and TgtVocabSize size the embedding tables.
	SrcVocabSize int `json:"src_vocab_size"`
	TgtVocabSize int `json:"tgt_vocab_size"`
	// ShareEmbeddings ties source and target tables to one instance.
	ShareEmbeddings bool `json:"share_embeddings"`
	// Dropout is applied between recurrent layers and on decoder outputs.
	Dropout float64 `json:"dropout"`
	// DynamicDecode feeds the decoder its own previous prediction after the
	// first step.
	DynamicDecode bool `json:"dynamic_decode"`
	// Deterministic passes the latent mean through instead of sampling.
	Deterministic bool `json:"deterministic"`
	// FeedGroundTruthProb keeps each non-first target token with this
	// probability during training; the rest become the unknown token.
	FeedGroundTruthProb float64 `json:"feed_gt_prob"`
	// PReLU enables the learned parametric nonlinearity on the latent heads.
	PReLU bool `json:"prelu"`
}

// NumDirections is 2 when the encoder is bidirectional, 1 otherwise.
func (c Config) NumDirections() int {
	if c.Bidirectional {
		return 2
	}
	return 1
}

// Validate reports the first configuration error. All failures here are
// construction-time and fatal; nothing is retried.
func (c Config) Validate() error {
	for _, v := range []struct {
		name  string
		value int
	}{
		{"layers", c.Layers},
		{"word_vec_size", c.WordVecSize},
		{"rnn_size", c.RNNSize},
		{"latent_size", c.LatentSize},
		{"src_vocab_size", c.SrcVocabSize},
		{"tgt_vocab_size", c.TgtVocabSize},
	} {
		if v.value < 1 {
			return fmt.Errorf("config: %s must be positive, got %d", v.name, v.value)
		}
	}
	if c.RNNSize%c.NumDirections() != 0 {
		return fmt.Errorf("config: rnn_size %d not divisible by %d directions", c.RNNSize, c.NumDirections())
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("config: dropout must be in [0, 1), got %f", c.Dropout)
	}
	if c.FeedGroundTruthProb < 0 || c.FeedGroundTruthProb > 1 {
		return fmt.Errorf("config: feed_gt_prob must be in [0, 1], got %f", c.FeedGroundTruthProb)
	}
	if c.ShareEmbeddings && c.SrcVocabSize != c.TgtVocabSize {
		return fmt.Errorf("config: shared embeddings need equal vocabulary sizes, got %d and %d", c.SrcVocabSize, c.TgtVocabSize)
	}
	return nil
}

// LoadConfig reads a model configuration from a JSON file.
func LoadConfig(filePath string) (Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	jsonDecoder := json.NewDecoder(file)
	if err := jsonDecoder.Decode(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}
