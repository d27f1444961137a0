// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vocab provides the id↔token dictionary shared across the toolkit.
// Vocabulary construction proper (corpus counting, frequency cut-offs) is the
// concern of the data pipeline, not of the model.
package vocab

// Special token ids. The model relies on Unk for scheduled-sampling
// replacement and on Bos being the authentic first decoder input.
const (
	Pad = 0
	Unk = 1
	Bos = 2
	Eos = 3
)

var specials = []string{"<blank>", "<unk>", "<s>", "</s>"}

// Vocab maps tokens to dense integer ids, with the special ids preassigned.
type Vocab struct {
	itos []string
	stoi map[string]int
}

// New returns a vocabulary holding only the special tokens.
func New() *Vocab {
	v := &Vocab{stoi: make(map[string]int, len(specials))}
	for _, s := range specials {
		v.Add(s)
	}
	return v
}

// Add inserts a token if absent and returns its id.
func (v *Vocab) Add(token string) int {
	if id, ok := v.stoi[token]; ok {
		return id
	}
	id := len(v.itos)
	v.itos = append(v.itos, token)
	v.stoi[token] = id
	return id
}

// ID returns the id of a token, falling back to Unk.
func (v *Vocab) ID(token string) int {
	if id, ok := v.stoi[token]; ok {
		return id
	}
	return Unk
}

// Token returns the token for an id.
func (v *Vocab) Token(id int) (string, bool) {
	if id < 0 || id >= len(v.itos) {
		return "", false
	}
	return v.itos[id], true
}

// Size is the number of known tokens.
func (v *Vocab) Size() int {
	return len(v.itos)
}
