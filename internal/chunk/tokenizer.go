// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used when the model has no registered encoding.
const fallbackEncoding = "cl100k_base"

// Tokenizer converts between text and the token ids of an embedding model.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer returns the tiktoken encoding for model, falling back to
// cl100k_base for models tiktoken does not know.
func NewTokenizer(model string) (Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("loading tokenizer for %s: %w", model, err)
		}
	}
	return &tiktokenizer{enc: enc}, nil
}

func (t *tiktokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *tiktokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
