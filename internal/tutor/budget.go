package tutor

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder is the subset of a BPE tokenizer the budget needs
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// TokenBudget caps how much section text goes into a question prompt
type TokenBudget struct {
	encoder   Encoder
	maxTokens int
}

// NewTokenBudget loads the cl100k_base tokenizer. maxTokens <= 0 disables trimming.
func NewTokenBudget(maxTokens int) (*TokenBudget, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}
	return NewTokenBudgetWithEncoder(enc, maxTokens), nil
}

// NewTokenBudgetWithEncoder builds a budget around an existing encoder
func NewTokenBudgetWithEncoder(enc Encoder, maxTokens int) *TokenBudget {
	return &TokenBudget{encoder: enc, maxTokens: maxTokens}
}

// Count returns the number of tokens in text
func (b *TokenBudget) Count(text string) int {
	return len(b.encoder.Encode(text, nil, nil))
}

// Trim returns text cut to at most maxTokens tokens. A nil budget keeps text
// unchanged. A multi-byte rune split by the cut is dropped.
func (b *TokenBudget) Trim(text string) (string, bool) {
	if b == nil || b.maxTokens <= 0 {
		return text, false
	}

	tokens := b.encoder.Encode(text, nil, nil)
	if len(tokens) <= b.maxTokens {
		return text, false
	}
	return strings.ToValidUTF8(b.encoder.Decode(tokens[:b.maxTokens]), ""), true
}
