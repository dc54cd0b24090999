package tutor

import (
	"testing"
	"unicode/utf8"
)

// byteEncoder treats every byte as a token, which makes cuts land inside
// multi-byte runes
type byteEncoder struct{}

func (byteEncoder) Encode(text string, _ []string, _ []string) []int {
	tokens := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		tokens[i] = int(text[i])
	}
	return tokens
}

func (byteEncoder) Decode(tokens []int) string {
	b := make([]byte, len(tokens))
	for i, tok := range tokens {
		b[i] = byte(tok)
	}
	return string(b)
}

func TestTokenBudget_Trim(t *testing.T) {
	b := NewTokenBudgetWithEncoder(byteEncoder{}, 5)

	got, trimmed := b.Trim("hello world")
	if !trimmed || got != "hello" {
		t.Errorf("Expected trimmed to hello, got %q (trimmed %v)", got, trimmed)
	}

	got, trimmed = b.Trim("hi")
	if trimmed || got != "hi" {
		t.Errorf("Expected short text unchanged, got %q", got)
	}
}

func TestTokenBudget_DropsSplitRune(t *testing.T) {
	b := NewTokenBudgetWithEncoder(byteEncoder{}, 4)

	// "你" is 3 bytes, the cut at 4 lands inside "好"
	got, _ := b.Trim("你好")
	if !utf8.ValidString(got) || got != "你" {
		t.Errorf("Expected valid prefix 你, got %q", got)
	}
}

func TestTokenBudget_Disabled(t *testing.T) {
	var nilBudget *TokenBudget
	if got, trimmed := nilBudget.Trim("anything"); trimmed || got != "anything" {
		t.Errorf("Expected nil budget to keep text, got %q", got)
	}

	zero := NewTokenBudgetWithEncoder(byteEncoder{}, 0)
	if got, trimmed := zero.Trim("anything"); trimmed || got != "anything" {
		t.Errorf("Expected zero budget to keep text, got %q", got)
	}
	if zero.Count("abc") != 3 {
		t.Errorf("Expected 3 tokens, got %d", zero.Count("abc"))
	}
}
