// Package keyboard implements the binary selection keyboard: a character
// set is split into two halves, one half is chosen per gesture, and the
// last remaining token is committed to the output buffer.
package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

// Token is one selectable key.
type Token string

// Special tokens act instead of being typed.
const (
	TokenDelete Token = "Delete"
	TokenSpace  Token = "Space"
	TokenEnter  Token = "Enter"
)

var (
	// ErrEmptySet is returned when building a set with no tokens.
	ErrEmptySet = errors.New("keyboard: character set is empty")

	// ErrDuplicateToken is returned when a token appears twice.
	ErrDuplicateToken = errors.New("keyboard: duplicate token")
)

// Kind returns the special token t stands for, or "" for a literal.
// Matching is case-insensitive so "space" and "Space" are the same key.
func (t Token) Kind() Token {
	for _, special := range []Token{TokenDelete, TokenSpace, TokenEnter} {
		if strings.EqualFold(string(t), string(special)) {
			return special
		}
	}
	return ""
}

// Text is what committing t appends to the output.
// Delete returns "" since it removes instead.
func (t Token) Text() string {
	switch t.Kind() {
	case TokenDelete:
		return ""
	case TokenSpace:
		return " "
	case TokenEnter:
		return "\n"
	default:
		return string(t)
	}
}

// Set is an ordered, duplicate-free list of tokens.
type Set []Token

// NewSet validates tokens and returns them as a Set.
func NewSet(tokens ...Token) (Set, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptySet
	}

	seen := make(map[Token]bool, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateToken, t)
		}
		seen[t] = true
	}

	out := make(Set, len(tokens))
	copy(out, tokens)
	return out, nil
}

// ParseSet builds a Set from plain strings, e.g. from config.
func ParseSet(keys []string) (Set, error) {
	tokens := make([]Token, len(keys))
	for i, k := range keys {
		tokens[i] = Token(k)
	}
	return NewSet(tokens...)
}

// DefaultAlphabet is A-Z followed by Space, Delete and Enter.
func DefaultAlphabet() Set {
	out := make(Set, 0, 29)
	for c := 'A'; c <= 'Z'; c++ {
		out = append(out, Token(string(c)))
	}
	return append(out, TokenSpace, TokenDelete, TokenEnter)
}

// Split returns the left (first ceil(n/2)) and right halves of s.
// Both halves share no backing array with s.
func (s Set) Split() (left, right Set) {
	mid := (len(s) + 1) / 2
	left = append(Set(nil), s[:mid]...)
	right = append(Set(nil), s[mid:]...)
	return left, right
}

// Strings returns the tokens as plain strings.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = string(t)
	}
	return out
}
