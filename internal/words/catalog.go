/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package words holds the catalog of word pairs games are dealt from.
package words

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

// Pair is two related but distinct words, in no particular order.
type Pair = [2]string

var (
	ErrEmpty       = errors.New("word list is empty")
	ErrInvalidPair = errors.New("invalid word pair")
)

var defaultPairs = []Pair{
	{"pencil", "pen"},
	{"coffee", "tea"},
	{"river", "lake"},
	{"pizza", "burger"},
	{"moon", "star"},
	{"cat", "dog"},
	{"keyboard", "piano"},
	{"glasses", "goggles"},
}

// Default returns the bundled word list.
func Default() []Pair {
	return slices.Clone(defaultPairs)
}

// Validate checks that pairs is non-empty and every pair holds two distinct,
// non-blank words.
func Validate(pairs []Pair) error {
	if len(pairs) == 0 {
		return ErrEmpty
	}

	for i, p := range pairs {
		a, b := strings.TrimSpace(p[0]), strings.TrimSpace(p[1])
		if a == "" || b == "" || a == b {
			return fmt.Errorf("%w at index %d: %q", ErrInvalidPair, i, p)
		}
	}

	return nil
}

// Catalog is a word list that can be swapped out while games read from it.
type Catalog struct {
	pairs atomic.Pointer[[]Pair]
}

// NewCatalog returns a catalog holding the default list.
func NewCatalog() *Catalog {
	c := &Catalog{}

	pairs := Default()
	c.pairs.Store(&pairs)

	return c
}

// Pairs returns a copy of the current list.
func (c *Catalog) Pairs() [][2]string {
	return slices.Clone(*c.pairs.Load())
}

func (c *Catalog) Len() int {
	return len(*c.pairs.Load())
}

// Replace swaps in a new list. An invalid list leaves the catalog untouched.
func (c *Catalog) Replace(pairs []Pair) error {
	if err := Validate(pairs); err != nil {
		return err
	}

	next := slices.Clone(pairs)
	c.pairs.Store(&next)

	return nil
}

// Refresh fetches a list from src and swaps it in. On any error the current
// list is kept.
func (c *Catalog) Refresh(ctx context.Context, src Source) error {
	pairs, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", src, err)
	}

	if err := c.Replace(pairs); err != nil {
		return fmt.Errorf("load %s: %w", src, err)
	}

	return nil
}
