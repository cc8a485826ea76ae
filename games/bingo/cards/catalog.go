/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package cards holds the phrase catalog boards are drawn from.
package cards

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// BoardSize is the number of phrases on one board.
const BoardSize = 25

var ErrTooFewPhrases = errors.New("too few phrases")

//go:embed default.txt
var defaultPhrases string

// Catalog is a sorted, de-duplicated phrase list. It is immutable once built.
type Catalog struct {
	phrases []string
}

// New trims phrases, drops blanks and duplicates, and sorts the rest.
func New(phrases []string) (*Catalog, error) {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	slices.Sort(out)
	out = slices.Compact(out)

	if len(out) < BoardSize {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewPhrases, len(out), BoardSize)
	}

	return &Catalog{phrases: out}, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(strings.Split(defaultPhrases, "\n"))
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Len() int { return len(c.phrases) }

// Phrases returns a copy of the catalog in sorted order.
func (c *Catalog) Phrases() []string { return slices.Clone(c.phrases) }
