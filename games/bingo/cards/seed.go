/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package cards

import (
	"math"
	"time"
)

const (
	seedMod    uint64 = 1<<35 - 31
	multiplier uint64 = 185852
)

// DayLayout formats the day component of a board seed.
const DayLayout = "Mon Jan 02 2006"

// Random is a Lehmer generator over the prime 2^35-31.
type Random struct {
	state uint64
}

func NewRandom(seed uint64) *Random {
	return &Random{state: seed % seedMod}
}

// Float returns the next value in [0, 1).
func (r *Random) Float() float64 {
	r.state = (r.state * multiplier) % seedMod
	return float64(r.state) / float64(seedMod)
}

// Seed folds identity and then day into a generator seed, one byte at a time.
func Seed(identity, day string) uint64 {
	var seed uint64
	for _, s := range []string{identity, day} {
		for i := 0; i < len(s); i++ {
			seed = (seed*256 + uint64(s[i])) % seedMod
		}
	}
	return seed
}

// Board draws BoardSize phrases without replacement. The same identity on
// the same day always gets the same board.
func (c *Catalog) Board(identity string, day time.Time) []string {
	rnd := NewRandom(Seed(identity, day.Format(DayLayout)))

	pool := c.Phrases()
	board := make([]string, 0, BoardSize)
	for len(board) < BoardSize && len(pool) > 0 {
		i := int(math.Floor(rnd.Float() * float64(len(pool))))
		board = append(board, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
	}

	return board
}
