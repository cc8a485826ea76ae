/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import "math"

// CompletedLines returns the number of fully marked rows, columns and main
// diagonals on a square board of boardLength cells. Boards whose length is
// not a perfect square have no lines.
func CompletedLines(boardLength int, marked []int) int {
	n := side(boardLength)
	if n == 0 || len(marked) == 0 {
		return 0
	}

	set := make(map[int]struct{}, len(marked))
	for _, idx := range marked {
		set[idx] = struct{}{}
	}

	has := func(row, col int) bool {
		_, ok := set[row*n+col]
		return ok
	}

	count := 0

	for r := 0; r < n; r++ {
		complete := true
		for c := 0; c < n; c++ {
			if !has(r, c) {
				complete = false
				break
			}
		}
		if complete {
			count++
		}
	}

	for c := 0; c < n; c++ {
		complete := true
		for r := 0; r < n; r++ {
			if !has(r, c) {
				complete = false
				break
			}
		}
		if complete {
			count++
		}
	}

	diagonal, antiDiagonal := true, true
	for i := 0; i < n; i++ {
		if !has(i, i) {
			diagonal = false
		}
		if !has(i, n-1-i) {
			antiDiagonal = false
		}
	}
	if diagonal {
		count++
	}
	if antiDiagonal {
		count++
	}

	return count
}

// side returns n for a board of n*n cells, or 0.
func side(length int) int {
	if length <= 0 {
		return 0
	}

	n := int(math.Sqrt(float64(length)))
	for n*n > length {
		n--
	}
	for (n+1)*(n+1) <= length {
		n++
	}

	if n*n != length {
		return 0
	}

	return n
}
