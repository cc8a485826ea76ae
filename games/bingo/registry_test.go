package bingo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func board(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("phrase %02d", i)
	}
	return out
}

func TestRegistryUpsertNormalizesMarks(t *testing.T) {
	r := NewRegistry(newClock().now)

	s, err := r.Upsert("c1", "alice", "Alice", board(25), []int{4, 3, 3, -1, 25, 100, 0, 2, 1})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, s.Marked)
	assert.Equal(t, 1, s.CompletedLines)
	assert.Equal(t, int64(1_700_000_000_000), s.ConnectedAt)
	assert.Equal(t, s.ConnectedAt, s.LastUpdateAt)
}

func TestRegistryUpsertClampsBoard(t *testing.T) {
	r := NewRegistry(nil)

	s, err := r.Upsert("c1", "alice", "", board(30), []int{26, 24})
	require.NoError(t, err)

	assert.Len(t, s.Board, MaxBoardSize)
	assert.Equal(t, []int{24}, s.Marked)
	assert.Equal(t, "alice", s.DisplayName, "display name falls back to identity")
}

func TestRegistryUpsertRejectsEmptyBoard(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Upsert("c1", "alice", "Alice", nil, nil)
	require.ErrorIs(t, err, ErrEmptyBoard)
	assert.Zero(t, r.Len())
}

func TestRegistryRejoinReplacesSession(t *testing.T) {
	clock := newClock()
	r := NewRegistry(clock.now)

	first, err := r.Upsert("c1", "alice", "Alice", board(25), []int{0})
	require.NoError(t, err)

	clock.advance(time.Minute)

	second, err := r.Upsert("c1", "alice2", "Alicia", []string{"a", "b", "c", "d"}, []int{0, 1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, first.ConnectedAt, second.ConnectedAt)
	assert.Equal(t, first.ConnectedAt+time.Minute.Milliseconds(), second.LastUpdateAt)
	assert.Equal(t, "alice2", second.Identity)
	assert.Equal(t, []string{"a", "b", "c", "d"}, second.Board)
	assert.Equal(t, 6, second.CompletedLines)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryUpdateMarks(t *testing.T) {
	r := NewRegistry(nil)

	_, ok := r.UpdateMarks("missing", []int{1})
	assert.False(t, ok)

	_, err := r.Upsert("c1", "alice", "Alice", board(25), []int{0, 1})
	require.NoError(t, err)

	upd, ok := r.UpdateMarks("c1", []int{0, 1, 2, 3, 4, 4, 99})
	require.True(t, ok)
	assert.Equal(t, []int{2, 3, 4}, upd.Added)
	assert.Equal(t, 0, upd.PreviousLines)
	assert.True(t, upd.LinesIncreased)
	assert.Equal(t, 1, upd.Session.CompletedLines)

	again, ok := r.UpdateMarks("c1", []int{4, 3, 2, 1, 0})
	require.True(t, ok)
	assert.Empty(t, again.Added)
	assert.False(t, again.LinesIncreased)
	assert.Equal(t, upd.Session.CompletedLines, again.Session.CompletedLines)
	assert.Equal(t, upd.Session.Marked, again.Session.Marked)
}

func TestRegistryUpdateMarksDecreaseIsNotAnIncrease(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Upsert("c1", "alice", "Alice", board(25), nil)
	require.NoError(t, err)

	upd, _ := r.UpdateMarks("c1", []int{0, 1, 2, 3, 4, 5, 10, 15, 20})
	require.Equal(t, 2, upd.Session.CompletedLines)
	require.True(t, upd.LinesIncreased)

	upd, _ = r.UpdateMarks("c1", []int{0, 1, 2, 3, 4})
	assert.Equal(t, 1, upd.Session.CompletedLines)
	assert.False(t, upd.LinesIncreased)

	upd, _ = r.UpdateMarks("c1", []int{0, 1, 2, 3, 4, 5, 10, 15, 20})
	assert.True(t, upd.LinesIncreased, "climbing back to an earlier count counts as an increase")
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry(nil)

	s, err := r.Upsert("c1", "alice", "Alice", board(25), []int{0})
	require.NoError(t, err)

	s.Board[0] = "mutated"
	s.Marked[0] = 24

	got, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "phrase 00", got.Board[0])
	assert.Equal(t, []int{0}, got.Marked)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Upsert("c1", "alice", "Alice", board(25), nil)
	require.NoError(t, err)

	assert.True(t, r.Remove("c1"))
	assert.False(t, r.Remove("c1"))
	assert.Zero(t, r.Len())
}

func TestRegistrySnapshotOrder(t *testing.T) {
	r := NewRegistry(nil)

	for _, p := range []struct{ conn, name string }{
		{"c3", "carol"},
		{"c2", "Bob"},
		{"c1", "alice"},
		{"c0", "Bob"},
	} {
		_, err := r.Upsert(p.conn, p.name, p.name, board(25), nil)
		require.NoError(t, err)
	}

	var got []string
	for _, s := range r.Snapshot() {
		got = append(got, s.DisplayName+"/"+s.ConnectionID)
	}

	assert.Equal(t, []string{"alice/c1", "Bob/c0", "Bob/c2", "carol/c3"}, got)
}

func TestRegistryLeaderboardOrder(t *testing.T) {
	r := NewRegistry(nil)

	must := func(conn, name string, marked []int) {
		t.Helper()
		_, err := r.Upsert(conn, name, name, board(25), marked)
		require.NoError(t, err)
	}

	must("c1", "dave", []int{0, 1, 2, 3, 4})
	must("c2", "erin", []int{0, 1, 2, 3, 4, 9})
	must("c3", "bob", []int{7})
	must("c4", "amy", []int{8})
	must("c5", "zed", []int{0, 1, 2, 3, 4, 5, 10, 15, 20})

	var got []string
	for _, s := range r.Leaderboard() {
		got = append(got, s.DisplayName)
	}

	assert.Equal(t, []string{"zed", "erin", "dave", "amy", "bob"}, got)
}
