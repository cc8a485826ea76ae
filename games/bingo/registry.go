/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"errors"
	"slices"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// MaxBoardSize is the largest board a player may join with; longer boards
// are clamped.
const MaxBoardSize = 25

var ErrEmptyBoard = errors.New("board must contain at least one phrase")

// Session is one joined player, keyed by the connection that joined it.
type Session struct {
	ConnectionID   string
	DisplayName    string
	Identity       string
	Board          []string
	Marked         []int
	ConnectedAt    int64
	LastUpdateAt   int64
	CompletedLines int
}

func (s *Session) clone() Session {
	c := *s
	c.Board = slices.Clone(s.Board)
	c.Marked = slices.Clone(s.Marked)
	return c
}

// MarkUpdate describes the effect of replacing a session's marks.
type MarkUpdate struct {
	Session        Session
	Added          []int
	PreviousLines  int
	LinesIncreased bool
}

// Registry holds every joined player session. It is owned by the Hub loop
// and is not safe for concurrent use.
type Registry struct {
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}

	return &Registry{
		sessions: make(map[string]*Session),
		now:      now,
	}
}

// Upsert creates or replaces the session for connectionID. The board is
// clamped to MaxBoardSize and the marks are normalized against it.
func (r *Registry) Upsert(connectionID, identity, displayName string, board []string, marked []int) (Session, error) {
	if len(board) == 0 {
		return Session{}, ErrEmptyBoard
	}
	if len(board) > MaxBoardSize {
		board = board[:MaxBoardSize]
	}
	if displayName == "" {
		displayName = identity
	}

	board = slices.Clone(board)
	marks := normalizeMarks(marked, len(board))
	now := r.now().UnixMilli()

	s, ok := r.sessions[connectionID]
	if !ok {
		s = &Session{
			ConnectionID: connectionID,
			ConnectedAt:  now,
		}
		r.sessions[connectionID] = s
	}

	s.Identity = identity
	s.DisplayName = displayName
	s.Board = board
	s.Marked = marks
	s.LastUpdateAt = now
	s.CompletedLines = CompletedLines(len(board), marks)

	return s.clone(), nil
}

// UpdateMarks replaces the marks of an existing session. It reports false
// when no session exists for connectionID.
func (r *Registry) UpdateMarks(connectionID string, marked []int) (MarkUpdate, bool) {
	s, ok := r.sessions[connectionID]
	if !ok {
		return MarkUpdate{}, false
	}

	previous := make(map[int]struct{}, len(s.Marked))
	for _, idx := range s.Marked {
		previous[idx] = struct{}{}
	}
	previousLines := s.CompletedLines

	next := normalizeMarks(marked, len(s.Board))

	var added []int
	for _, idx := range next {
		if _, seen := previous[idx]; !seen {
			added = append(added, idx)
		}
	}

	s.Marked = next
	s.LastUpdateAt = r.now().UnixMilli()
	s.CompletedLines = CompletedLines(len(s.Board), next)

	return MarkUpdate{
		Session:        s.clone(),
		Added:          added,
		PreviousLines:  previousLines,
		LinesIncreased: s.CompletedLines > previousLines,
	}, true
}

// Get returns a copy of the session for connectionID.
func (r *Registry) Get(connectionID string) (Session, bool) {
	s, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Remove deletes the session for connectionID and reports whether one existed.
func (r *Registry) Remove(connectionID string) bool {
	if _, ok := r.sessions[connectionID]; !ok {
		return false
	}
	delete(r.sessions, connectionID)
	return true
}

func (r *Registry) Len() int {
	return len(r.sessions)
}

// Snapshot returns every session ordered by display name, then connection id.
func (r *Registry) Snapshot() []Session {
	out := r.all()
	col := collate.New(language.Und)

	sort.SliceStable(out, func(i, j int) bool {
		if c := col.CompareString(out[i].DisplayName, out[j].DisplayName); c != 0 {
			return c < 0
		}
		return out[i].ConnectionID < out[j].ConnectionID
	})

	return out
}

// Leaderboard returns every session ordered by completed lines and marked
// cells, both descending, then by display name.
func (r *Registry) Leaderboard() []Session {
	out := r.all()
	col := collate.New(language.Und)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CompletedLines != b.CompletedLines {
			return a.CompletedLines > b.CompletedLines
		}
		if len(a.Marked) != len(b.Marked) {
			return len(a.Marked) > len(b.Marked)
		}
		if c := col.CompareString(a.DisplayName, b.DisplayName); c != 0 {
			return c < 0
		}
		return a.ConnectionID < b.ConnectionID
	})

	return out
}

func (r *Registry) all() []Session {
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.clone())
	}
	return out
}

// normalizeMarks drops out-of-range and duplicate indices and sorts the rest.
func normalizeMarks(marked []int, boardSize int) []int {
	if boardSize <= 0 {
		return []int{}
	}

	seen := make(map[int]struct{}, len(marked))
	out := make([]int, 0, len(marked))
	for _, idx := range marked {
		if idx < 0 || idx >= boardSize {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}

	slices.Sort(out)

	return out
}
