/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

// Peer identifies a player who has marked a given phrase.
type Peer struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
}

// PeerSelections maps every marked phrase to the players who marked it,
// one entry per identity. It is rebuilt from scratch on every call.
func PeerSelections(r *Registry) map[string][]Peer {
	out := make(map[string][]Peer)
	positions := make(map[string]map[string]int)

	for _, s := range r.Snapshot() {
		for _, idx := range s.Marked {
			if idx < 0 || idx >= len(s.Board) {
				continue
			}

			phrase := s.Board[idx]
			if phrase == "" {
				continue
			}

			seen, ok := positions[phrase]
			if !ok {
				seen = make(map[string]int)
				positions[phrase] = seen
			}

			if pos, dup := seen[s.Identity]; dup {
				out[phrase][pos].DisplayName = s.DisplayName
				continue
			}

			seen[s.Identity] = len(out[phrase])
			out[phrase] = append(out[phrase], Peer{
				Identity:    s.Identity,
				DisplayName: s.DisplayName,
			})
		}
	}

	return out
}
