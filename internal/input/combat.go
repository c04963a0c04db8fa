// Package input validates and sanitizes combat inputs before simulation.
package input

import (
	"encoding/json"
	"strconv"

	"autobattler/arbiter/internal/board"
)

// Meta is opaque correlation data. It feeds seed derivation and result
// commitment but never gameplay.
type Meta struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants,omitempty"`
	Timestamp    int64    `json:"timestamp,omitempty"`
	BlockHash    string   `json:"blockHash,omitempty"`
}

// Combat is one proposed simulation: two boards, a round and a seed.
type Combat struct {
	Board1 *board.Board `json:"board1"`
	Board2 *board.Board `json:"board2"`
	Round  int          `json:"round"`
	Seed   json.Number  `json:"seed"`
	Meta   Meta         `json:"meta"`
}

// SeedFrom formats an integer seed for the Combat wire shape.
func SeedFrom(seed int64) json.Number {
	return json.Number(strconv.FormatInt(seed, 10))
}

// SeedValue parses the seed as a base-10 integer.
func (c Combat) SeedValue() (int64, error) {
	return strconv.ParseInt(string(c.Seed), 10, 64)
}

// Clone deep-copies the boards so sanitizing never mutates caller data.
func (c Combat) Clone() Combat {
	clone := c
	if c.Board1 != nil {
		b := c.Board1.Clone()
		clone.Board1 = &b
	}
	if c.Board2 != nil {
		b := c.Board2.Clone()
		clone.Board2 = &b
	}
	if c.Meta.Participants != nil {
		clone.Meta.Participants = append([]string(nil), c.Meta.Participants...)
	}
	return clone
}
