package commit

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// SeedInputs are the public values folded into a combat seed.
type SeedInputs struct {
	BlockHash    string
	Timestamp    int64
	Participant1 string
	Participant2 string
	Round        int
}

// DeriveSeed folds the inputs into a non-negative int64 with xxhash. The core
// treats the result as opaque; replay only needs the same integer back.
func DeriveSeed(in SeedInputs) int64 {
	parts := []string{
		strings.ToLower(strings.TrimSpace(in.BlockHash)),
		strconv.FormatInt(in.Timestamp, 10),
		strings.ToLower(strings.TrimSpace(in.Participant1)),
		strings.ToLower(strings.TrimSpace(in.Participant2)),
		strconv.Itoa(in.Round),
	}
	return int64(xxhash.Sum64String(strings.Join(parts, "|")) >> 1)
}
