// Package commit reduces a combat outcome to the hash a signing authority
// attests to, and folds public match data into a seed.
package commit

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
	"google.golang.org/protobuf/encoding/protowire"
)

// SchemaVersion is encoded as field 1 of every preimage so future layouts cannot collide.
const SchemaVersion = 1

// Commitment is the complete set of values a result hash covers. The event log
// is deliberately absent: it is informative, not load-bearing.
type Commitment struct {
	Winner        string `json:"winner"`
	DamageToLoser int    `json:"damageToLoser"`
	Seed          int64  `json:"seed"`
	RNGCallCount  uint64 `json:"rngCallCount"`
	TotalSteps    uint64 `json:"totalSteps"`
	CorrelationID string `json:"correlationId"`
	Round         int    `json:"round"`
}

// Preimage encodes the commitment with protobuf wire rules in fixed field order.
// Every field is always written, including zero values, so the byte layout
// depends only on the values.
func Preimage(c Commitment) []byte {
	buf := make([]byte, 0, 64+len(c.Winner)+len(c.CorrelationID))
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, SchemaVersion)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendString(buf, c.Winner)
	buf = protowire.AppendTag(buf, 3, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(c.DamageToLoser)))
	buf = protowire.AppendTag(buf, 4, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(c.Seed))
	buf = protowire.AppendTag(buf, 5, protowire.VarintType)
	buf = protowire.AppendVarint(buf, c.RNGCallCount)
	buf = protowire.AppendTag(buf, 6, protowire.VarintType)
	buf = protowire.AppendVarint(buf, c.TotalSteps)
	buf = protowire.AppendTag(buf, 7, protowire.BytesType)
	buf = protowire.AppendString(buf, c.CorrelationID)
	buf = protowire.AppendTag(buf, 8, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(c.Round)))
	return buf
}

// Hash returns the 0x-prefixed Keccak-256 digest of the commitment preimage.
func Hash(c Commitment) string {
	hasher := sha3.NewLegacyKeccak256()
	_, _ = hasher.Write(Preimage(c))
	return "0x" + hex.EncodeToString(hasher.Sum(nil))
}

// Decode parses a preimage back into a commitment, mainly for audit tooling.
func Decode(preimage []byte) (Commitment, error) {
	var c Commitment
	for len(preimage) > 0 {
		number, wireType, n := protowire.ConsumeTag(preimage)
		if n < 0 {
			return Commitment{}, protowire.ParseError(n)
		}
		preimage = preimage[n:]
		switch wireType {
		case protowire.VarintType:
			value, m := protowire.ConsumeVarint(preimage)
			if m < 0 {
				return Commitment{}, protowire.ParseError(m)
			}
			preimage = preimage[m:]
			switch number {
			case 3:
				c.DamageToLoser = int(protowire.DecodeZigZag(value))
			case 4:
				c.Seed = protowire.DecodeZigZag(value)
			case 5:
				c.RNGCallCount = value
			case 6:
				c.TotalSteps = value
			case 8:
				c.Round = int(protowire.DecodeZigZag(value))
			}
		case protowire.BytesType:
			value, m := protowire.ConsumeString(preimage)
			if m < 0 {
				return Commitment{}, protowire.ParseError(m)
			}
			preimage = preimage[m:]
			switch number {
			case 2:
				c.Winner = value
			case 7:
				c.CorrelationID = value
			}
		default:
			m := protowire.ConsumeFieldValue(number, wireType, preimage)
			if m < 0 {
				return Commitment{}, protowire.ParseError(m)
			}
			preimage = preimage[m:]
		}
	}
	return c, nil
}
