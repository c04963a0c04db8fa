package grpc

import (
	"context"

	"autobattler/arbiter/internal/arbiter"
	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/commit"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/replay"
)

// SimulateRequest asks the arbiter to resolve one round.
type SimulateRequest struct {
	Input input.Combat `json:"input"`
}

// SimulateResponse carries the committed result.
type SimulateResponse struct {
	Result combat.Result `json:"result"`
}

// VerifyRequest asks whether an input reproduces a claimed commitment.
type VerifyRequest struct {
	Input        input.Combat      `json:"input"`
	Expected     commit.Commitment `json:"expected"`
	ExpectedHash string            `json:"expectedHash,omitempty"`
}

// VerifyResponse reports the comparison; a mismatch is not an RPC error.
type VerifyResponse struct {
	Match        bool                `json:"match"`
	Verification replay.Verification `json:"verification"`
	Result       combat.Result       `json:"result"`
}

// StreamEventsRequest asks for a simulation whose log arrives in compressed batches.
type StreamEventsRequest struct {
	Input     input.Combat `json:"input"`
	Encoding  string       `json:"encoding,omitempty"`
	BatchSize int          `json:"batchSize,omitempty"`
}

// EventBatch is one server-streamed frame. Payload is a compressed JSON array
// of events; the final frame carries the result and no payload.
type EventBatch struct {
	Sequence  int            `json:"sequence"`
	FirstStep uint64         `json:"firstStep,omitempty"`
	Count     int            `json:"count"`
	Encoding  string         `json:"encoding"`
	Payload   []byte         `json:"payload,omitempty"`
	Result    *combat.Result `json:"result,omitempty"`
}

// Backend is the arbiter surface the gRPC service depends on.
type Backend interface {
	Simulate(ctx context.Context, in input.Combat) (combat.Result, error)
	Verify(ctx context.Context, req arbiter.VerifyRequest) (replay.Verification, combat.Result, error)
	Stream(ctx context.Context, in input.Combat, emit func(combat.Event) error) (combat.Result, error)
}
