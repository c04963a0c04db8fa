// Package grpc serves the arbiter over gRPC using a JSON codec and a
// hand-written service descriptor, so no generated protobuf code is needed.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"autobattler/arbiter/internal/arbiter"
	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/logging"
	"autobattler/arbiter/internal/replay"
	"autobattler/arbiter/internal/roster"
	"autobattler/arbiter/internal/storage"
)

const (
	defaultBatchSize = 32
	maxBatchSize     = 512
)

// Option customises the behaviour of the gRPC service.
type Option func(*Service)

// WithEncoding overrides the batch encoding used when a request names none.
func WithEncoding(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.encoding = name
		}
	}
}

// WithBatchSize overrides the default number of events per streamed batch.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// Service implements ArbiterServer on top of the arbiter backend.
type Service struct {
	backend   Backend
	encoding  string
	batchSize int
}

// NewService wires the gRPC service to the arbiter backend and optional settings.
func NewService(backend Backend, opts ...Option) *Service {
	service := &Service{backend: backend, encoding: EncodingZstd, batchSize: defaultBatchSize}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// Simulate resolves one round.
func (s *Service) Simulate(ctx context.Context, req *SimulateRequest) (*SimulateResponse, error) {
	if s == nil || s.backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "arbiter unavailable")
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	result, err := s.backend.Simulate(ctx, req.Input)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &SimulateResponse{Result: result}, nil
}

// Verify re-simulates an input against a claimed commitment.
func (s *Service) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	if s == nil || s.backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "arbiter unavailable")
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	verification, result, err := s.backend.Verify(ctx, arbiter.VerifyRequest{
		Input:        req.Input,
		Expected:     req.Expected,
		ExpectedHash: req.ExpectedHash,
	})
	if err != nil && !errors.Is(err, replay.ErrHashMismatch) {
		return nil, statusFromError(err)
	}
	return &VerifyResponse{Match: verification.HashMatch, Verification: verification, Result: result}, nil
}

// StreamEvents simulates and relays the combat log in compressed batches,
// closing with a frame that carries the result.
func (s *Service) StreamEvents(req *StreamEventsRequest, stream grpc.ServerStreamingServer[EventBatch]) error {
	if s == nil || s.backend == nil {
		return status.Error(codes.FailedPrecondition, "streaming unavailable")
	}
	if req == nil {
		return status.Error(codes.InvalidArgument, "request required")
	}
	encoding := req.Encoding
	if encoding == "" {
		encoding = s.encoding
	}
	compressor, err := CompressorByName(encoding)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	size := req.BatchSize
	if size <= 0 {
		size = s.batchSize
	}
	if size > maxBatchSize {
		size = maxBatchSize
	}

	ctx := stream.Context()
	sequence := 0
	pending := make([]combat.Event, 0, size)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		//1.- Compress the buffered slice as one JSON array so each frame is self-contained.
		raw, err := json.Marshal(pending)
		if err != nil {
			return status.Errorf(codes.Internal, "encode events: %v", err)
		}
		payload, err := compressor.Compress(raw)
		if err != nil {
			return status.Errorf(codes.Internal, "compress events: %v", err)
		}
		sequence++
		batch := &EventBatch{
			Sequence:  sequence,
			FirstStep: pending[0].Step,
			Count:     len(pending),
			Encoding:  compressor.Name(),
			Payload:   payload,
		}
		pending = pending[:0]
		return stream.Send(batch)
	}

	result, err := s.backend.Stream(ctx, req.Input, func(event combat.Event) error {
		pending = append(pending, event)
		if len(pending) < size {
			return nil
		}
		return flush()
	})
	if err != nil {
		return statusFromError(err)
	}
	if err := flush(); err != nil {
		return err
	}
	//2.- The closing frame repeats no events; they were all sent above.
	summary := result
	summary.Events = []combat.Event{}
	sequence++
	return stream.Send(&EventBatch{Sequence: sequence, Encoding: compressor.Name(), Result: &summary})
}

// DecodeBatch restores the events carried by one batch.
func DecodeBatch(batch *EventBatch) ([]combat.Event, error) {
	if batch == nil || len(batch.Payload) == 0 {
		return nil, nil
	}
	compressor, err := CompressorByName(batch.Encoding)
	if err != nil {
		return nil, err
	}
	raw, err := compressor.Decompress(batch.Payload)
	if err != nil {
		return nil, err
	}
	var events []combat.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

func statusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var invalid *input.ValidationError
	switch {
	case errors.As(err, &invalid), errors.Is(err, roster.ErrUnknownUnit):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, arbiter.ErrStoreDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "stream cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		logging.L().Error("grpc request failed", logging.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

var _ ArbiterServer = (*Service)(nil)
