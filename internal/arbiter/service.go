// Package arbiter wraps the pure combat core with the side effects a
// deployment needs: catalogue hydration, logging, replay bundles, commitment
// storage and batch execution.
package arbiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/commit"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/logging"
	"autobattler/arbiter/internal/replay"
	"autobattler/arbiter/internal/roster"
	"autobattler/arbiter/internal/storage"
)

// ErrStoreDisabled reports a lookup on a service running without a commitment store.
var ErrStoreDisabled = errors.New("arbiter: commitment store disabled")

// CommitmentStore persists committed results.
type CommitmentStore interface {
	Put(ctx context.Context, record storage.Record) error
	Get(ctx context.Context, hash string) (storage.Record, error)
	ListByMatch(ctx context.Context, correlationID string) ([]storage.Record, error)
	Ping(ctx context.Context) error
}

// Options configures a Service.
type Options struct {
	Combat    combat.Options
	Catalog   *roster.Catalog
	Store     CommitmentStore
	ReplayDir string
	Workers   int
	Logger    *logging.Logger
	Clock     func() time.Time
}

// Service runs simulations and verifications on behalf of the transport layers.
type Service struct {
	opts      combat.Options
	catalog   *roster.Catalog
	store     CommitmentStore
	replayDir string
	workers   int
	log       *logging.Logger
	now       func() time.Time
	stats     *Stats
}

// New constructs a Service with production defaults for unset options.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	combatOpts := opts.Combat
	if combatOpts.Policy == "" {
		combatOpts.Policy = combat.PolicyReject
	}
	if combatOpts.Constraints == nil {
		constraints := input.DefaultConstraints
		combatOpts.Constraints = &constraints
	}
	return &Service{
		opts:      combatOpts,
		catalog:   opts.Catalog,
		store:     opts.Store,
		replayDir: opts.ReplayDir,
		workers:   workers,
		log:       logger,
		now:       clock,
		stats:     &Stats{},
	}
}

// Stats exposes the service counters.
func (s *Service) Stats() *Stats { return s.stats }

// Workers returns the default batch pool size.
func (s *Service) Workers() int { return s.workers }

// Units lists the catalogue, or nothing when no catalogue is loaded.
func (s *Service) Units() []board.Unit {
	if s.catalog == nil {
		return []board.Unit{}
	}
	return s.catalog.List()
}

// Ready reports whether the optional dependencies are reachable.
func (s *Service) Ready(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("commitment store: %w", err)
	}
	return nil
}

// Prepare hydrates compact slots, fills an omitted seed from the match
// metadata and applies the sanitize policy so the returned input is exactly
// what gets simulated and committed.
func (s *Service) Prepare(in input.Combat) (input.Combat, error) {
	prepared := in.Clone()
	if s.catalog != nil {
		//1.- Compact boards are expanded before validation sees them.
		for _, slot := range []**board.Board{&prepared.Board1, &prepared.Board2} {
			if *slot == nil {
				continue
			}
			hydrated, err := s.catalog.Hydrate(**slot)
			if err != nil {
				return input.Combat{}, err
			}
			*slot = &hydrated
		}
	}
	//2.- An omitted seed is derived from the public match metadata when a block hash is present.
	if seed, ok := seedFromMeta(prepared); ok {
		prepared.Seed = seed
	}
	if s.opts.Policy == combat.PolicySanitize {
		prepared = s.opts.Constraints.Sanitize(prepared)
	}
	return prepared, nil
}

func seedFromMeta(in input.Combat) (json.Number, bool) {
	if strings.TrimSpace(string(in.Seed)) != "" || strings.TrimSpace(in.Meta.BlockHash) == "" {
		return "", false
	}
	inputs := commit.SeedInputs{BlockHash: in.Meta.BlockHash, Timestamp: in.Meta.Timestamp, Round: in.Round}
	if len(in.Meta.Participants) > 0 {
		inputs.Participant1 = in.Meta.Participants[0]
	}
	if len(in.Meta.Participants) > 1 {
		inputs.Participant2 = in.Meta.Participants[1]
	}
	return input.SeedFrom(commit.DeriveSeed(inputs)), true
}

func (s *Service) simulateOptions() combat.Options {
	opts := s.opts
	//1.- Sanitizing already happened in Prepare; the core only validates.
	opts.Policy = combat.PolicyReject
	return opts
}

// Simulate resolves one round, logs it and persists the commitment when configured.
func (s *Service) Simulate(ctx context.Context, in input.Combat) (combat.Result, error) {
	logger := logging.LoggerFromContext(ctx).With(logging.String("match_id", in.Meta.MatchID), logging.Int("round", in.Round))
	prepared, err := s.Prepare(in)
	if err != nil {
		s.stats.rejected.Add(1)
		logger.Warn("combat input rejected", logging.Error(err))
		return combat.Result{}, err
	}

	started := s.now()
	result, err := combat.Simulate(prepared, s.simulateOptions())
	if err != nil {
		s.stats.rejected.Add(1)
		logger.Warn("combat input rejected", logging.Error(err))
		return combat.Result{}, err
	}
	s.stats.observe(result, s.now().Sub(started))
	s.logResult(logger, result)
	s.persist(ctx, logger, prepared, result)
	return result, nil
}

func (s *Service) logResult(logger *logging.Logger, result combat.Result) {
	for _, warning := range result.Warnings {
		logger.Warn("combat input warning",
			logging.String("field", warning.Field),
			logging.String("reason", string(warning.Reason)),
			logging.String("detail", warning.Message))
	}
	switch result.Termination {
	case combat.TerminationFault:
		logger.Error("combat simulation faulted", result.LoggingFields()...)
	case combat.TerminationAttackLimit:
		logger.Warn("combat hit attack ceiling", result.LoggingFields()...)
	default:
		logger.Debug("combat simulated", result.LoggingFields()...)
	}
}

func (s *Service) persist(ctx context.Context, logger *logging.Logger, in input.Combat, result combat.Result) {
	bundleDir := ""
	if s.replayDir != "" {
		dir, err := replay.WriteBundle(s.replayDir, in, result, s.now)
		if err != nil {
			s.stats.persistFailures.Add(1)
			logger.Error("replay bundle write failed", logging.Error(err), logging.String("result_hash", result.ResultHash))
		} else {
			bundleDir = dir
		}
	}
	if s.store == nil {
		return
	}
	record := storage.Record{
		ResultHash:    result.ResultHash,
		CorrelationID: result.CorrelationID,
		Round:         result.Round,
		Seed:          result.Seed,
		Winner:        string(result.Winner),
		DamageToLoser: result.DamageToLoser,
		RNGCallCount:  result.RNGCallCount,
		TotalSteps:    result.TotalSteps,
		Termination:   string(result.Termination),
		BundleDir:     bundleDir,
		CreatedAt:     s.now(),
	}
	//1.- A cancelled request still records the commitment it already produced.
	if err := s.store.Put(context.WithoutCancel(ctx), record); err != nil {
		s.stats.persistFailures.Add(1)
		logger.Error("commitment store write failed", logging.Error(err), logging.String("result_hash", result.ResultHash))
	}
}

// Stream simulates and then hands every event to emit in step order.
func (s *Service) Stream(ctx context.Context, in input.Combat, emit func(combat.Event) error) (combat.Result, error) {
	result, err := s.Simulate(ctx, in)
	if err != nil {
		return combat.Result{}, err
	}
	for _, event := range result.Events {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := emit(event); err != nil {
			return result, err
		}
	}
	return result, nil
}

// VerifyRequest asks whether an input reproduces a claimed commitment.
type VerifyRequest struct {
	Input        input.Combat      `json:"input"`
	Expected     commit.Commitment `json:"expected"`
	ExpectedHash string            `json:"expectedHash,omitempty"`
}

// Verify re-simulates the input and compares it to the claimed commitment. A
// mismatch is reported in the Verification and as a wrapped replay.ErrHashMismatch.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (replay.Verification, combat.Result, error) {
	if err := ctx.Err(); err != nil {
		return replay.Verification{}, combat.Result{}, err
	}
	expectedHash := req.ExpectedHash
	if expectedHash == "" {
		expectedHash = commit.Hash(req.Expected)
	}
	prepared, err := s.Prepare(req.Input)
	if err != nil {
		return replay.Verification{}, combat.Result{}, err
	}
	result, err := combat.Simulate(prepared, s.simulateOptions())
	if err != nil {
		return replay.Verification{}, combat.Result{}, err
	}
	expected := replay.Header{
		ResultHash:    expectedHash,
		Winner:        combat.Winner(req.Expected.Winner),
		DamageToLoser: req.Expected.DamageToLoser,
		RNGCallCount:  req.Expected.RNGCallCount,
		TotalSteps:    req.Expected.TotalSteps,
	}
	verification := replay.Check(expected, result)
	s.recordVerification(ctx, verification)
	return verification, result, verification.Err()
}

// VerifyBundle reloads a bundle directory and re-simulates it.
func (s *Service) VerifyBundle(ctx context.Context, dir string) (replay.Verification, combat.Result, error) {
	if err := ctx.Err(); err != nil {
		return replay.Verification{}, combat.Result{}, err
	}
	bundle, err := replay.LoadBundle(dir)
	if err != nil {
		return replay.Verification{}, combat.Result{}, err
	}
	verification, result, err := bundle.Verify(s.simulateOptions())
	if err != nil && !errors.Is(err, replay.ErrHashMismatch) {
		return replay.Verification{}, combat.Result{}, err
	}
	s.recordVerification(ctx, verification)
	return verification, result, err
}

func (s *Service) recordVerification(ctx context.Context, verification replay.Verification) {
	s.stats.verifications.Add(1)
	if verification.HashMatch {
		return
	}
	s.stats.mismatches.Add(1)
	logging.LoggerFromContext(ctx).Warn("verification mismatch",
		logging.String("expected_hash", verification.ExpectedHash),
		logging.String("actual_hash", verification.ActualHash),
		logging.Bool("rng_match", verification.RNGMatch),
		logging.Bool("steps_match", verification.StepsMatch))
}

// Lookup returns a stored commitment by hash.
func (s *Service) Lookup(ctx context.Context, hash string) (storage.Record, error) {
	if s.store == nil {
		return storage.Record{}, ErrStoreDisabled
	}
	return s.store.Get(ctx, hash)
}

// History returns the stored commitments of one match.
func (s *Service) History(ctx context.Context, correlationID string) ([]storage.Record, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.ListByMatch(ctx, correlationID)
}
