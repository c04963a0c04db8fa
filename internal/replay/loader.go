package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/input"
)

// ErrHashMismatch reports a re-simulation whose commitment differs from the bundle.
var ErrHashMismatch = errors.New("replay: result hash mismatch")

// Bundle is a replay bundle rehydrated from disk.
type Bundle struct {
	Dir      string
	Manifest Manifest
	Header   Header
	Input    input.Combat
	Events   []combat.Event
}

// LoadBundle reads the manifest, header, input and event log of one bundle directory.
func LoadBundle(dir string) (*Bundle, error) {
	if dir == "" {
		return nil, fmt.Errorf("bundle directory must be provided")
	}
	bundle := &Bundle{Dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &bundle.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if bundle.Header, err = ReadHeader(filepath.Join(dir, pathOr(bundle.Manifest.HeaderPath, headerFile))); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if bundle.Input, err = readInput(filepath.Join(dir, pathOr(bundle.Manifest.InputPath, inputFile))); err != nil {
		return nil, err
	}
	if bundle.Events, err = readEvents(filepath.Join(dir, pathOr(bundle.Manifest.EventsPath, eventsFile))); err != nil {
		return nil, err
	}
	return bundle, nil
}

func pathOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return filepath.Base(path)
}

func readInput(path string) (input.Combat, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return input.Combat{}, fmt.Errorf("read input: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return input.Combat{}, err
	}
	defer decoder.Close()
	payload, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return input.Combat{}, fmt.Errorf("decompress input: %w", err)
	}
	var in input.Combat
	//1.- Seeds stay json.Number so the replay sees the exact submitted text.
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return input.Combat{}, fmt.Errorf("decode input: %w", err)
	}
	return in, nil
}

func readEvents(path string) ([]combat.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer file.Close()

	events := make([]combat.Event, 0)
	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event combat.Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", len(events)+1, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// Replay iterates over the recorded events in step order.
func (b *Bundle) Replay(apply func(combat.Event) error) error {
	if b == nil {
		return fmt.Errorf("bundle not loaded")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, event := range b.Events {
		if err := apply(event); err != nil {
			return err
		}
	}
	return nil
}

// Verification compares a recorded header against a fresh simulation.
type Verification struct {
	ExpectedHash  string `json:"expectedHash"`
	ActualHash    string `json:"actualHash"`
	HashMatch     bool   `json:"hashMatch"`
	RNGMatch      bool   `json:"rngMatch"`
	StepsMatch    bool   `json:"stepsMatch"`
	OutcomeMatch  bool   `json:"outcomeMatch"`
	ExpectedRNG   uint64 `json:"expectedRngCalls"`
	ActualRNG     uint64 `json:"actualRngCalls"`
	ExpectedSteps uint64 `json:"expectedSteps"`
	ActualSteps   uint64 `json:"actualSteps"`
}

// Check reports each committed field separately so drift can be localised.
func Check(expected Header, actual combat.Result) Verification {
	return Verification{
		ExpectedHash:  expected.ResultHash,
		ActualHash:    actual.ResultHash,
		HashMatch:     expected.ResultHash == actual.ResultHash,
		RNGMatch:      expected.RNGCallCount == actual.RNGCallCount,
		StepsMatch:    expected.TotalSteps == actual.TotalSteps,
		OutcomeMatch:  expected.Winner == actual.Winner && expected.DamageToLoser == actual.DamageToLoser,
		ExpectedRNG:   expected.RNGCallCount,
		ActualRNG:     actual.RNGCallCount,
		ExpectedSteps: expected.TotalSteps,
		ActualSteps:   actual.TotalSteps,
	}
}

// Err returns ErrHashMismatch wrapped with the differing digests, or nil.
func (v Verification) Err() error {
	if v.HashMatch {
		return nil
	}
	return fmt.Errorf("%w: expected %s got %s (rng %d/%d, steps %d/%d)", ErrHashMismatch,
		v.ExpectedHash, v.ActualHash, v.ExpectedRNG, v.ActualRNG, v.ExpectedSteps, v.ActualSteps)
}

// Verify re-simulates the bundle input and compares the commitment.
func (b *Bundle) Verify(opts combat.Options) (Verification, combat.Result, error) {
	if b == nil {
		return Verification{}, combat.Result{}, fmt.Errorf("bundle not loaded")
	}
	result, err := combat.Simulate(b.Input.Clone(), opts)
	if err != nil {
		return Verification{}, combat.Result{}, err
	}
	verification := Check(b.Header, result)
	return verification, result, verification.Err()
}
