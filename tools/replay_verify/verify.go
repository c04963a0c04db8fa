// Package replayverify re-runs persisted replay bundles offline and reports
// whether they still reproduce their committed result.
package replayverify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/replay"
)

// Report summarises one bundle verification for CLI output.
type Report struct {
	Dir          string              `json:"dir"`
	Manifest     replay.Manifest     `json:"manifest"`
	Header       replay.Header       `json:"header"`
	Verification replay.Verification `json:"verification"`
	// EventsMatch compares the recorded log with the fresh one event by event.
	EventsMatch    bool   `json:"eventsMatch"`
	RecordedEvents int    `json:"recordedEvents"`
	FirstDivergent uint64 `json:"firstDivergentStep,omitempty"`
	Match          bool   `json:"match"`
}

// Options selects the engine settings a bundle is replayed with.
type Options struct {
	AttackPriority board.Priority
	Limits         combat.Limits
}

func (o Options) combat() combat.Options {
	opts := combat.DefaultOptions()
	//1.- Bundles store sanitized input, so replays always validate strictly.
	opts.Policy = combat.PolicyReject
	if o.AttackPriority != "" {
		opts.AttackPriority = o.AttackPriority
	}
	if o.Limits.MaxAttacksPerUnit > 0 {
		opts.Limits.MaxAttacksPerUnit = o.Limits.MaxAttacksPerUnit
	}
	if o.Limits.MaxTotalAttacks > 0 {
		opts.Limits.MaxTotalAttacks = o.Limits.MaxTotalAttacks
	}
	return opts
}

// ResolveDir accepts either a bundle directory or the path of a file inside it.
func ResolveDir(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("bundle path must be provided")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return path, nil
	}
	return filepath.Dir(path), nil
}

// VerifyBundle loads the bundle at path and re-simulates it. A mismatch is
// reported through Report.Match; the error covers unreadable or invalid bundles.
func VerifyBundle(path string, opts Options) (Report, error) {
	dir, err := ResolveDir(path)
	if err != nil {
		return Report{}, err
	}
	bundle, err := replay.LoadBundle(dir)
	if err != nil {
		return Report{}, err
	}
	if err := bundle.Header.Validate(); err != nil {
		return Report{}, fmt.Errorf("invalid header: %w", err)
	}
	verification, result, err := bundle.Verify(opts.combat())
	if err != nil && !errors.Is(err, replay.ErrHashMismatch) {
		return Report{}, err
	}

	report := Report{
		Dir:            dir,
		Manifest:       bundle.Manifest,
		Header:         bundle.Header,
		Verification:   verification,
		RecordedEvents: len(bundle.Events),
	}
	report.EventsMatch, report.FirstDivergent = compareEvents(bundle.Events, result.Events)
	report.Match = verification.HashMatch && verification.OutcomeMatch && report.EventsMatch
	return report, nil
}

// compareEvents returns the step of the first differing event, counting a
// missing event on either side as a divergence.
func compareEvents(recorded, fresh []combat.Event) (bool, uint64) {
	for i := 0; i < len(recorded) || i < len(fresh); i++ {
		if i >= len(recorded) || i >= len(fresh) || !reflect.DeepEqual(recorded[i], fresh[i]) {
			return false, uint64(i + 1)
		}
	}
	return true, 0
}
