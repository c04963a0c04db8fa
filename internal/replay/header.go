package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"autobattler/arbiter/internal/combat"
)

// HeaderSchemaVersion tracks the schema version for replay header documents.
const HeaderSchemaVersion = 1

// Header carries the commitment a bundle must reproduce. Everything a verifier
// compares lives here so tooling can triage bundles without decompressing them.
type Header struct {
	SchemaVersion int                `json:"schema_version"`
	BundleID      string             `json:"bundle_id"`
	CorrelationID string             `json:"correlation_id"`
	Round         int                `json:"round"`
	Seed          int64              `json:"seed"`
	Winner        combat.Winner      `json:"winner"`
	DamageToLoser int                `json:"damage_to_loser"`
	RNGCallCount  uint64             `json:"rng_call_count"`
	TotalSteps    uint64             `json:"total_steps"`
	ResultHash    string             `json:"result_hash"`
	Termination   combat.Termination `json:"termination"`
	FilePointer   string             `json:"file_pointer"`
}

// HeaderFromResult copies the committed fields of a result.
func HeaderFromResult(bundleID string, result combat.Result) Header {
	return Header{
		SchemaVersion: HeaderSchemaVersion,
		BundleID:      bundleID,
		CorrelationID: result.CorrelationID,
		Round:         result.Round,
		Seed:          result.Seed,
		Winner:        result.Winner,
		DamageToLoser: result.DamageToLoser,
		RNGCallCount:  result.RNGCallCount,
		TotalSteps:    result.TotalSteps,
		ResultHash:    result.ResultHash,
		Termination:   result.Termination,
		FilePointer:   "manifest.json",
	}
}

// Validate ensures the header contains enough information for verification tooling.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	//1.- A header without a hash cannot be verified.
	if !strings.HasPrefix(h.ResultHash, "0x") {
		return fmt.Errorf("result_hash must be a 0x-prefixed digest, got %q", h.ResultHash)
	}
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and decodes a replay header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, err
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
