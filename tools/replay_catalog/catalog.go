// Package replaycatalog indexes replay bundle headers so operators can find a
// round without decompressing its event log.
package replaycatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"autobattler/arbiter/internal/replay"
)

// Entry captures a bundle header alongside its resolved manifest path.
type Entry struct {
	HeaderPath   string        `json:"header_path"`
	ManifestPath string        `json:"manifest_path"`
	Header       replay.Header `json:"header"`
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	CorrelationID string
	ResultHash    string
}

func (f Filter) matches(header replay.Header) bool {
	if f.CorrelationID != "" && header.CorrelationID != f.CorrelationID {
		return false
	}
	if f.ResultHash != "" && !strings.EqualFold(header.ResultHash, f.ResultHash) {
		return false
	}
	return true
}

// List walks the directory tree and returns every bundle header that passes filter.
func List(root string, filter Filter) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	//1.- Walk the directory tree searching for bundle headers.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != "header.json" {
			return nil
		}
		header, err := replay.ReadHeader(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !filter.matches(header) {
			return nil
		}
		manifestPath := header.FilePointer
		if !filepath.IsAbs(manifestPath) {
			manifestPath = filepath.Join(filepath.Dir(path), manifestPath)
		}
		entries = append(entries, Entry{HeaderPath: path, ManifestPath: manifestPath, Header: header})
		return nil
	})
	if err != nil {
		return nil, err
	}
	//2.- Group by match, then order rounds; ties fall back to the bundle id.
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Header, entries[j].Header
		if a.CorrelationID != b.CorrelationID {
			return a.CorrelationID < b.CorrelationID
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		return a.BundleID < b.BundleID
	})
	return entries, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
