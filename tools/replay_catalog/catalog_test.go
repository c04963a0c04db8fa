package replaycatalog

import (
	"os"
	"path/filepath"
	"testing"

	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/replay"
)

func writeHeader(t *testing.T, root, folder, match string, round int, hash string) string {
	t.Helper()
	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	header := replay.HeaderFromResult(folder, combat.Result{
		CorrelationID: match,
		Round:         round,
		Winner:        combat.WinnerSide1,
		ResultHash:    hash,
		TotalSteps:    12,
		Termination:   combat.TerminationElimination,
	})
	if err := replay.WriteHeader(filepath.Join(dir, "header.json"), header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	return dir
}

func TestListOrdersByMatchAndRound(t *testing.T) {
	root := t.TempDir()
	writeHeader(t, root, "beta-r1", "beta", 1, "0xbb01")
	alpha3 := writeHeader(t, root, "alpha-r3", "alpha", 3, "0xaa03")
	writeHeader(t, root, "alpha-r1", "alpha", 1, "0xaa01")

	entries, err := List(root, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected three entries, got %d", len(entries))
	}
	order := []string{entries[0].Header.BundleID, entries[1].Header.BundleID, entries[2].Header.BundleID}
	if order[0] != "alpha-r1" || order[1] != "alpha-r3" || order[2] != "beta-r1" {
		t.Fatalf("unexpected order %v", order)
	}
	if entries[1].ManifestPath != filepath.Join(alpha3, "manifest.json") {
		t.Fatalf("unexpected manifest path: %q", entries[1].ManifestPath)
	}

	payload, err := MarshalEntries(entries)
	if err != nil {
		t.Fatalf("MarshalEntries: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected JSON payload to be non-empty")
	}
}

func TestListFilters(t *testing.T) {
	root := t.TempDir()
	writeHeader(t, root, "alpha-r1", "alpha", 1, "0xAA01")
	writeHeader(t, root, "beta-r1", "beta", 1, "0xbb01")

	byMatch, err := List(root, Filter{CorrelationID: "beta"})
	if err != nil || len(byMatch) != 1 || byMatch[0].Header.CorrelationID != "beta" {
		t.Fatalf("match filter: %+v %v", byMatch, err)
	}
	byHash, err := List(root, Filter{ResultHash: "0xaa01"})
	if err != nil || len(byHash) != 1 || byHash[0].Header.BundleID != "alpha-r1" {
		t.Fatalf("hash filter: %+v %v", byHash, err)
	}
}

func TestListRejectsFiles(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := List(file, Filter{}); err == nil {
		t.Fatal("expected an error when root is a file")
	}
}
