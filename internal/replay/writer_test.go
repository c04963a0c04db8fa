package replay

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/input"
)

func sampleCombat(seed int64) input.Combat {
	b1, b2 := board.EmptyBoard(), board.EmptyBoard()
	b1.Top[0] = &board.Unit{ID: "knight", Name: "Knight", Tier: 2, Stars: 1, Attack: 6, Health: 20, CritChance: 30,
		Ability: board.Ability{Name: "Rally", Trigger: board.TriggerStartOfCombat,
			Effects: []board.Effect{{Kind: board.EffectBuffAttack, Amount: 2}}}}
	b2.Top[1] = &board.Unit{ID: "rogue", Name: "Rogue", Tier: 1, Stars: 2, Attack: 4, Health: 9, DodgeChance: 25,
		Ability: board.Ability{Name: "Shade", Trigger: board.TriggerPassive}}
	b2.Bottom[0] = &board.Unit{ID: "archer", Name: "Archer", Tier: 2, Stars: 1, Attack: 3, Health: 3,
		Ability: board.Ability{Name: "Volley", Trigger: board.TriggerOnAttack,
			Effects: []board.Effect{{Kind: board.EffectDamage, Amount: 1, Count: 2, Priority: board.PriorityRandom}}}}
	return input.Combat{Board1: &b1, Board2: &b2, Round: 3, Seed: input.SeedFrom(seed), Meta: input.Meta{MatchID: "Test Match #1"}}
}

func simulate(t *testing.T, in input.Combat) combat.Result {
	t.Helper()
	result, err := combat.Simulate(in.Clone(), combat.DefaultOptions())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	return result
}

func TestWriterProducesBundleLayout(t *testing.T) {
	tmp := t.TempDir()
	clock := func() time.Time { return time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC) }
	in := sampleCombat(42)
	result := simulate(t, in)

	writer, manifest, err := NewWriter(tmp, in.Meta.MatchID, clock)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(writer.Directory()), "TestMatch1-20240710T120000Z-") {
		t.Fatalf("unexpected bundle folder %q", writer.Directory())
	}
	if manifest.BundleID != writer.BundleID() || manifest.EventsPath != "events.jsonl.sz" || manifest.InputPath != "input.json.zst" {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
	if err := writer.WriteInput(in); err != nil {
		t.Fatalf("write input: %v", err)
	}
	for _, event := range result.Events {
		if err := writer.AppendEvent(event); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}
	writer.Commit(result)
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := writer.AppendEvent(combat.Event{}); err == nil {
		t.Fatalf("append after close should fail")
	}

	eventFile, err := os.Open(filepath.Join(writer.Directory(), manifest.EventsPath))
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer eventFile.Close()
	lines := 0
	scanner := bufio.NewScanner(snappy.NewReader(eventFile))
	for scanner.Scan() {
		var event combat.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("decode event line: %v", err)
		}
		lines++
		if event.Step != uint64(lines) {
			t.Fatalf("events out of order: step %d at line %d", event.Step, lines)
		}
	}
	if lines != len(result.Events) {
		t.Fatalf("expected %d event lines, got %d", len(result.Events), lines)
	}

	compressed, err := os.ReadFile(filepath.Join(writer.Directory(), manifest.InputPath))
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer decoder.Close()
	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("decompress input: %v", err)
	}
	if !strings.Contains(string(raw), `"seed":42`) {
		t.Fatalf("input payload missing seed: %s", raw)
	}
}

func TestWriterCloseWithoutCommitFails(t *testing.T) {
	writer, _, err := NewWriter(t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(writer.Directory()), "match-") {
		t.Fatalf("empty match id should fall back to match, got %q", writer.Directory())
	}
	if err := writer.Close(); err == nil {
		t.Fatalf("expected close without commit to fail")
	}
}
