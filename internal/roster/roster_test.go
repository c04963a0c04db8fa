package roster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/input"
)

func TestDefaultCatalogueIsValid(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if catalog.Len() == 0 {
		t.Fatalf("embedded catalogue is empty")
	}
	previousTier := 0
	for _, unit := range catalog.List() {
		if unit.Tier < previousTier {
			t.Fatalf("list not sorted by tier at %s", unit.ID)
		}
		previousTier = unit.Tier
		b := board.EmptyBoard()
		clone := unit
		b.Top[0] = &clone
		empty := board.EmptyBoard()
		report := input.Validate(input.Combat{Board1: &b, Board2: &empty, Round: 1, Seed: input.SeedFrom(1)})
		if !report.Valid {
			t.Fatalf("catalogue unit %s fails validation: %+v", unit.ID, report.Errors)
		}
	}
}

func TestHydrateExpandsCompactSlots(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	compactBoard := board.EmptyBoard()
	compactBoard.Top[1] = &board.Unit{ID: "warden", Stars: 2, CurrentHealth: 9}
	compactBoard.Bottom[0] = &board.Unit{ID: "custom", Name: "Custom", Tier: 1, Stars: 1, Attack: 1, Health: 1,
		Ability: board.Ability{Name: "none", Trigger: board.TriggerPassive}}

	hydrated, err := catalog.Hydrate(compactBoard)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	warden := hydrated.Top[1]
	if warden.Name != "Warden" || warden.Stars != 2 || warden.CurrentHealth != 9 || !warden.HasTag(board.TagTaunt) {
		t.Fatalf("warden not hydrated: %+v", warden)
	}
	if hydrated.Bottom[0].Name != "Custom" {
		t.Fatalf("fully described units must be left alone")
	}
	if compactBoard.Top[1].Name != "" {
		t.Fatalf("hydrate must not mutate its argument")
	}
}

func TestHydrateReportsUnknownIDs(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	b := board.EmptyBoard()
	b.Top[0] = &board.Unit{ID: "phoenix"}
	if _, err := catalog.Hydrate(b); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	data := []byte("units:\n  - id: a\n    ability: {name: x, trigger: passive}\n  - id: a\n    ability: {name: y, trigger: passive}\n")
	if _, err := Parse(data); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	data := []byte("units:\n  - id: golem\n    name: Golem\n    tier: 3\n    attack: 4\n    health: 12\n    ability: {name: Slam, trigger: on_attack, effects: [{kind: damage, amount: 1}]}\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	golem, ok := catalog.Lookup("golem")
	if !ok || golem.Stars != 1 || len(golem.Ability.Effects) != 1 || golem.Ability.Effects[0].Kind != board.EffectDamage {
		t.Fatalf("unexpected golem: %+v", golem)
	}
}
