// Package roster loads the unit catalogue used to expand compact boards into
// fully described units.
package roster

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"autobattler/arbiter/internal/board"
)

//go:embed roster.yaml
var defaultCatalogue []byte

// ErrUnknownUnit reports a board slot whose id is not in the catalogue.
var ErrUnknownUnit = errors.New("unknown unit id")

type document struct {
	Units []board.Unit `yaml:"units"`
}

// Catalog indexes unit templates by id.
type Catalog struct {
	units map[string]board.Unit
	order []string
}

// Default returns the embedded catalogue.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogue)
}

// Load reads a catalogue file. An empty path yields the embedded catalogue.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes catalogue YAML and rejects duplicate or incomplete entries.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	catalog := &Catalog{units: make(map[string]board.Unit, len(doc.Units))}
	for i, unit := range doc.Units {
		id := strings.TrimSpace(unit.ID)
		if id == "" {
			return nil, fmt.Errorf("roster entry %d has no id", i)
		}
		if _, exists := catalog.units[id]; exists {
			return nil, fmt.Errorf("roster entry %d duplicates id %q", i, id)
		}
		if !unit.Ability.Trigger.Valid() {
			return nil, fmt.Errorf("roster entry %q has invalid trigger %q", id, unit.Ability.Trigger)
		}
		unit.ID = id
		if unit.Stars == 0 {
			unit.Stars = 1
		}
		catalog.units[id] = unit
		catalog.order = append(catalog.order, id)
	}
	sort.Strings(catalog.order)
	return catalog, nil
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.order) }

// Lookup returns a copy of the template for id.
func (c *Catalog) Lookup(id string) (board.Unit, bool) {
	unit, ok := c.units[strings.TrimSpace(id)]
	if !ok {
		return board.Unit{}, false
	}
	return *unit.Clone(), true
}

// List returns every template sorted by tier then id.
func (c *Catalog) List() []board.Unit {
	units := make([]board.Unit, 0, len(c.order))
	for _, id := range c.order {
		unit := c.units[id]
		units = append(units, *unit.Clone())
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].Tier < units[j].Tier })
	return units
}

// Hydrate returns a copy of b where every compact slot (an id with no stats) is
// replaced by its catalogue template. Stars and carried-over health survive.
func (c *Catalog) Hydrate(b board.Board) (board.Board, error) {
	hydrated := b.Clone()
	var missing []string
	for _, row := range [][]*board.Unit{hydrated.Top, hydrated.Bottom} {
		for i, unit := range row {
			if unit == nil || !compact(unit) {
				continue
			}
			template, ok := c.Lookup(unit.ID)
			if !ok {
				missing = append(missing, unit.ID)
				continue
			}
			if unit.Stars > 0 {
				template.Stars = unit.Stars
			}
			template.CurrentHealth = unit.CurrentHealth
			row[i] = &template
		}
	}
	if len(missing) > 0 {
		return board.Board{}, fmt.Errorf("%w: %s", ErrUnknownUnit, strings.Join(missing, ", "))
	}
	return hydrated, nil
}

func compact(unit *board.Unit) bool {
	return unit.ID != "" && unit.Health == 0 && unit.Attack == 0 && unit.Ability.Trigger == ""
}
