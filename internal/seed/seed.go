// Package seed loads catalogue and promo fixtures from YAML.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/inventory"
	"github.com/framevist/framevist/internal/store"
	"gopkg.in/yaml.v3"
)

// Fixture is the seed file layout.
type Fixture struct {
	Capsules []catalog.Capsule   `yaml:"capsules"`
	Promos   []catalog.PromoCode `yaml:"promos"`
}

// Parse decodes a YAML fixture and validates every entry.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	for i, c := range f.Capsules {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("capsule %d (%s): %w", i, c.ID, err)
		}
	}
	for i, p := range f.Promos {
		p = p.Normalize()
		f.Promos[i] = p
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("promo %d (%s): %w", i, p.Code, err)
		}
	}
	return &f, nil
}

// LoadFile reads and parses the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

// Apply saves every capsule through the catalogue service, so tag counts
// are maintained, and upserts every promo.
func (f *Fixture) Apply(ctx context.Context, catalogue *inventory.Service, promos store.PromoStore) error {
	for _, c := range f.Capsules {
		if _, err := catalogue.SaveCapsule(ctx, c); err != nil {
			return fmt.Errorf("seeding capsule %s: %w", c.Title, err)
		}
	}
	for _, p := range f.Promos {
		if _, err := promos.UpsertPromo(ctx, p); err != nil {
			return fmt.Errorf("seeding promo %s: %w", p.Code, err)
		}
	}
	return nil
}
