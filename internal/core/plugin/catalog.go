package plugin

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/pkg/validation"
)

// CatalogEntry declares a step type as an alias of a registered kind with
// its own name, defaults and schema.
type CatalogEntry struct {
	Type          string                 `yaml:"type" json:"type" validate:"required,step_type"`
	Kind          string                 `yaml:"kind" json:"kind" validate:"required,step_type"`
	Name          string                 `yaml:"name" json:"name"`
	Category      string                 `yaml:"category" json:"category"`
	DefaultConfig map[string]interface{} `yaml:"defaultConfig" json:"defaultConfig"`
	Schema        map[string]interface{} `yaml:"schema" json:"schema"`
}

// Catalog is the YAML document listing extra step types
type Catalog struct {
	Plugins []CatalogEntry `yaml:"plugins" json:"plugins" validate:"dive"`
}

// LoadCatalog decodes and validates a catalog document
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil
		}
		return nil, fmt.Errorf("failed to decode plugin catalog: %w", err)
	}
	if err := validation.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid plugin catalog: %w", err)
	}
	return &c, nil
}

// Apply registers every entry on top of the kind it aliases. Entries whose
// kind is unknown or that the registry rejects are reported together;
// the rest are still registered.
func (c *Catalog) Apply(reg *Registry) (int, error) {
	var errs []error
	registered := 0
	for _, e := range c.Plugins {
		base := reg.Get(Type(e.Kind))
		if base == nil {
			errs = append(errs, fmt.Errorf("catalog entry %q: %w: %q", e.Type, ErrPluginNotFound, e.Kind))
			continue
		}
		p := base.clone()
		p.Type = Type(e.Type)
		p.Name = e.Name
		if e.Category != "" {
			p.Category = Category(e.Category)
		}
		for k, v := range e.DefaultConfig {
			p.DefaultConfig[k] = graph.CopyValue(v)
		}
		if e.Schema != nil {
			p.ConfigSchema = graph.CopyMap(e.Schema)
		}
		if !reg.Register(p) {
			errs = append(errs, fmt.Errorf("catalog entry %q rejected by registry", e.Type))
			continue
		}
		registered++
	}
	return registered, errors.Join(errs...)
}
