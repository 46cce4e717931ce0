// Package silo defines the social networks bridgypoll polls on behalf of
// Bridgy, and the catalog of which of them are enabled.
package silo

import (
	"context"
	"fmt"
	"sort"

	"bridgypoll/pkg/config"
)

// Silo is a social network whose Bridgy source is polled periodically
type Silo interface {
	// Name is the silo identifier, e.g. "facebook"
	Name() string
	// AlarmName is the name of the silo's recurring poll alarm
	AlarmName() string
	// Poll triggers one poll of the silo's Bridgy source
	Poll(ctx context.Context) error
}

// AlarmName returns the poll alarm name for a silo identifier
func AlarmName(name string) string {
	return "bridgy-" + name + "-poll"
}

// Catalog holds every known silo and whether it is enabled
type Catalog struct {
	silos   map[string]Silo
	enabled map[string]bool
	order   []string
}

// NewCatalog builds the catalog from the silos section of the configuration.
// Silos missing from build are skipped; unknown names in cfg are an error.
func NewCatalog(cfg *config.Config, build func(name string) Silo) (*Catalog, error) {
	c := &Catalog{
		silos:   make(map[string]Silo),
		enabled: make(map[string]bool),
	}

	known := make(map[string]bool, len(config.KnownSilos))
	for _, name := range config.KnownSilos {
		known[name] = true
		s := build(name)
		if s == nil {
			continue
		}
		c.silos[name] = s
		c.order = append(c.order, name)
	}

	var unknown []string
	for name, sc := range cfg.Silos {
		if !known[name] {
			unknown = append(unknown, name)
			continue
		}
		c.enabled[name] = sc.Enabled
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown silos in configuration: %v", unknown)
	}
	return c, nil
}

// NewStaticCatalog enables every given silo in the given order
func NewStaticCatalog(silos ...Silo) *Catalog {
	c := &Catalog{
		silos:   make(map[string]Silo),
		enabled: make(map[string]bool),
	}
	for _, s := range silos {
		c.silos[s.Name()] = s
		c.enabled[s.Name()] = true
		c.order = append(c.order, s.Name())
	}
	return c
}

// Enabled returns the enabled silos in a stable order
func (c *Catalog) Enabled() []Silo {
	var out []Silo
	for _, name := range c.order {
		if c.enabled[name] {
			out = append(out, c.silos[name])
		}
	}
	return out
}

// All returns every known silo, enabled or not
func (c *Catalog) All() []Silo {
	out := make([]Silo, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.silos[name])
	}
	return out
}

// Lookup finds a silo by name regardless of whether it is enabled
func (c *Catalog) Lookup(name string) (Silo, bool) {
	s, ok := c.silos[name]
	return s, ok
}

// IsEnabled reports whether the named silo is enabled
func (c *Catalog) IsEnabled(name string) bool {
	return c.enabled[name]
}
