// Package catalog holds the static table of dance figures grouped by context.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"salsatempo/pkg/model"
)

//go:embed figures.yaml
var defaultFigures []byte

// Transition figures used when switching groups. They are fixed and do not
// come from the table.
var (
	ToGuapea = model.Figure{Name: "Dile que no", Count: 8}
	ToArriba = model.Figure{Name: "Dile que no y Arriba", Count: 8}
)

// IntN is the random source used for picking figures.
// *math/rand/v2.Rand satisfies it.
type IntN interface {
	IntN(n int) int
}

// Catalog maps group names to figure templates. It is read-only after load.
type Catalog struct {
	groups map[string][]model.Figure
	totals map[string]int
}

type fileFormat struct {
	Groups map[string][]model.Figure `yaml:"groups"`
}

// Default returns the built-in reference catalog.
func Default() (*Catalog, error) {
	return Parse(defaultFigures)
}

// LoadFile loads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read figures file: %w", err)
	}
	return Parse(data)
}

// Load returns the catalog at path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse builds a catalog from YAML and validates every entry.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse figures file: %w", err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("figures file defines no groups")
	}

	c := &Catalog{
		groups: make(map[string][]model.Figure, len(f.Groups)),
		totals: make(map[string]int, len(f.Groups)),
	}
	for name, figs := range f.Groups {
		if len(figs) == 0 {
			return nil, fmt.Errorf("group %q has no figures", name)
		}
		total := 0
		for i, fig := range figs {
			if fig.Name == "" {
				return nil, fmt.Errorf("group %q: figure %d has no name", name, i)
			}
			if fig.Count <= 0 {
				return nil, fmt.Errorf("group %q: figure %q must last at least one beat", name, fig.Name)
			}
			total += fig.EffectiveWeight()
		}
		c.groups[name] = append([]model.Figure(nil), figs...)
		c.totals[name] = total
	}
	return c, nil
}

// Groups returns the group names in sorted order.
func (c *Catalog) Groups() []string {
	names := make([]string, 0, len(c.groups))
	for k := range c.groups {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Figures returns a copy of the templates of a group.
func (c *Catalog) Figures(group string) []model.Figure {
	return append([]model.Figure(nil), c.groups[group]...)
}

// Has reports whether the group exists.
func (c *Catalog) Has(group string) bool {
	_, ok := c.groups[group]
	return ok
}

// Pick draws one figure from the group, proportionally to its weight.
// The result is a copy; mutating it never touches the template.
func (c *Catalog) Pick(group string, rng IntN) (model.Figure, bool) {
	figs := c.groups[group]
	if len(figs) == 0 {
		return model.Figure{}, false
	}
	n := rng.IntN(c.totals[group])
	for _, f := range figs {
		n -= f.EffectiveWeight()
		if n < 0 {
			return f, true
		}
	}
	return figs[len(figs)-1], true
}

// Names returns every distinct figure name, transition figures included.
func (c *Catalog) Names() []string {
	seen := map[string]bool{ToGuapea.Name: true, ToArriba.Name: true}
	names := []string{ToGuapea.Name, ToArriba.Name}
	for _, g := range c.Groups() {
		for _, f := range c.groups[g] {
			if !seen[f.Name] {
				seen[f.Name] = true
				names = append(names, f.Name)
			}
		}
	}
	return names
}

// SwitchGroup returns the transition figure and the group it leads into.
// Guapea leads to Arriba; any other group leads to Guapea.
func SwitchGroup(current string) (model.Figure, string) {
	if current == model.GroupGuapea {
		return ToArriba, model.GroupArriba
	}
	return ToGuapea, model.GroupGuapea
}
