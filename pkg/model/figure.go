package model

// Figure is a named sequence of dance moves lasting Count beats.
// Catalog entries are templates; an in-progress figure is a value copy.
type Figure struct {
	Name   string `json:"name" yaml:"name"`
	Count  int    `json:"count" yaml:"count"`
	Weight int    `json:"weight,omitempty" yaml:"weight,omitempty"` // relative pick weight, 0 means 1
}

// EffectiveWeight returns the pick weight, treating unset as 1.
func (f Figure) EffectiveWeight() int {
	if f.Weight <= 0 {
		return 1
	}
	return f.Weight
}

// Group names known to the reference catalog.
const (
	GroupGuapea = "Guapea"
	GroupArriba = "Arriba"
)
