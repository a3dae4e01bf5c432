package app

import (
	"nsref/internal/engine/filter"
)

// FilterResult is the outcome of running one value through a type's filter.
type FilterResult struct {
	Expr  string `json:"expr" yaml:"expr"`
	Type  string `json:"type" yaml:"type"`
	Input any    `json:"input" yaml:"input"`
	Valid bool   `json:"valid" yaml:"valid"`
	Value any    `json:"value" yaml:"value"`
}

// FilterValue parses expr and validates and sanitizes value against it.
func (s *Session) FilterValue(expr string, value any) (FilterResult, error) {
	t, err := s.ParseType(expr)
	if err != nil {
		return FilterResult{}, err
	}
	f := filter.ForType(t)
	return FilterResult{
		Expr:  expr,
		Type:  t.String(),
		Input: value,
		Valid: f.Validate(value),
		Value: f.Sanitize(value),
	}, nil
}
