package extraction

import (
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// Strategy is one structural interpretation of a decoded candidate. Apply
// returns the record values it found and whether the interpretation fits.
type Strategy struct {
	Name  string
	Apply func(v Value) ([]Value, bool)
}

// DirectArray treats the candidate as an array of records
func DirectArray() Strategy {
	return Strategy{
		Name: "direct-array",
		Apply: func(v Value) ([]Value, bool) {
			if v.Kind != KindArray {
				return nil, false
			}
			return v.Array, true
		},
	}
}

// WrappedObject looks for the first wrapper key holding an array of records
func WrappedObject(keys []string) Strategy {
	return Strategy{
		Name: "wrapped-object",
		Apply: func(v Value) ([]Value, bool) {
			if v.Kind != KindObject {
				return nil, false
			}
			for _, key := range keys {
				if _, inner, ok := v.Object.Lookup(key); ok && inner.Kind == KindArray {
					return inner.Array, true
				}
			}
			return nil, false
		},
	}
}

// SingleObject treats the candidate as a batch of one record
func SingleObject() Strategy {
	return Strategy{
		Name: "single-object",
		Apply: func(v Value) ([]Value, bool) {
			if v.Kind != KindObject {
				return nil, false
			}
			return []Value{v}, true
		},
	}
}

// Strategies returns the chain in priority order
func Strategies(wrapperKeys []string) []Strategy {
	return []Strategy{
		DirectArray(),
		WrappedObject(wrapperKeys),
		SingleObject(),
	}
}

// parsed is the winning candidate and strategy of a chain run
type parsed struct {
	candidate Candidate
	strategy  string
	items     []Value
}

// runChain tries every strategy on every candidate in order and stops at the
// first structural success. Candidates that fail to decode are reported in
// diagnostics and, when repair is set, retried once through jsonrepair.
func runChain(candidates []Candidate, strategies []Strategy, repair bool) (*parsed, []Diagnostic) {
	var diags []Diagnostic
	var broken []Candidate

	try := func(c Candidate) *parsed {
		v, err := decode(c.Text)
		if err != nil {
			diags = append(diags, Diagnostic{
				Kind:   CandidateRejected,
				Record: -1,
				Raw:    c.Text,
				Origin: c.Origin,
				Detail: err.Error(),
			})
			broken = append(broken, c)
			return nil
		}
		for _, s := range strategies {
			if items, ok := s.Apply(v); ok {
				return &parsed{candidate: c, strategy: s.Name, items: items}
			}
		}
		diags = append(diags, Diagnostic{
			Kind:   CandidateRejected,
			Record: -1,
			Raw:    c.Text,
			Origin: c.Origin,
			Detail: fmt.Sprintf("no strategy accepts a top-level %s", v.Kind),
		})
		return nil
	}

	for _, c := range candidates {
		if p := try(c); p != nil {
			return p, diags
		}
	}
	if !repair {
		return nil, diags
	}

	retry := broken
	broken = nil
	for _, c := range retry {
		if !looksLikeJSON(c.Text) {
			continue
		}
		fixed, err := jsonrepair.JSONRepair(c.Text)
		if err != nil {
			diags = append(diags, Diagnostic{
				Kind:   CandidateRejected,
				Record: -1,
				Raw:    c.Text,
				Origin: c.Origin,
				Detail: fmt.Sprintf("repairing candidate: %v", err),
			})
			continue
		}
		c.Text = fixed
		c.Origin = c.Origin + "+repaired"
		if p := try(c); p != nil {
			return p, diags
		}
	}
	return nil, diags
}
