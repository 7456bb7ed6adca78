package extraction

import "time"

// Config holds the extraction policy. The zero value is not useful; start from
// DefaultConfig.
type Config struct {
	// ExpenseByDefault is the direction given to records with no usable
	// direction field. Every use is reported as DirectionDefaulted.
	ExpenseByDefault bool
	// WrapperKeys are the object keys, in order, that may hold the record array
	WrapperKeys []string
	// DateLayouts are tried in order; the first that parses wins
	DateLayouts []string
	// Repair runs candidates that fail to decode through jsonrepair and tries
	// the strategy chain once more.
	Repair bool
}

// DefaultConfig returns the standard extraction policy
func DefaultConfig() Config {
	return Config{
		ExpenseByDefault: true,
		WrapperKeys: []string{
			"transactions", "items", "drafts", "receipts",
			"records", "entries", "results", "data",
		},
		DateLayouts: []string{
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02",
			"2006/01/02",
			"01/02/2006",
			"1/2/2006",
			"Jan 2, 2006",
			"January 2, 2006",
			"2 Jan 2006",
			"02.01.2006",
			// day first, only reached when the month-first layouts fail
			"02/01/2006",
		},
		Repair: true,
	}
}

// Extractor converts model responses into transaction drafts. It holds only
// its configuration and is safe for concurrent use.
type Extractor struct {
	cfg        Config
	strategies []Strategy
}

// New creates an Extractor with the given policy
func New(cfg Config) *Extractor {
	return &Extractor{
		cfg:        cfg,
		strategies: Strategies(cfg.WrapperKeys),
	}
}

// Result is the outcome of one extraction. Diagnostics are filled in on
// success and on failure.
type Result struct {
	Drafts      []Draft      `json:"drafts"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	// Origin and Strategy identify the candidate and strategy that parsed
	Origin   Origin `json:"origin,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

var defaultExtractor = New(DefaultConfig())

// Extract runs text through the default Extractor
func Extract(text string) (Result, error) {
	return defaultExtractor.Extract(text)
}

// Extract scans text for structured data, parses it with the strategy chain,
// then normalizes and validates every record. It returns at least one draft,
// or a *Failure saying why none could be produced. It never panics on
// malformed input.
func (x *Extractor) Extract(text string) (Result, error) {
	var res Result

	candidates := Scan(text)
	if len(candidates) == 0 {
		return res, &Failure{Kind: NoStructure, Raw: text}
	}

	p, diags := runChain(candidates, x.strategies, x.cfg.Repair)
	res.Diagnostics = append(res.Diagnostics, diags...)
	if p == nil {
		return res, &Failure{Kind: Unparseable, Raw: text}
	}
	res.Origin = p.candidate.Origin
	res.Strategy = p.strategy

	stamp := func(d Diagnostic, i int) Diagnostic {
		d.Record = i
		d.Origin = p.candidate.Origin
		return d
	}

	for i, item := range p.items {
		if item.Kind != KindObject {
			res.Diagnostics = append(res.Diagnostics, stamp(Diagnostic{
				Kind:   NotARecord,
				Raw:    item.Raw(),
				Detail: "expected object, got " + item.Kind.String(),
			}, i))
			continue
		}

		fields, soft := x.Normalize(item.Object)
		draft, rejected := Validate(fields)
		if rejected != nil {
			// softfails of a dropped record are noise next to its rejection
			res.Diagnostics = append(res.Diagnostics, stamp(*rejected, i))
			continue
		}
		for _, d := range soft {
			res.Diagnostics = append(res.Diagnostics, stamp(d, i))
		}
		res.Drafts = append(res.Drafts, draft)
	}

	if len(res.Drafts) == 0 {
		return res, &Failure{Kind: AllRejected, Raw: text}
	}
	return res, nil
}
