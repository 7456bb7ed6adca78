package extraction

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Draft is a validated transaction proposed to the user for confirmation
type Draft struct {
	Amount    decimal.Decimal `json:"amount"`
	IsExpense bool            `json:"isExpense"`
	Note      *string         `json:"note,omitempty"`
	Category  *string         `json:"category,omitempty"`
	Date      *civil.Date     `json:"date,omitempty"` // nil means the caller picks a default
}

// DiagnosticKind names why a record or field was rejected or degraded
type DiagnosticKind string

const (
	// Record rejections
	InvalidAmount DiagnosticKind = "InvalidAmount"
	ZeroAmount    DiagnosticKind = "ZeroAmount"
	NotARecord    DiagnosticKind = "NotARecord"

	// Field softfails, the record is kept
	DirectionDefaulted DiagnosticKind = "DirectionDefaulted"
	DateMissing        DiagnosticKind = "DateMissing"
	DateUnparseable    DiagnosticKind = "DateUnparseable"
	InvalidText        DiagnosticKind = "InvalidText"

	// Candidate that no strategy could parse
	CandidateRejected DiagnosticKind = "CandidateRejected"
)

// Fatal reports whether the kind drops the record
func (k DiagnosticKind) Fatal() bool {
	switch k {
	case InvalidAmount, ZeroAmount, NotARecord:
		return true
	}
	return false
}

// Diagnostic explains one rejection or softfail. Record is the index of the
// record in the parsed batch, or -1 for candidate level entries.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Record int            `json:"record"`
	Field  string         `json:"field,omitempty"`
	Raw    string         `json:"raw"`
	Origin Origin         `json:"origin"`
	Detail string         `json:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s record=%d origin=%s", d.Kind, d.Record, d.Origin)
	if d.Field != "" {
		s += " field=" + d.Field
	}
	s += fmt.Sprintf(" raw=%q", d.Raw)
	if d.Detail != "" {
		s += " (" + d.Detail + ")"
	}
	return s
}

// FailureKind classifies a failed extraction
type FailureKind string

const (
	NoStructure FailureKind = "NoStructure"
	Unparseable FailureKind = "Unparseable"
	AllRejected FailureKind = "AllRejected"
)

var (
	ErrNoStructure = errors.New("no structured data found in response")
	ErrUnparseable = errors.New("structured data found but could not be parsed")
	ErrAllRejected = errors.New("every extracted record was rejected")
)

// Failure is returned by Extract when no draft survives. Raw keeps the full
// response for diagnostics.
type Failure struct {
	Kind FailureKind
	Raw  string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", f.Kind, f.Unwrap())
}

func (f *Failure) Unwrap() error {
	switch f.Kind {
	case NoStructure:
		return ErrNoStructure
	case Unparseable:
		return ErrUnparseable
	}
	return ErrAllRejected
}
