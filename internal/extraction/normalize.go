package extraction

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var (
	amountKeys      = []string{"amount", "total", "value", "price", "sum"}
	expenseFlagKeys = []string{"isExpense", "is_expense", "expense"}
	typeKeys        = []string{"type", "direction", "kind", "transactionType", "transaction_type"}
	noteKeys        = []string{"note", "description", "merchant", "label", "title"}
	categoryKeys    = []string{"category", "categoryName", "category_name"}
	dateKeys        = []string{"date", "transactionDate", "transaction_date", "txDate"}
)

var expenseWords = map[string]bool{
	"expense": true, "debit": true, "purchase": true, "payment": true,
	"withdrawal": true, "charge": true, "outflow": true, "spend": true,
}

var incomeWords = map[string]bool{
	"income": true, "credit": true, "deposit": true, "refund": true,
	"inflow": true, "revenue": true, "salary": true, "reimbursement": true,
}

// FieldState says whether a normalized field was found and usable
type FieldState int

const (
	FieldAbsent FieldState = iota
	FieldValid
	FieldInvalid
)

// Amount is the normalized amount of one record
type Amount struct {
	Value decimal.Decimal
	State FieldState
	Raw   string
	// Detail explains an invalid amount
	Detail string
	// NegativeHint is set when a text amount carried a leading minus or
	// parentheses. It suggests an expense and is not part of Value.
	NegativeHint bool
}

// Fields holds the normalized, not yet validated values of one record
type Fields struct {
	Amount    Amount
	IsExpense bool
	Note      *string
	Category  *string
	Date      *civil.Date
}

var (
	errNoDigits      = errors.New("no digits in amount")
	errAmountTooLong = errors.New("amount has too many digits")
	errAmountRange   = errors.New("amount out of range")
)

const (
	// maxAmountLiteral caps the characters handed to the decimal parser
	maxAmountLiteral = 40
	// maxAmountExponent bounds the decimal exponent in both directions
	maxAmountExponent = 20
)

// maxAmount is the first magnitude no receipt line reaches
var maxAmount = decimal.New(1, 15)

// Normalize coerces every field of rec independently. It never fails; problems
// with individual fields come back as diagnostics and the Validator decides
// what is fatal.
func (x *Extractor) Normalize(rec Record) (Fields, []Diagnostic) {
	var diags []Diagnostic
	note := func(d *Diagnostic) {
		if d != nil {
			diags = append(diags, *d)
		}
	}

	var f Fields
	f.Amount = normalizeAmount(rec)

	isExpense, d := x.normalizeDirection(rec, f.Amount.NegativeHint)
	f.IsExpense = isExpense
	note(d)

	f.Note, d = textField(rec, noteKeys, false)
	note(d)
	f.Category, d = textField(rec, categoryKeys, true)
	note(d)

	f.Date, d = x.normalizeDate(rec)
	note(d)

	return f, diags
}

func normalizeAmount(rec Record) Amount {
	_, v, ok := lookupPresent(rec, amountKeys)
	if !ok {
		return Amount{State: FieldAbsent, Detail: "missing"}
	}

	a := Amount{Raw: v.Raw()}
	switch v.Kind {
	case KindNumber:
		d, err := parseDecimal(v.Number.String())
		if err != nil {
			a.State, a.Detail = FieldInvalid, err.Error()
			return a
		}
		if d.IsNegative() {
			a.State, a.Detail = FieldInvalid, "negative amount"
			return a
		}
		a.Value, a.State = d, FieldValid
	case KindText:
		d, negative, err := parseAmountText(v.Text)
		if err != nil {
			a.State, a.Detail = FieldInvalid, err.Error()
			return a
		}
		a.Value, a.State, a.NegativeHint = d, FieldValid, negative
	default:
		a.State, a.Detail = FieldInvalid, fmt.Sprintf("unsupported %s amount", v.Kind)
	}
	return a
}

// parseAmountText strips currency symbols, letters and whitespace, keeping
// digits and separators. A minus or opening parenthesis before the first digit
// is reported as a sign hint and never makes the magnitude negative.
func parseAmountText(s string) (decimal.Decimal, bool, error) {
	var kept strings.Builder
	negative := false
	sawDigit := false

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sawDigit = true
			kept.WriteRune(r)
		case r == '.' || r == ',':
			kept.WriteRune(r)
		case !sawDigit && (r == '-' || r == '−' || r == '('):
			negative = true
		}
	}
	if !sawDigit {
		return decimal.Decimal{}, false, errNoDigits
	}

	cleaned := normalizeSeparators(kept.String())
	d, err := parseDecimal(cleaned)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	return d, negative, nil
}

// parseDecimal parses a plain or exponent-form decimal and rejects magnitudes
// no receipt carries. Length and exponent are checked before anything expands
// the coefficient.
func parseDecimal(s string) (decimal.Decimal, error) {
	if len(s) > maxAmountLiteral {
		return decimal.Decimal{}, errAmountTooLong
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Decimal{}, errAmountRange
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Decimal{}, errAmountRange
	}
	return d, nil
}

// normalizeSeparators turns a digits-and-separators string into a plain
// decimal with "." as the only separator.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// the rightmost separator is the decimal one
		if lastComma > lastDot {
			s = strings.ReplaceAll(s[:lastComma], ".", "") + "." + s[lastComma+1:]
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		frac := len(s) - lastComma - 1
		if strings.Count(s, ",") == 1 && (frac == 1 || frac == 2) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	s = strings.TrimRight(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	return s
}

func (x *Extractor) normalizeDirection(rec Record, negativeHint bool) (bool, *Diagnostic) {
	field, raw := "", ""

	if key, v, ok := lookupPresent(rec, expenseFlagKeys); ok {
		switch v.Kind {
		case KindBool:
			return v.Bool, nil
		case KindText:
			if b, err := strconv.ParseBool(strings.TrimSpace(v.Text)); err == nil {
				return b, nil
			}
		}
		field, raw = key, v.Raw()
	}

	if key, v, ok := lookupPresent(rec, typeKeys); ok {
		if v.Kind == KindText {
			word := strings.ToLower(strings.TrimSpace(v.Text))
			if expenseWords[word] {
				return true, nil
			}
			if incomeWords[word] {
				return false, nil
			}
		}
		field, raw = key, v.Raw()
	}

	if negativeHint {
		return true, nil
	}

	direction := "income"
	if x.cfg.ExpenseByDefault {
		direction = "expense"
	}
	if field == "" {
		field = "isExpense"
	}
	return x.cfg.ExpenseByDefault, &Diagnostic{
		Kind:   DirectionDefaulted,
		Field:  field,
		Raw:    raw,
		Detail: "defaulted to " + direction,
	}
}

// textField returns the first text value under keys, trimmed. A non-text value
// degrades the field to absent.
func textField(rec Record, keys []string, dropEmpty bool) (*string, *Diagnostic) {
	var bad *Diagnostic
	for _, name := range keys {
		key, v, ok := rec.Lookup(name)
		if !ok || v.Kind == KindNull {
			continue
		}
		if v.Kind != KindText {
			if bad == nil {
				bad = &Diagnostic{
					Kind:   InvalidText,
					Field:  key,
					Raw:    v.Raw(),
					Detail: fmt.Sprintf("expected text, got %s", v.Kind),
				}
			}
			continue
		}
		s := strings.TrimSpace(v.Text)
		if dropEmpty && s == "" {
			continue
		}
		return &s, nil
	}
	return nil, bad
}

func (x *Extractor) normalizeDate(rec Record) (*civil.Date, *Diagnostic) {
	key, v, ok := lookupPresent(rec, dateKeys)
	if !ok {
		return nil, &Diagnostic{Kind: DateMissing, Field: "date", Detail: "no date in record"}
	}

	if v.Kind != KindText {
		return nil, &Diagnostic{
			Kind:   DateUnparseable,
			Field:  key,
			Raw:    v.Raw(),
			Detail: fmt.Sprintf("expected text, got %s", v.Kind),
		}
	}

	s := strings.TrimSpace(v.Text)
	if s == "" {
		return nil, &Diagnostic{Kind: DateMissing, Field: key, Detail: "empty date"}
	}
	for _, layout := range x.cfg.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := civil.DateOf(t)
			return &d, nil
		}
	}
	return nil, &Diagnostic{
		Kind:   DateUnparseable,
		Field:  key,
		Raw:    v.Raw(),
		Detail: "no known date layout matches",
	}
}

// lookupPresent returns the first key from names whose value is not null
func lookupPresent(rec Record, names []string) (string, Value, bool) {
	for _, name := range names {
		if key, v, ok := rec.Lookup(name); ok && v.Kind != KindNull {
			return key, v, true
		}
	}
	return "", Value{}, false
}
