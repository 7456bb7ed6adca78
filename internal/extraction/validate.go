package extraction

// Validate turns normalized fields into a Draft, or reports why the record is
// rejected. Rules are checked in order and the first failure wins; only the
// amount can reject a record.
func Validate(f Fields) (Draft, *Diagnostic) {
	if f.Amount.State != FieldValid || f.Amount.Value.IsNegative() {
		return Draft{}, &Diagnostic{
			Kind:   InvalidAmount,
			Field:  "amount",
			Raw:    f.Amount.Raw,
			Detail: f.Amount.Detail,
		}
	}
	if f.Amount.Value.IsZero() {
		return Draft{}, &Diagnostic{
			Kind:   ZeroAmount,
			Field:  "amount",
			Raw:    f.Amount.Raw,
			Detail: "zero amount",
		}
	}

	return Draft{
		Amount:    f.Amount.Value,
		IsExpense: f.IsExpense,
		Note:      f.Note,
		Category:  f.Category,
		Date:      f.Date,
	}, nil
}
