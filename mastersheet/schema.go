package mastersheet

// FieldSet is the declared schema of the master sheet, loaded once per
// session from the schema source. Edits are validated against it before
// they may enter the buffer.
type FieldSet map[FieldID]FieldType

// Has reports whether the schema declares the field.
func (fs FieldSet) Has(f FieldID) bool {
	_, ok := fs[f]
	return ok
}

// Validate checks a value against the field's declared type. Enum values
// are validated by the server on commit; locally any non-empty string is
// accepted for them.
func (fs FieldSet) Validate(recordID RecordID, fieldID FieldID, v Value) error {
	t, ok := fs[fieldID]
	if !ok {
		return ErrUnknownField
	}
	switch t {
	case TypeNumber:
		if _, err := v.Number(); err != nil {
			return &ValidationError{RecordID: recordID, FieldID: fieldID, Declared: t, Value: v, Cause: err}
		}
	case TypeDate:
		if _, err := v.Date(); err != nil {
			return &ValidationError{RecordID: recordID, FieldID: fieldID, Declared: t, Value: v, Cause: err}
		}
	}
	return nil
}
