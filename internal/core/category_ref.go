package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

type refState uint8

const (
	refUnset refState = iota
	refNull
	refID
)

// CategoryRef is the category field of a transaction write. Its zero value is
// "not supplied"; NullCategory and CategoryID build the other two states.
type CategoryRef struct {
	state refState
	id    int64
}

func NullCategory() CategoryRef { return CategoryRef{state: refNull} }

func CategoryID(id int64) CategoryRef { return CategoryRef{state: refID, id: id} }

func (r CategoryRef) IsSet() bool  { return r.state != refUnset }
func (r CategoryRef) IsNull() bool { return r.state == refNull }

// ID returns the referenced id; ok is false unless an explicit id was given.
func (r CategoryRef) ID() (int64, bool) {
	return r.id, r.state == refID
}

// UnmarshalJSON is only invoked when the field is present, so a missing field
// keeps the zero value. Numeric strings are accepted as ids.
func (r *CategoryRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = NullCategory()
		return nil
	}
	var raw json.Number
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return FieldError("category", ErrUnknownCategory)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*r = NullCategory()
			return nil
		}
		raw = json.Number(s)
	} else {
		raw = json.Number(data)
	}
	id, err := raw.Int64()
	if err != nil || id <= 0 {
		return FieldError("category", ErrUnknownCategory)
	}
	*r = CategoryID(id)
	return nil
}
