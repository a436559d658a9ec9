package models

import (
	"database/sql/driver"
	"encoding/json"
)

// StringList is a JSONB-backed ordered list of strings (image URLs,
// available sizes, gender targets).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// RowError describes a single record that failed during a sync run.
type RowError struct {
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

// RowErrorList is a JSONB-backed ordered list of row errors.
type RowErrorList []RowError

func (l RowErrorList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]RowError{})
	}
	return json.Marshal([]RowError(l))
}

func (l *RowErrorList) Scan(value interface{}) error {
	if value == nil {
		*l = RowErrorList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}
