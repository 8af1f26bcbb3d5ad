package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector holds an embedding in pgvector's text format ("[x,y,z]").
// A nil Vector persists as SQL NULL.
type Vector []float32

// Value implements driver.Valuer
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// Scan implements sql.Scanner
func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}

	var s string
	switch t := src.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return fmt.Errorf("cannot scan %T into Vector", src)
	}

	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return fmt.Errorf("malformed vector literal: %q", s)
	}
	s = s[1 : len(s)-1]
	if s == "" {
		*v = Vector{}
		return nil
	}

	parts := strings.Split(s, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("malformed vector element %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	*v = out
	return nil
}
