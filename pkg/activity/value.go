// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package activity

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Value is a tracked numeric that legacy client writes sometimes stored
// as a numeric string ("12" instead of 12). It decodes either form and
// always re-encodes as a JSON number.
type Value struct {
	f   float64
	set bool
}

// NewValue wraps a float.
func NewValue(f float64) Value {
	return Value{f: f, set: true}
}

// Float64 returns the numeric value, 0 when unset or unparseable.
func (v Value) Float64() float64 {
	return v.f
}

// IsSet reports whether a value was present at all.
func (v Value) IsSet() bool {
	return v.set
}

// Positive reports whether the value is present and greater than zero.
func (v Value) Positive() bool {
	return v.set && v.f > 0
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("0"), nil
	}
	return json.Marshal(v.f)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Value{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			// Legacy garbage values are treated as absent rather than
			// failing the whole document decode.
			*v = Value{}
			return nil
		}
		*v = Value{f: f, set: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value{f: f, set: true}
	return nil
}
