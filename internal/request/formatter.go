// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package request

import (
	"errors"

	"github.com/lijinling/modbus-mqtt-gateway/internal/keyword"
)

// ErrFormatUndetected is returned when a request carries neither "id" nor
// "identifier", so the caller's vocabulary can't be determined.
var ErrFormatUndetected = errors.New("request: missing id/identifier, cannot detect format")

// DetectFormat implements §4.2's discriminator rule: presence of "id"
// implies terse, presence of "identifier" implies verbose.
func DetectFormat(raw map[string]interface{}) (Format, error) {
	if _, ok := raw["id"]; ok {
		return Terse, nil
	}
	if _, ok := raw["identifier"]; ok {
		return Verbose, nil
	}
	return Terse, ErrFormatUndetected
}

// Canonicalized is the result of normalising a raw request into canonical
// form, alongside the bookkeeping the validator and decoder need afterwards.
type Canonicalized struct {
	Value      Canonical
	Format     Format
	Raw        map[string]interface{}
	TypeErrors []string // terse field names present but not parseable
}

var canonicalFieldOrder = []string{"id", "fn", "dt", "rg", "ls", "dv", "sf", "pk"}

// Canonicalize iterates the eight canonical fields (§4.2), reading each
// under whichever vocabulary key the detected format implies, substituting
// the terse form for any recognised enum token and otherwise keeping the
// caller's value verbatim. Fields present but not structurally parseable to
// their expected shape are recorded in TypeErrors rather than rejected here
// -- deciding whether that's fatal is the validator's job.
func Canonicalize(raw map[string]interface{}) (*Canonicalized, error) {
	format, err := DetectFormat(raw)
	if err != nil {
		return nil, err
	}

	out := &Canonicalized{Format: format, Raw: raw}
	canon := &out.Value

	for _, field := range canonicalFieldOrder {
		key := keyword.FieldName(field, format)
		v, present := raw[key]
		if !present {
			continue
		}
		switch field {
		case "id":
			n, ok := toInt(v)
			if !ok {
				out.TypeErrors = append(out.TypeErrors, field)
				continue
			}
			canon.ID = n
		case "fn":
			s, ok := toString(v)
			if !ok {
				out.TypeErrors = append(out.TypeErrors, field)
				continue
			}
			if terse, ok := keyword.CanonicalFunction(s); ok {
				canon.Fn = Function(terse)
			} else {
				canon.Fn = Function(s)
			}
		case "dt":
			s, ok := toString(v)
			if !ok {
				out.TypeErrors = append(out.TypeErrors, field)
				continue
			}
			if terse, ok := keyword.CanonicalDatatype(s); ok {
				canon.Dt = Datatype(terse)
			} else {
				canon.Dt = Datatype(s)
			}
		case "rg":
			ints, ok := toIntSlice(v)
			if !ok {
				out.TypeErrors = append(out.TypeErrors, field)
				continue
			}
			canon.Range = ints
		case "ls":
			ints, ok := toIntSlice(v)
			if !ok {
				out.TypeErrors = append(out.TypeErrors, field)
				continue
			}
			canon.List = ints
		case "dv":
			ints, ok := toIntSlice(v)
			if !ok {
				out.TypeErrors = append(out.TypeErrors, field)
				continue
			}
			canon.Values = ints
		case "sf":
			s, ok := toString(v)
			if !ok {
				out.TypeErrors = append(out.TypeErrors, field)
				continue
			}
			if sub, ok := keyword.LookupSubfunction(s); ok {
				canon.Subfunction = sub.Terse
			} else {
				canon.Subfunction = s
			}
		case "pk":
			bytes, ok := toByteSlice(v)
			if !ok {
				out.TypeErrors = append(out.TypeErrors, field)
				continue
			}
			canon.Packet = bytes
		}
	}

	return out, nil
}

// ProjectFormat implements the inverse operation of §4.2: for each key in
// response, look up the original-format key name; if originalRequest
// carried a value there, preserve it verbatim (exact caller casing/format);
// otherwise emit the newly computed value under the projected key.
func ProjectFormat(response map[string]interface{}, originalRequest map[string]interface{}, format Format) map[string]interface{} {
	out := make(map[string]interface{}, len(response))
	for key, value := range response {
		projected := keyword.FieldName(key, format)
		if orig, ok := originalRequest[projected]; ok {
			out[projected] = orig
			continue
		}
		out[projected] = projectValue(key, value, format)
	}
	return out
}

// projectValue re-tokenises enum-valued fields (fn, dt, sf) into the target
// format; every other field's value passes through unchanged.
func projectValue(terseKey string, value interface{}, format Format) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch terseKey {
	case "fn":
		return keyword.ProjectFunction(s, format)
	case "dt":
		return keyword.ProjectDatatype(s, format)
	case "sf":
		return keyword.ProjectSubfunction(s, format)
	default:
		return value
	}
}

// --- JSON value coercion helpers ---
//
// encoding/json decodes numbers into map[string]interface{} as float64, so
// every numeric field needs explicit coercion back to int.

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func toString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toIntSlice(v interface{}) ([]int, bool) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(arr))
	for _, e := range arr {
		n, ok := toInt(e)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func toByteSlice(v interface{}) ([]byte, bool) {
	ints, ok := toIntSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}
