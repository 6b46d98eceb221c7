// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package request

import (
	"reflect"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
		want Format
		ok   bool
	}{
		{"terse", map[string]interface{}{"id": 1.0}, Terse, true},
		{"verbose", map[string]interface{}{"identifier": 1.0}, Verbose, true},
		{"neither", map[string]interface{}{"fn": "r"}, Terse, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.raw)
			if (err == nil) != tt.ok {
				t.Fatalf("DetectFormat(%v) err = %v, want ok=%v", tt.raw, err, tt.ok)
			}
			if err == nil && got != tt.want {
				t.Errorf("DetectFormat(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeTerseRead(t *testing.T) {
	raw := map[string]interface{}{
		"id": 1.0,
		"fn": "r",
		"dt": "ni",
		"rg": []interface{}{1.0, 10.0},
	}
	got, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := Canonical{ID: 1, Fn: FunctionRead, Dt: DatatypeNumericInput, Range: []int{1, 10}}
	if !reflect.DeepEqual(got.Value, want) {
		t.Errorf("Canonicalize = %+v, want %+v", got.Value, want)
	}
	if got.Format != Terse {
		t.Errorf("Format = %v, want Terse", got.Format)
	}
	if len(got.TypeErrors) != 0 {
		t.Errorf("TypeErrors = %v, want none", got.TypeErrors)
	}
}

func TestCanonicalizeVerboseEquivalence(t *testing.T) {
	terse := map[string]interface{}{
		"id": 7.0,
		"fn": "u",
		"dt": "no",
		"ls": []interface{}{4.0, 2.0},
		"dv": []interface{}{1.0, 0.0},
	}
	verbose := map[string]interface{}{
		"identifier": 7.0,
		"function":   "write",
		"datatype":   "numeric-output",
		"list":       []interface{}{4.0, 2.0},
		"values":     []interface{}{1.0, 0.0},
	}
	gotTerse, err := Canonicalize(terse)
	if err != nil {
		t.Fatalf("Canonicalize(terse): %v", err)
	}
	gotVerbose, err := Canonicalize(verbose)
	if err != nil {
		t.Fatalf("Canonicalize(verbose): %v", err)
	}
	if !reflect.DeepEqual(gotTerse.Value, gotVerbose.Value) {
		t.Errorf("canonical forms differ: %+v vs %+v", gotTerse.Value, gotVerbose.Value)
	}
	if gotVerbose.Format != Verbose {
		t.Errorf("Format = %v, want Verbose", gotVerbose.Format)
	}
}

func TestCanonicalizeUnknownEnumTokenPassesThrough(t *testing.T) {
	raw := map[string]interface{}{"id": 1.0, "fn": "bogus"}
	got, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if got.Value.Fn != Function("bogus") {
		t.Errorf("Fn = %q, want passthrough %q", got.Value.Fn, "bogus")
	}
}

func TestCanonicalizeTypeError(t *testing.T) {
	raw := map[string]interface{}{"id": "not-a-number"}
	got, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if len(got.TypeErrors) != 1 || got.TypeErrors[0] != "id" {
		t.Errorf("TypeErrors = %v, want [id]", got.TypeErrors)
	}
}

func TestProjectFormatPreservesOriginalCasing(t *testing.T) {
	original := map[string]interface{}{"identifier": 1.0, "function": "read"}
	response := map[string]interface{}{"id": 1, "status": true}
	got := ProjectFormat(response, original, Verbose)
	if got["identifier"] != 1.0 {
		t.Errorf("identifier = %v, want preserved original 1.0", got["identifier"])
	}
	if got["status"] != true {
		t.Errorf("status = %v, want true", got["status"])
	}
	if _, ok := got["id"]; ok {
		t.Errorf("projected response should use verbose key, not terse")
	}
}

func TestProjectFormatRetokensEnumFields(t *testing.T) {
	response := map[string]interface{}{"fn": "r", "status": true}
	got := ProjectFormat(response, map[string]interface{}{}, Verbose)
	if got["function"] != "read" {
		t.Errorf("function = %v, want %q", got["function"], "read")
	}
}

// TestRoundTripExampleRequests exercises the four worked-example payloads
// from the interface description, checking that after canonicalising and
// then projecting back under the original request, the id field comes back
// under the caller's own key with the caller's original value.
func TestRoundTripExampleRequests(t *testing.T) {
	examples := []map[string]interface{}{
		{"id": 3.0, "fn": "r", "dt": "ni", "rg": []interface{}{1.0, 10.0}},
		{"id": 3.0, "fn": "u", "dt": "no", "ls": []interface{}{4.0, 2.0, 6.0}, "dv": []interface{}{2.0, 1.0, 0.0}},
		{"id": 3.0, "fn": "d", "sf": "rqdt"},
		{"identifier": 3.0, "function": "read", "datatype": "numeric-input", "range": []interface{}{1.0, 10.0}},
	}
	for i, raw := range examples {
		c, err := Canonicalize(raw)
		if err != nil {
			t.Fatalf("example %d: Canonicalize: %v", i, err)
		}
		response := map[string]interface{}{
			"id":     c.Value.ID,
			"fn":     string(c.Value.Fn),
			"status": true,
		}
		projected := ProjectFormat(response, raw, c.Format)
		idKey := "id"
		if c.Format == Verbose {
			idKey = "identifier"
		}
		if projected[idKey] != raw[idKey] {
			t.Errorf("example %d: %s = %v, want preserved %v", i, idKey, projected[idKey], raw[idKey])
		}
	}
}
