// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package validate enforces the request schema and the cross-field rules
// that depend on fn, against whichever vocabulary the caller used.
package validate

import (
	"fmt"

	"github.com/lijinling/modbus-mqtt-gateway/internal/keyword"
	"github.com/lijinling/modbus-mqtt-gateway/internal/request"
)

// Result is the single failure (or success) record the validator emits.
// Deterministic and never mutates its input.
type Result struct {
	OK            bool
	Format        request.Format
	Message       string
	AllowedValues []string
}

func fail(format request.Format, message string, allowed ...string) *Result {
	return &Result{OK: false, Format: format, Message: message, AllowedValues: allowed}
}

func ok(format request.Format) *Result {
	return &Result{OK: true, Format: format}
}

var validFunctions = map[request.Function]bool{
	request.FunctionRead:      true,
	request.FunctionWrite:     true,
	request.FunctionDiagnosis: true,
	request.FunctionModbus:    true,
}

var validWriteDatatypes = map[request.Datatype]bool{
	request.DatatypeBooleanOutput: true,
	request.DatatypeNumericOutput: true,
}

var validReadDatatypes = map[request.Datatype]bool{
	request.DatatypeBooleanInput:  true,
	request.DatatypeBooleanOutput: true,
	request.DatatypeNumericInput:  true,
	request.DatatypeNumericOutput: true,
}

// Validate checks c against the schema and fn-specific cross-field rules,
// returning the single first-encountered error, or an OK result.
func Validate(c *request.Canonicalized) *Result {
	format := c.Format

	if len(c.TypeErrors) > 0 {
		field := c.TypeErrors[0]
		return fail(format, fmt.Sprintf("%s has the wrong type", keyword.FieldName(field, format)))
	}

	v := &c.Value

	if v.ID < 1 || v.ID > 247 {
		return fail(format, fmt.Sprintf("%s must be an integer in [1,247]", keyword.FieldName("id", format)))
	}

	if !validFunctions[v.Fn] {
		return fail(format, fmt.Sprintf("%s must be one of the registered functions", keyword.FieldName("fn", format)),
			keyword.AllowedFunctionTokens(format)...)
	}

	if v.HasRange() {
		if len(v.Range) != 2 || v.Range[0] >= v.Range[1] {
			return fail(format, fmt.Sprintf("%s must be two strictly ascending integers", keyword.FieldName("rg", format)))
		}
	}

	if v.HasList() {
		if len(v.List) == 0 {
			return fail(format, fmt.Sprintf("%s must be a non-empty array", keyword.FieldName("ls", format)))
		}
		if hasDuplicate(v.List) {
			return fail(format, fmt.Sprintf("%s must contain unique addresses", keyword.FieldName("ls", format)))
		}
	}

	if v.HasValues() && len(v.Values) == 0 {
		return fail(format, fmt.Sprintf("%s must be a non-empty array", keyword.FieldName("dv", format)))
	}

	switch v.Fn {
	case request.FunctionRead:
		return validateRead(v, format)
	case request.FunctionWrite:
		return validateWrite(v, format)
	case request.FunctionDiagnosis:
		return validateDiagnosis(v, format)
	case request.FunctionModbus:
		return validateModbus(v, format)
	}
	return ok(format)
}

func validateRead(v *request.Canonical, format request.Format) *Result {
	if v.HasRange() == v.HasList() {
		return fail(format, fmt.Sprintf("exactly one of %s or %s is required",
			keyword.FieldName("rg", format), keyword.FieldName("ls", format)))
	}
	if v.HasValues() || v.HasSubfunction() || v.HasPacket() {
		return fail(format, "read requests must not carry values, subfunction, or packet")
	}
	if v.Dt == "" {
		return fail(format, fmt.Sprintf("%s is required", keyword.FieldName("dt", format)))
	}
	if !validReadDatatypes[v.Dt] {
		return fail(format, fmt.Sprintf("%s must be one of the registered datatypes", keyword.FieldName("dt", format)),
			keyword.AllowedDatatypeTokens(format)...)
	}
	return ok(format)
}

func validateWrite(v *request.Canonical, format request.Format) *Result {
	if v.HasRange() == v.HasList() {
		return fail(format, fmt.Sprintf("exactly one of %s or %s is required",
			keyword.FieldName("rg", format), keyword.FieldName("ls", format)))
	}
	if v.HasSubfunction() || v.HasPacket() {
		return fail(format, "write requests must not carry subfunction or packet")
	}
	if !v.HasValues() {
		return fail(format, fmt.Sprintf("%s is required", keyword.FieldName("dv", format)))
	}
	want := len(v.List)
	if v.HasRange() {
		want = v.Range[1] - v.Range[0] + 1
	}
	if len(v.Values) != want {
		return fail(format, fmt.Sprintf("%s length must equal the range size or list length",
			keyword.FieldName("dv", format)))
	}
	if !validWriteDatatypes[v.Dt] {
		return fail(format, fmt.Sprintf("%s must be one of the registered output datatypes", keyword.FieldName("dt", format)),
			keyword.AllowedDatatypeTokens(format)...)
	}
	return ok(format)
}

func validateDiagnosis(v *request.Canonical, format request.Format) *Result {
	if v.HasValues() || v.Dt != "" || v.HasRange() || v.HasList() || v.HasPacket() {
		return fail(format, "diagnosis requests must only carry subfunction")
	}
	if !v.HasSubfunction() {
		return fail(format, fmt.Sprintf("%s is required", keyword.FieldName("sf", format)))
	}
	if _, ok := keyword.LookupSubfunction(v.Subfunction); !ok {
		return fail(format, fmt.Sprintf("%s must be one of the registered subfunctions", keyword.FieldName("sf", format)),
			keyword.AllowedSubfunctionTokens(format)...)
	}
	return ok(format)
}

func validateModbus(v *request.Canonical, format request.Format) *Result {
	if !v.HasPacket() {
		return fail(format, fmt.Sprintf("%s is required", keyword.FieldName("pk", format)))
	}
	if v.Dt != "" || v.HasRange() || v.HasList() || v.HasValues() || v.HasSubfunction() {
		return fail(format, "modbus requests must only carry packet")
	}
	return ok(format)
}

func hasDuplicate(xs []int) bool {
	seen := make(map[int]bool, len(xs))
	for _, x := range xs {
		if seen[x] {
			return true
		}
		seen[x] = true
	}
	return false
}
