// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package request holds the canonical request representation and the
// format-tolerant translation between a caller's terse/verbose vocabulary
// and that canonical form.
package request

import "github.com/lijinling/modbus-mqtt-gateway/internal/keyword"

// Function is the canonical (terse) fn token.
type Function string

const (
	FunctionRead      Function = "r"
	FunctionWrite     Function = "u"
	FunctionDiagnosis Function = "d"
	FunctionModbus    Function = "m"
)

// Datatype is the canonical (terse) dt token.
type Datatype string

const (
	DatatypeBooleanInput  Datatype = "bi"
	DatatypeBooleanOutput Datatype = "bo"
	DatatypeNumericInput  Datatype = "ni"
	DatatypeNumericOutput Datatype = "no"
)

// Canonical is the terse-token internal representation of a client request.
// Absence of an optional field is represented by a nil slice or an empty
// string, never by a zero value that could also be a legal setting.
type Canonical struct {
	ID          int
	Fn          Function
	Dt          Datatype // "" if absent
	Range       []int    // exactly two ascending ints, nil if absent
	List        []int    // unique ints, nil if absent
	Values      []int    // nil if absent
	Subfunction string   // terse token, "" if absent
	Packet      []byte   // nil if absent
}

// HasRange reports whether the request carries an rg field.
func (c *Canonical) HasRange() bool { return c.Range != nil }

// HasList reports whether the request carries an ls field.
func (c *Canonical) HasList() bool { return c.List != nil }

// HasValues reports whether the request carries a dv field.
func (c *Canonical) HasValues() bool { return c.Values != nil }

// HasSubfunction reports whether the request carries an sf field.
func (c *Canonical) HasSubfunction() bool { return c.Subfunction != "" }

// HasPacket reports whether the request carries a pk field.
func (c *Canonical) HasPacket() bool { return c.Packet != nil }

// Format is re-exported so callers of this package don't also need to
// import keyword directly just to thread the detected format around.
type Format = keyword.Format

const (
	Terse   = keyword.Terse
	Verbose = keyword.Verbose
)
