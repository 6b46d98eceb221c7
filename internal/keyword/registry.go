// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package keyword is the single source of truth for wire vocabulary.
// Every other package that needs a field name or an enumerated value's
// wire token goes through here rather than hard-coding it.
package keyword

// Format identifies which vocabulary a caller used for a request.
type Format int

const (
	// Terse is the internal canonical form (id, fn, dt, ...).
	Terse Format = iota
	// Verbose is the caller-friendly form (identifier, function, datatype, ...).
	Verbose
)

// Pair is a terse/verbose token pair, unique within its role.
type Pair struct {
	Terse   string
	Verbose string
}

// Fields lists the eight canonical request fields plus the four response-only
// fields, in registry order. status/message/fetched-data/allowed-values have
// no verbose spelling distinct from their terse one in any example payload in
// the spec, so they are registered as identity pairs.
var Fields = []Pair{
	{"id", "identifier"},
	{"fn", "function"},
	{"dt", "datatype"},
	{"rg", "range"},
	{"ls", "list"},
	{"dv", "values"},
	{"sf", "subfunction"},
	{"pk", "packet"},
	{"status", "status"},
	{"message", "message"},
	{"fetched-data", "fetched-data"},
	{"allowed-values", "allowed-values"},
}

// Functions enumerates the fn field's allowed values.
var Functions = []Pair{
	{"r", "read"},
	{"u", "write"},
	{"d", "diagnosis"},
	{"m", "modbus"},
}

// Datatypes enumerates the dt field's allowed values.
var Datatypes = []Pair{
	{"bi", "boolean-input"},
	{"bo", "boolean-output"},
	{"ni", "numeric-input"},
	{"no", "numeric-output"},
}

// Subfunction is a diagnosis (fn=d) subfunction registry entry. DataFetching
// mirrors whether the physical device returns a meaningful 2-byte datum for
// this subfunction, per the design note that the set must come from this
// table rather than be hard-coded in the debufferiser/decoder.
type Subfunction struct {
	Pair
	Code         uint16
	DataFetching bool
}

// Subfunctions is the diagnosis subfunction registry (Modbus function 0x08).
var Subfunctions = []Subfunction{
	{Pair{"rqdt", "return-query-data"}, 0x0000, true},
	{Pair{"rcoo", "restart-comm-option"}, 0x0001, false},
	{Pair{"rdreg", "return-diagnostic-register"}, 0x0002, true},
	{Pair{"caid", "change-ascii-input-delimiter"}, 0x0003, false},
	{Pair{"flom", "force-listen-only-mode"}, 0x0004, false},
	{Pair{"ccdr", "clear-counters-and-diagnostic-register"}, 0x000A, false},
	{Pair{"rbmc", "return-bus-message-count"}, 0x000B, true},
	{Pair{"rbcec", "return-bus-comm-error-count"}, 0x000C, true},
	{Pair{"rbeec", "return-bus-exception-error-count"}, 0x000D, true},
	{Pair{"rsmc", "return-slave-message-count"}, 0x000E, true},
	{Pair{"rsnrc", "return-slave-no-response-count"}, 0x000F, true},
	{Pair{"rsnakc", "return-slave-nak-count"}, 0x0010, true},
	{Pair{"rsbc", "return-slave-busy-count"}, 0x0011, true},
	{Pair{"rbco", "return-bus-char-overrun-count"}, 0x0012, true},
	{Pair{"coc", "clear-overrun-counter-and-flag"}, 0x0014, false},
}

var (
	fieldByTerse   = map[string]Pair{}
	fieldByVerbose = map[string]Pair{}

	functionByToken = map[string]Pair{}
	datatypeByToken = map[string]Pair{}

	subfunctionByToken = map[string]Subfunction{}
	subfunctionByCode  = map[uint16]Subfunction{}
)

func init() {
	for _, p := range Fields {
		fieldByTerse[p.Terse] = p
		fieldByVerbose[p.Verbose] = p
	}
	for _, p := range Functions {
		functionByToken[p.Terse] = p
		functionByToken[p.Verbose] = p
	}
	for _, p := range Datatypes {
		datatypeByToken[p.Terse] = p
		datatypeByToken[p.Verbose] = p
	}
	for _, s := range Subfunctions {
		subfunctionByToken[s.Terse] = s
		subfunctionByToken[s.Verbose] = s
		subfunctionByCode[s.Code] = s
	}
}

// FieldName returns the name of the canonical field identified by its terse
// token, projected into the requested format. Unknown terse keys are passed
// through unchanged, per §4.1's "unknown token -> pass through" failure mode.
func FieldName(terseKey string, format Format) string {
	p, ok := fieldByTerse[terseKey]
	if !ok {
		return terseKey
	}
	if format == Verbose {
		return p.Verbose
	}
	return p.Terse
}

// FieldKeyFor returns the canonical (terse) field name for whichever key the
// caller used (terse or verbose), or "" if key names no registered field.
func FieldKeyFor(key string) (terse string, ok bool) {
	if p, ok := fieldByTerse[key]; ok {
		return p.Terse, true
	}
	if p, ok := fieldByVerbose[key]; ok {
		return p.Terse, true
	}
	return "", false
}

// CanonicalFunction returns the terse token for a fn value given in either
// vocabulary. ok is false if the token isn't registered.
func CanonicalFunction(token string) (string, bool) {
	p, ok := functionByToken[token]
	return p.Terse, ok
}

// ProjectFunction returns the fn token in the requested format.
func ProjectFunction(terse string, format Format) string {
	p, ok := functionByToken[terse]
	if !ok {
		return terse
	}
	if format == Verbose {
		return p.Verbose
	}
	return p.Terse
}

// CanonicalDatatype returns the terse token for a dt value given in either
// vocabulary. ok is false if the token isn't registered.
func CanonicalDatatype(token string) (string, bool) {
	p, ok := datatypeByToken[token]
	return p.Terse, ok
}

// ProjectDatatype returns the dt token in the requested format.
func ProjectDatatype(terse string, format Format) string {
	p, ok := datatypeByToken[terse]
	if !ok {
		return terse
	}
	if format == Verbose {
		return p.Verbose
	}
	return p.Terse
}

// LookupSubfunction resolves a subfunction token given in either vocabulary.
func LookupSubfunction(token string) (Subfunction, bool) {
	s, ok := subfunctionByToken[token]
	return s, ok
}

// SubfunctionByCode resolves a subfunction by its Modbus wire code.
func SubfunctionByCode(code uint16) (Subfunction, bool) {
	s, ok := subfunctionByCode[code]
	return s, ok
}

// ProjectSubfunction returns the subfunction token in the requested format.
func ProjectSubfunction(terse string, format Format) string {
	s, ok := subfunctionByToken[terse]
	if !ok {
		return terse
	}
	if format == Verbose {
		return s.Verbose
	}
	return s.Terse
}

// AllowedFunctionTokens returns the fn tokens in the requested format, for
// validator "allowed-values" error payloads.
func AllowedFunctionTokens(format Format) []string {
	out := make([]string, 0, len(Functions))
	for _, p := range Functions {
		if format == Verbose {
			out = append(out, p.Verbose)
		} else {
			out = append(out, p.Terse)
		}
	}
	return out
}

// AllowedDatatypeTokens returns the dt tokens in the requested format, for
// validator "allowed-values" error payloads.
func AllowedDatatypeTokens(format Format) []string {
	out := make([]string, 0, len(Datatypes))
	for _, p := range Datatypes {
		if format == Verbose {
			out = append(out, p.Verbose)
		} else {
			out = append(out, p.Terse)
		}
	}
	return out
}

// AllowedSubfunctionTokens returns the sf tokens in the requested format, for
// validator "allowed-values" error payloads.
func AllowedSubfunctionTokens(format Format) []string {
	out := make([]string, 0, len(Subfunctions))
	for _, s := range Subfunctions {
		if format == Verbose {
			out = append(out, s.Verbose)
		} else {
			out = append(out, s.Terse)
		}
	}
	return out
}
