// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package encode turns a validated canonical request into one or more
// abstract Modbus frames, coalescing scattered addresses into the minimum
// number of contiguous ranges.
package encode

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lijinling/modbus-mqtt-gateway/internal/keyword"
	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
	"github.com/lijinling/modbus-mqtt-gateway/internal/request"
)

// ErrFrameTooLarge is returned when a requested range or list would
// bufferise into a PDU past modbus.MaxPDUSize -- this gateway does not
// split an oversized read/write into multiple ADUs.
var ErrFrameTooLarge = errors.New("encode: request exceeds the maximum PDU size")

// funcCodeTable is keyed by (fn, dt); see §4.4.
var funcCodeTable = map[request.Function]map[request.Datatype]int{
	request.FunctionRead: {
		request.DatatypeBooleanOutput: modbus.FuncCodeReadCoils,
		request.DatatypeBooleanInput:  modbus.FuncCodeReadDiscreteInputs,
		request.DatatypeNumericOutput: modbus.FuncCodeReadHoldingRegisters,
		request.DatatypeNumericInput:  modbus.FuncCodeReadInputRegisters,
	},
	request.FunctionWrite: {
		request.DatatypeBooleanOutput: modbus.FuncCodeWriteMultipleCoils,
		request.DatatypeNumericOutput: modbus.FuncCodeWriteMultipleRegister,
	},
}

// Encode translates c into the ordered abstract frames that will be
// buffered and sent. c must already have passed validation.
func Encode(c *request.Canonical) ([]*modbus.Frame, error) {
	switch c.Fn {
	case request.FunctionRead, request.FunctionWrite:
		return encodeReadWrite(c)
	case request.FunctionDiagnosis:
		return encodeDiagnosis(c)
	case request.FunctionModbus:
		return encodeRaw(c)
	default:
		return nil, fmt.Errorf("encode: unsupported function %q", c.Fn)
	}
}

func encodeReadWrite(c *request.Canonical) ([]*modbus.Frame, error) {
	funcCode, ok := funcCodeTable[c.Fn][c.Dt]
	if !ok {
		return nil, fmt.Errorf("encode: no function code for fn=%q dt=%q", c.Fn, c.Dt)
	}

	if c.HasRange() {
		lo, hi := c.Range[0], c.Range[1]
		frame := &modbus.Frame{
			UnitID:   c.ID,
			FuncCode: funcCode,
			Address:  lo,
			Count:    hi - lo + 1,
		}
		if c.Fn == request.FunctionWrite {
			frame.Values = c.Values
			addrs := make([]int, frame.Count)
			for i := range addrs {
				addrs[i] = lo + i
			}
			frame.Addresses = addrs
		}
		if pduSize(funcCode, frame.Count) > modbus.MaxPDUSize {
			return nil, fmt.Errorf("encode: rg [%d,%d] on fn=%q dt=%q: %w", lo, hi, c.Fn, c.Dt, ErrFrameTooLarge)
		}
		return []*modbus.Frame{frame}, nil
	}

	// ls path: coalesce into maximal contiguous runs, preserving the
	// original ls->dv pairing for writes regardless of sort order.
	valueByAddress := map[int]int{}
	if c.Fn == request.FunctionWrite {
		for i, addr := range c.List {
			valueByAddress[addr] = c.Values[i]
		}
	}

	runs := contiguousRuns(c.List)
	frames := make([]*modbus.Frame, 0, len(runs))
	for _, run := range runs {
		frame := &modbus.Frame{
			UnitID:   c.ID,
			FuncCode: funcCode,
			Address:  run[0],
			Count:    len(run),
		}
		if c.Fn == request.FunctionWrite {
			values := make([]int, len(run))
			for i, addr := range run {
				values[i] = valueByAddress[addr]
			}
			frame.Values = values
			frame.Addresses = run
		}
		if pduSize(funcCode, frame.Count) > modbus.MaxPDUSize {
			return nil, fmt.Errorf("encode: ls run [%d,%d] on fn=%q dt=%q: %w", run[0], run[len(run)-1], c.Fn, c.Dt, ErrFrameTooLarge)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// pduSize returns the byte size buffer.Bufferise would produce for a frame
// with the given function code and count -- unit id and function code (2
// bytes) plus the address/count or address/count/byteCount+payload that
// follows, per §4.5's layout table.
func pduSize(funcCode, count int) int {
	switch funcCode {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		return 6
	case modbus.FuncCodeWriteMultipleRegister:
		return 7 + 2*count
	case modbus.FuncCodeWriteMultipleCoils:
		return 7 + (count+7)/8
	default:
		return 0
	}
}

func encodeDiagnosis(c *request.Canonical) ([]*modbus.Frame, error) {
	sub, ok := keyword.LookupSubfunction(c.Subfunction)
	if !ok {
		return nil, fmt.Errorf("encode: unregistered subfunction %q", c.Subfunction)
	}
	return []*modbus.Frame{{
		UnitID:      c.ID,
		FuncCode:    modbus.FuncCodeDiagnostics,
		Subfunction: int(sub.Code),
		Data:        0,
	}}, nil
}

func encodeRaw(c *request.Canonical) ([]*modbus.Frame, error) {
	return []*modbus.Frame{{
		UnitID: c.ID,
		Raw:    c.Packet,
	}}, nil
}

// contiguousRuns sorts addrs ascending (addrs is assumed already unique,
// as the validator requires for ls) and splits it into maximal runs of
// consecutive integers.
func contiguousRuns(addrs []int) [][]int {
	sorted := append([]int(nil), addrs...)
	sort.Ints(sorted)

	var runs [][]int
	var current []int
	for i, a := range sorted {
		if i > 0 && a != sorted[i-1]+1 {
			runs = append(runs, current)
			current = nil
		}
		current = append(current, a)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}
