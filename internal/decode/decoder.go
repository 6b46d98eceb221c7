// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package decode inverts the encoder: it reassembles the client-facing
// response record from a canonical request and the buffered/returned ADUs
// the queue collected for it.
package decode

import (
	"bytes"

	"github.com/lijinling/modbus-mqtt-gateway/internal/buffer"
	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
	"github.com/lijinling/modbus-mqtt-gateway/internal/request"
)

const messageErrorRetrievingData = "Error Retrieving Data"

// Decode reassembles the terse-keyed response record for c, given the
// frames that were sent, the ADU bytes actually transmitted for each (for
// header-match validation) and the response bodies collected for each, in
// the same order as frames. Any Null sentinel, length/header mismatch, or
// debufferiser parse failure marks the whole response failed.
func Decode(c *request.Canonical, frames []*modbus.Frame, sentADUs, responses [][]byte) map[string]interface{} {
	out := echo(c)

	decoded, ok := decodeAll(frames, sentADUs, responses)
	if !ok {
		out["status"] = false
		out["message"] = messageErrorRetrievingData
		return out
	}

	out["status"] = true
	if fd, present := fetchedData(c, frames, decoded); present {
		out["fetched-data"] = fd
	}
	return out
}

func decodeAll(frames []*modbus.Frame, sentADUs, responses [][]byte) ([]*buffer.Decoded, bool) {
	decoded := make([]*buffer.Decoded, len(frames))
	for i, frame := range frames {
		response := responses[i]
		if bytes.Equal(response, modbus.NullSentinel) {
			return nil, false
		}
		if !headerMatches(frame, sentADUs[i], response) {
			return nil, false
		}
		d := buffer.Debufferise(frame, response)
		if d == nil {
			return nil, false
		}
		decoded[i] = d
	}
	return decoded, true
}

// headerMatches compares the leading bytes of sent and response per §4.7's
// table: 4 bytes (unit, func, addr/subfn-hi, subfn-lo) for write/diagnosis,
// 2 bytes (unit, func) for read/raw.
func headerMatches(frame *modbus.Frame, sent, response []byte) bool {
	n := 2
	switch frame.FuncCode {
	case modbus.FuncCodeWriteMultipleCoils, modbus.FuncCodeWriteMultipleRegister, modbus.FuncCodeDiagnostics:
		n = 4
	}
	if len(sent) < n || len(response) < n {
		return false
	}
	return bytes.Equal(sent[:n], response[:n])
}

// fetchedData builds the FETCHED_DATA value per §4.7, returning ok=false
// when the request kind has none (writes, non-data-fetching diagnosis).
func fetchedData(c *request.Canonical, frames []*modbus.Frame, decoded []*buffer.Decoded) (interface{}, bool) {
	switch c.Fn {
	case request.FunctionRead:
		return fetchedDataRead(c, decoded)
	case request.FunctionDiagnosis:
		if len(decoded) == 1 && decoded[0].HasData {
			return []int{decoded[0].Data}, true
		}
		return nil, false
	case request.FunctionModbus:
		if len(decoded) == 1 {
			return decoded[0].Raw, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func fetchedDataRead(c *request.Canonical, decoded []*buffer.Decoded) (interface{}, bool) {
	if c.HasRange() {
		var values []int
		for _, d := range decoded {
			values = append(values, d.Values...)
		}
		return values, true
	}

	// ls path: project decoded values back into the caller's original list
	// order, regardless of how the encoder split/sorted them into frames.
	valueByAddress := map[int]int{}
	for _, d := range decoded {
		for i, addr := range d.Addresses {
			valueByAddress[addr] = d.Values[i]
		}
	}
	values := make([]int, len(c.List))
	for i, addr := range c.List {
		values[i] = valueByAddress[addr]
	}
	return values, true
}

// echo clones the canonical request's terse fields into a fresh map so the
// caller's request survives into the response before status/message/
// fetched-data are layered on.
func echo(c *request.Canonical) map[string]interface{} {
	out := map[string]interface{}{
		"id": c.ID,
		"fn": string(c.Fn),
	}
	if c.Dt != "" {
		out["dt"] = string(c.Dt)
	}
	if c.HasRange() {
		out["rg"] = append([]int(nil), c.Range...)
	}
	if c.HasList() {
		out["ls"] = append([]int(nil), c.List...)
	}
	if c.HasValues() {
		out["dv"] = append([]int(nil), c.Values...)
	}
	if c.HasSubfunction() {
		out["sf"] = c.Subfunction
	}
	if c.HasPacket() {
		out["pk"] = append([]byte(nil), c.Packet...)
	}
	return out
}
