// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package buffer

import (
	"encoding/binary"

	"github.com/lijinling/modbus-mqtt-gateway/internal/keyword"
	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
)

// Decoded is the structured result of debuffering one response against
// the frame that produced it.
type Decoded struct {
	// Values holds one decoded value per address in Addresses, for read
	// frames only.
	Values    []int
	Addresses []int

	// Data is the fetched datum for a data-fetching diagnosis subfunction.
	HasData bool
	Data    int

	// Raw carries a modbus (fn=m) response body verbatim.
	Raw []byte
}

// Debufferise inverts Bufferise against response, the field-returned body
// for the outgoing frame (tag and CRC already stripped). It returns nil on
// any parse error -- too short, a byte count that doesn't match frame's
// Count -- matching §4.6's null-on-error contract.
func Debufferise(frame *modbus.Frame, response []byte) *Decoded {
	switch frame.FuncCode {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs:
		return debufferiseReadBoolean(frame, response)
	case modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		return debufferiseReadNumeric(frame, response)
	case modbus.FuncCodeWriteMultipleCoils, modbus.FuncCodeWriteMultipleRegister:
		return debufferiseWrite(frame, response)
	case modbus.FuncCodeDiagnostics:
		return debufferiseDiagnosis(frame, response)
	case 0:
		return &Decoded{Raw: response}
	default:
		return nil
	}
}

func debufferiseReadNumeric(frame *modbus.Frame, response []byte) *Decoded {
	if len(response) < 3 {
		return nil
	}
	byteCount := int(response[2])
	if byteCount != 2*frame.Count || len(response) < 3+byteCount {
		return nil
	}
	values := make([]int, frame.Count)
	addresses := make([]int, frame.Count)
	for i := 0; i < frame.Count; i++ {
		values[i] = int(binary.BigEndian.Uint16(response[3+2*i : 5+2*i]))
		addresses[i] = frame.Address + i
	}
	return &Decoded{Values: values, Addresses: addresses}
}

func debufferiseReadBoolean(frame *modbus.Frame, response []byte) *Decoded {
	if len(response) < 3 {
		return nil
	}
	wantByteCount := (frame.Count + 7) / 8
	byteCount := int(response[2])
	if byteCount != wantByteCount || len(response) < 3+byteCount {
		return nil
	}
	values := make([]int, frame.Count)
	addresses := make([]int, frame.Count)
	for i := 0; i < frame.Count; i++ {
		b := response[3+i/8]
		bit := (b >> (i % 8)) & 1
		values[i] = int(bit)
		addresses[i] = frame.Address + i
	}
	return &Decoded{Values: values, Addresses: addresses}
}

func debufferiseWrite(frame *modbus.Frame, response []byte) *Decoded {
	if len(response) < 4 {
		return nil
	}
	return &Decoded{}
}

func debufferiseDiagnosis(frame *modbus.Frame, response []byte) *Decoded {
	if len(response) < 6 {
		return nil
	}
	sub, ok := keyword.SubfunctionByCode(uint16(frame.Subfunction))
	if !ok {
		return nil
	}
	if !sub.DataFetching {
		return &Decoded{}
	}
	return &Decoded{HasData: true, Data: int(binary.BigEndian.Uint16(response[4:6]))}
}
