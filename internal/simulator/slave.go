// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator provides an in-memory Modbus slave: a register/coil
// bank plus the PDU-level dispatch the teacher's local-slave package
// implements, repurposed here to answer the RTU requests this gateway's
// bufferiser emits. It exists solely to drive in-process integration
// tests of the field agent and the broker pipeline against a fake
// physical device, never a real bus -- see DESIGN.md for why the
// teacher's mmap-backed persistence was dropped along with it.
package simulator

import (
	"encoding/binary"

	"github.com/lijinling/modbus-mqtt-gateway/internal/keyword"
	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
	"github.com/lijinling/modbus-mqtt-gateway/internal/simulator/model"
)

// Slave answers Modbus RTU request PDUs (unit id, function code, data...,
// no CRC) against an in-memory DataModel, the way a physical field device
// would. One Slave serves one unit id; HandleRequest ignores requests
// addressed to any other id.
type Slave struct {
	UnitID byte
	Model  *model.DataModel
}

// NewSlave constructs a Slave over a fresh zeroed DataModel.
func NewSlave(unitID byte) *Slave {
	return &Slave{UnitID: unitID, Model: model.NewDataModel()}
}

// HandleRequest processes one request PDU and returns the response PDU
// (unit id, function code, data..., no CRC), or nil if the request is not
// addressed to this slave.
func (s *Slave) HandleRequest(req []byte) []byte {
	if len(req) < 2 || req[0] != s.UnitID {
		return nil
	}
	unit, funcCode, data := req[0], req[1], req[2:]

	switch funcCode {
	case modbus.FuncCodeReadCoils:
		return s.readBits(unit, funcCode, data, s.Model.ReadCoils)
	case modbus.FuncCodeReadDiscreteInputs:
		return s.readBits(unit, funcCode, data, s.Model.ReadDiscreteInputs)
	case modbus.FuncCodeReadHoldingRegisters:
		return s.readRegisters(unit, funcCode, data, s.Model.ReadHoldingRegisters)
	case modbus.FuncCodeReadInputRegisters:
		return s.readRegisters(unit, funcCode, data, s.Model.ReadInputRegisters)
	case modbus.FuncCodeWriteMultipleCoils:
		return s.writeCoils(unit, funcCode, data)
	case modbus.FuncCodeWriteMultipleRegister:
		return s.writeRegisters(unit, funcCode, data)
	case modbus.FuncCodeDiagnostics:
		return s.diagnostics(unit, funcCode, data)
	default:
		return nil
	}
}

type bitReader func(address, quantity uint16) ([]byte, error)
type registerReader func(address, quantity uint16) ([]byte, error)

func (s *Slave) readBits(unit, funcCode byte, data []byte, read bitReader) []byte {
	if len(data) != 4 {
		return nil
	}
	address := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	bits, err := read(address, quantity)
	if err != nil {
		return nil
	}
	out := make([]byte, 3+len(bits))
	out[0], out[1], out[2] = unit, funcCode, byte(len(bits))
	copy(out[3:], bits)
	return out
}

func (s *Slave) readRegisters(unit, funcCode byte, data []byte, read registerReader) []byte {
	if len(data) != 4 {
		return nil
	}
	address := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	regs, err := read(address, quantity)
	if err != nil {
		return nil
	}
	out := make([]byte, 3+len(regs))
	out[0], out[1], out[2] = unit, funcCode, byte(len(regs))
	copy(out[3:], regs)
	return out
}

func (s *Slave) writeCoils(unit, funcCode byte, data []byte) []byte {
	if len(data) < 5 {
		return nil
	}
	address := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	byteCount := data[4]
	if len(data) < int(5+byteCount) {
		return nil
	}
	if err := s.Model.WriteMultipleCoils(address, quantity, data[5:5+byteCount]); err != nil {
		return nil
	}
	out := make([]byte, 6)
	out[0], out[1] = unit, funcCode
	copy(out[2:4], data[0:2])
	copy(out[4:6], data[2:4])
	return out
}

func (s *Slave) writeRegisters(unit, funcCode byte, data []byte) []byte {
	if len(data) < 5 {
		return nil
	}
	address := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	byteCount := data[4]
	if len(data) < int(5+byteCount) {
		return nil
	}
	if err := s.Model.WriteMultipleRegisters(address, quantity, data[5:5+byteCount]); err != nil {
		return nil
	}
	out := make([]byte, 6)
	out[0], out[1] = unit, funcCode
	copy(out[2:4], data[0:2])
	copy(out[4:6], data[2:4])
	return out
}

// diagnostics answers function 0x08 by echoing the subfunction and, for
// data-fetching subfunctions (per the keyword registry, not a hard-coded
// set here either), a fixed datum -- there being no real diagnostic
// register to report from a simulated slave.
func (s *Slave) diagnostics(unit, funcCode byte, data []byte) []byte {
	if len(data) != 4 {
		return nil
	}
	subCode := binary.BigEndian.Uint16(data[0:2])
	sub, ok := keyword.SubfunctionByCode(subCode)
	if !ok {
		return nil
	}
	out := make([]byte, 6)
	out[0], out[1] = unit, funcCode
	copy(out[2:4], data[0:2])
	if sub.DataFetching {
		binary.BigEndian.PutUint16(out[4:6], 0x0000)
	}
	return out
}
