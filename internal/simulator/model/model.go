// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package model is the register/coil bank behind the simulated slave: a
// flat in-memory table for each of the four Modbus data spaces this
// gateway's encoder ever addresses. Unlike the teacher's local-slave
// model, there is no single-coil/single-register write here -- this
// gateway's bufferiser only ever emits the multiple-write function codes
// (0x0F, 0x10), so those are the only writers this bank needs.
package model

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// MaxAddress is the highest addressable offset in any of the four tables,
// matching the 16-bit address field Modbus RTU carries on the wire.
const MaxAddress = 65535

// DataModel is a slave's register/coil state: four independent flat
// tables, each spanning the full 16-bit address space, guarded by one
// lock shared across all four (a simulated slave never sees enough
// concurrent traffic -- at most one in-flight exchange per device, by
// construction of the per-device queue -- to need finer granularity).
type DataModel struct {
	mu sync.RWMutex

	coils            []byte   // 0x, read/write, one byte per bit (0 or 1)
	discreteInputs   []byte   // 1x, read-only
	holdingRegisters []uint16 // 4x, read/write
	inputRegisters   []uint16 // 3x, read-only
}

// NewDataModel returns a zeroed bank spanning the full address space.
func NewDataModel() *DataModel {
	return &DataModel{
		coils:            make([]byte, MaxAddress+1),
		discreteInputs:   make([]byte, MaxAddress+1),
		holdingRegisters: make([]uint16, MaxAddress+1),
		inputRegisters:   make([]uint16, MaxAddress+1),
	}
}

// SeedHoldingRegisters sets consecutive holding registers starting at
// address, for tests that need a slave pre-loaded with known values.
func (m *DataModel) SeedHoldingRegisters(address uint16, values []uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range values {
		m.holdingRegisters[int(address)+i] = v
	}
}

// SeedCoils sets consecutive coils starting at address to 1 where bits is
// true, for tests that need a slave pre-loaded with known values.
func (m *DataModel) SeedCoils(address uint16, bits []bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range bits {
		if b {
			m.coils[int(address)+i] = 1
		} else {
			m.coils[int(address)+i] = 0
		}
	}
}

// ReadCoils returns quantity coils from address, packed LSB-first per byte.
func (m *DataModel) ReadCoils(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packBits(m.coils, address, quantity)
}

// ReadDiscreteInputs returns quantity discrete inputs from address, packed
// the same way as ReadCoils.
func (m *DataModel) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packBits(m.discreteInputs, address, quantity)
}

// ReadHoldingRegisters returns quantity holding registers from address as
// big-endian bytes.
func (m *DataModel) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packRegisters(m.holdingRegisters, address, quantity)
}

// ReadInputRegisters returns quantity input registers from address as
// big-endian bytes.
func (m *DataModel) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packRegisters(m.inputRegisters, address, quantity)
}

// WriteMultipleCoils sets quantity coils from address, unpacking data
// LSB-first per byte the way the bufferiser packed them.
func (m *DataModel) WriteMultipleCoils(address, quantity uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, quantity); err != nil {
		return err
	}
	if want := (int(quantity) + 7) / 8; len(data) < want {
		return fmt.Errorf("model: write coils: need %d bytes, got %d", want, len(data))
	}
	for i := 0; i < int(quantity); i++ {
		bit := (data[i/8] >> uint(i%8)) & 1
		m.coils[int(address)+i] = bit
	}
	return nil
}

// WriteMultipleRegisters sets quantity holding registers from address,
// reading data as big-endian uint16s.
func (m *DataModel) WriteMultipleRegisters(address, quantity uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, quantity); err != nil {
		return err
	}
	if len(data) < int(quantity)*2 {
		return fmt.Errorf("model: write registers: need %d bytes, got %d", int(quantity)*2, len(data))
	}
	for i := 0; i < int(quantity); i++ {
		m.holdingRegisters[int(address)+i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return nil
}

func packBits(table []byte, address, quantity uint16) ([]byte, error) {
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	out := make([]byte, (int(quantity)+7)/8)
	for i := 0; i < int(quantity); i++ {
		if table[int(address)+i] != 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out, nil
}

func packRegisters(table []uint16, address, quantity uint16) ([]byte, error) {
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	out := make([]byte, int(quantity)*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(out[2*i:], table[int(address)+i])
	}
	return out, nil
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("model: quantity must be > 0")
	}
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("model: address range [%d,%d) out of bounds", address, int(address)+int(quantity))
	}
	return nil
}
