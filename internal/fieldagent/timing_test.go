// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package fieldagent

import (
	"bytes"
	"testing"
	"time"
)

func TestInterSymbolTimeoutFloor(t *testing.T) {
	// A fast 115200 baud 8N1 link computes to well under 1ms; the floor
	// must still apply.
	got := InterSymbolTimeout(115200, 8, 0, 1)
	if got != time.Millisecond {
		t.Errorf("InterSymbolTimeout(115200,...) = %v, want %v", got, time.Millisecond)
	}
}

func TestInterSymbolTimeoutSlowBaud(t *testing.T) {
	// 9600 baud 8N1: 1500*9/9600 = 1.40625ms, ceil'd up.
	got := InterSymbolTimeout(9600, 8, 0, 1)
	if got <= time.Millisecond {
		t.Errorf("InterSymbolTimeout(9600,...) = %v, want > 1ms", got)
	}
}

// fakeReader is an io.Reader stub that feeds a fixed byte sequence and
// ignores read deadlines -- used to exercise ReadFrame's accumulation and
// its no-response case without a real serial port.
type fakeReader struct {
	data []byte
	pos  int
}

func (f *fakeReader) Read(p []byte) (int, error) {
	if f.pos >= len(f.data) {
		return 0, nil
	}
	p[0] = f.data[f.pos]
	f.pos++
	return 1, nil
}

func TestReadFrameAccumulatesUntilSourceExhausted(t *testing.T) {
	want := []byte{0x07, 0x04, 0x14, 0x00, 0x01}
	r := &fakeReader{data: want}
	got, err := ReadFrame(r, 50*time.Millisecond, time.Millisecond)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadFrame = %x, want %x", got, want)
	}
}

func TestReadFrameNoResponse(t *testing.T) {
	r := &fakeReader{data: nil}
	_, err := ReadFrame(r, 5*time.Millisecond, time.Millisecond)
	if err != ErrNoResponse {
		t.Errorf("ReadFrame err = %v, want ErrNoResponse", err)
	}
}
