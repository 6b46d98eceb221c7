// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package fieldagent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const (
	serialIdleTimeout = 60 * time.Second
	// writeSettle is the pause after transmitting before the port is read,
	// giving an RS-485 transceiver time to release the bus and turn around
	// to receive.
	writeSettle = 3 * time.Millisecond
)

// serialPort owns the physical UART and serialises every RTU exchange
// through it: Exchange holds mu for the whole round trip, so neither
// Connect/Close nor the idle-close timer can touch the port mid-exchange.
type serialPort struct {
	serial.Config

	IdleTimeout time.Duration

	mu           sync.Mutex
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

func (p *serialPort) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connect(ctx)
}

// connect opens the port if it isn't already open. Caller must hold mu.
func (p *serialPort) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.port == nil {
		port, err := serial.Open(&p.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", p.Config.Address, err)
		}
		p.port = port
	}
	return nil
}

func (p *serialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.close()
}

// close closes the port if connected. Caller must hold mu.
func (p *serialPort) close() error {
	var err error
	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return err
}

func (p *serialPort) startCloseTimer() {
	if p.IdleTimeout <= 0 {
		return
	}
	if p.closeTimer == nil {
		p.closeTimer = time.AfterFunc(p.IdleTimeout, p.closeIdle)
	} else {
		p.closeTimer.Reset(p.IdleTimeout)
	}
}

// closeIdle closes the connection once IdleTimeout has passed with no
// exchange, so a long-quiet bus doesn't hold the UART open indefinitely.
func (p *serialPort) closeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.IdleTimeout <= 0 {
		return
	}
	if idle := time.Since(p.lastActivity); idle >= p.IdleTimeout {
		slog.Debug("fieldagent: closing idle serial port", "idle", idle)
		p.close()
	}
}

// Exchange performs the field agent's one allowed UART round trip: transmit
// frame in full, pause for the bus to turn around, then read a reply with
// the two-stage deadline. It returns ErrNoResponse if nothing
// came back before firstByte elapses. One attempt only; callers must not
// retry internally.
func (p *serialPort) Exchange(ctx context.Context, frame []byte, firstByte, interSymbol time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(ctx); err != nil {
		return nil, err
	}
	p.lastActivity = time.Now()
	defer p.startCloseTimer()

	if _, err := p.port.Write(frame); err != nil {
		return nil, fmt.Errorf("fieldagent: write: %w", err)
	}
	time.Sleep(writeSettle)

	reply, err := ReadFrame(p.port, firstByte, interSymbol)
	p.lastActivity = time.Now()
	if err != nil {
		return nil, err
	}
	return reply, nil
}
