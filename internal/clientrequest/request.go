// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package clientrequest is the unit of work that travels through the
// per-device queue: a validated canonical request, its compiled ADUs, and
// the response buffers collected for them as they arrive from the field.
package clientrequest

import (
	"github.com/lijinling/modbus-mqtt-gateway/internal/decode"
	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
	"github.com/lijinling/modbus-mqtt-gateway/internal/request"
)

// Request aggregates everything the queue needs to drive one client
// request from enqueue to a single published response.
type Request struct {
	ClientID string
	DeviceID string

	Canonical *request.Canonical
	Format    request.Format
	RawRequest map[string]interface{}

	Frames []*modbus.Frame
	ADUs   [][]byte // bufferised, no CRC; one per Frame, send order

	// Responses collects one buffer per ADU sent so far, in send order.
	// The field agent's tag byte has already been stripped by the time a
	// buffer lands here.
	Responses [][]byte

	// incoming is this request's own response-delivery channel. Owning one
	// per request (rather than sharing a single channel on the lane) ties
	// a late-arriving response to the request it actually belongs to: once
	// the queue moves on to the next request after a timeout, a response
	// delivered for this one lands in a channel nobody reads anymore
	// instead of being misattributed to whatever request runs next.
	incoming chan []byte
}

// NewRequest builds a Request from a validated canonicalisation and its
// compiled frames/ADUs.
func NewRequest(clientID, deviceID string, c *request.Canonicalized, frames []*modbus.Frame, adus [][]byte) *Request {
	return &Request{
		ClientID:   clientID,
		DeviceID:   deviceID,
		Canonical:  &c.Value,
		Format:     c.Format,
		RawRequest: c.Raw,
		Frames:     frames,
		ADUs:       adus,
		incoming:   make(chan []byte, 1),
	}
}

// NextADU returns the ADU the queue should send next, and whether there is
// one (i.e. not every ADU has a response yet).
func (r *Request) NextADU() ([]byte, bool) {
	i := len(r.Responses)
	if i >= len(r.ADUs) {
		return nil, false
	}
	return r.ADUs[i], true
}

// AddResponse appends a response buffer, matching it to the next
// outstanding ADU by arrival order -- Modbus RTU has no transaction id.
func (r *Request) AddResponse(buf []byte) {
	r.Responses = append(r.Responses, buf)
}

// Done reports whether every ADU has a matching response.
func (r *Request) Done() bool {
	return len(r.Responses) >= len(r.ADUs)
}

// Deliver hands buf to whoever is awaiting this request's next response,
// without blocking. It returns false if the buffer is already holding an
// undelivered response -- this request's lane never has more than one ADU
// outstanding at a time, so that only happens once this request is no
// longer the one being driven, and the buffer is safely left to be
// garbage-collected with the request.
func (r *Request) Deliver(buf []byte) bool {
	select {
	case r.incoming <- buf:
		return true
	default:
		return false
	}
}

// Finalize builds the client-facing response record, in the caller's
// original vocabulary. timedOut overrides decoding with the timeout
// outcome; otherwise the request must be Done.
func (r *Request) Finalize(timedOut bool) map[string]interface{} {
	var response map[string]interface{}
	if timedOut {
		response = map[string]interface{}{
			"id":     r.Canonical.ID,
			"fn":     string(r.Canonical.Fn),
			"status": false,
			"message": "Timed Out",
		}
	} else {
		response = decode.Decode(r.Canonical, r.Frames, r.ADUs, r.Responses)
	}
	return request.ProjectFormat(response, r.RawRequest, r.Format)
}
