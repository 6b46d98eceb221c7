// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package clientrequest

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is the per-ADU wait the queue allows before marking a
// request timed out.
const DefaultTimeout = 3000 * time.Millisecond

// MaxQueueSize is the FIFO admission cap per device lane.
const MaxQueueSize = 256

// ErrQueueFull is returned by Enqueue when a device's lane is already at
// MaxQueueSize. The source silently drops past this point; this gateway
// surfaces it instead, per the decision recorded against that open
// question.
var ErrQueueFull = errors.New("clientrequest: queue full")

// Publish sends an ADU (already tagged broker-origin) toward the field for
// the given device.
type Publish func(deviceID string, adu []byte)

// Respond delivers a finished response record to the client for the given
// device.
type Respond func(deviceID string, response map[string]interface{})

// Queue is a map device -> lane: each lane is an independent FIFO with its
// own single in-flight request, so multiple devices make progress
// concurrently while requests to the same device never interleave on the
// wire.
type Queue struct {
	publish Publish
	respond Respond
	timeout time.Duration

	mu    sync.Mutex
	lanes map[string]*lane
}

// New constructs a Queue. timeout is the per-ADU wait; zero selects
// DefaultTimeout.
func New(publish Publish, respond Respond, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Queue{
		publish: publish,
		respond: respond,
		timeout: timeout,
		lanes:   map[string]*lane{},
	}
}

type lane struct {
	deviceID string
	requests chan *Request

	mu       sync.Mutex
	inFlight *Request
}

func (q *Queue) laneFor(deviceID string) *lane {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.lanes[deviceID]
	if !ok {
		l = &lane{
			deviceID: deviceID,
			requests: make(chan *Request, MaxQueueSize),
		}
		q.lanes[deviceID] = l
		go q.run(l)
	}
	return l
}

// Enqueue admits req onto its device's lane, or returns ErrQueueFull.
func (q *Queue) Enqueue(req *Request) error {
	l := q.laneFor(req.DeviceID)
	select {
	case l.requests <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// RouteResponse appends an untagged response buffer to the lane's current
// in-flight request. Messages that arrive while no request is in flight are
// discarded: there is nothing for them to match. RTU replies carry no
// transaction id, so a message is credited to whichever request is in
// flight when it arrives; a late reply to a timed-out request that arrives
// after the next request has started is delivered to that next request.
// Capturing the *Request itself (not just a "has one" flag) under the lock
// means a delivery that races the lane's switch to the next request still
// targets the request that was in flight when it arrived.
func (q *Queue) RouteResponse(deviceID string, body []byte) {
	l := q.laneFor(deviceID)
	l.mu.Lock()
	req := l.inFlight
	l.mu.Unlock()
	if req == nil {
		return
	}
	req.Deliver(body)
}

// run is the lane's dispatch goroutine: strictly serial, one request fully
// finalised and published before the next is dequeued.
func (q *Queue) run(l *lane) {
	for req := range l.requests {
		l.mu.Lock()
		l.inFlight = req
		l.mu.Unlock()

		q.drive(l, req)

		l.mu.Lock()
		l.inFlight = nil
		l.mu.Unlock()
	}
}

// drive runs the per-request execution algorithm from §4.8: post each ADU,
// await its matching response or the per-ADU timeout, then finalize and
// publish exactly one response.
func (q *Queue) drive(l *lane, req *Request) {
	for {
		adu, more := req.NextADU()
		if !more {
			break
		}
		q.publish(req.DeviceID, taggedBrokerOrigin(adu))

		select {
		case body := <-req.incoming:
			req.AddResponse(body)
		case <-time.After(q.timeout):
			slog.Warn("clientrequest: request timed out", "device", req.DeviceID, "client", req.ClientID)
			q.respond(req.DeviceID, req.Finalize(true))
			return
		}
	}
	q.respond(req.DeviceID, req.Finalize(false))
}

const tagBrokerOrigin = 0x00

func taggedBrokerOrigin(adu []byte) []byte {
	return append([]byte{tagBrokerOrigin}, adu...)
}

func (q *Queue) String() string {
	return fmt.Sprintf("clientrequest.Queue{lanes=%d}", len(q.lanes))
}
