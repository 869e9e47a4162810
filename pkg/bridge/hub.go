// Package bridge connects a LocoNet driver to outer transports.
package bridge

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/trackside/pkg/bridge/msgs"
	"github.com/robotalks/trackside/pkg/ln"
)

// DefaultBufferSize is the number of frames buffered per subscription.
const DefaultBufferSize = 64

// Submitter queues messages for transmission, e.g. ln.Driver.
type Submitter interface {
	Submit(msg ...byte) error
}

// Hub fans out received frames to subscriptions and forwards
// submissions to the driver. A slow subscription loses frames instead
// of blocking the driver.
type Hub struct {
	Node       string
	Submitter  Submitter
	BufferSize int
	Now        func() time.Time

	lock    sync.RWMutex
	seq     uint64
	subs    map[*Subscription]struct{}
	dropped uint64
}

// Subscription receives frames from the Hub.
type Subscription struct {
	C <-chan *msgs.Frame

	ch  chan *msgs.Frame
	hub *Hub
}

// NewHub creates a Hub.
func NewHub(node string, submitter Submitter) *Hub {
	return &Hub{
		Node:       node,
		Submitter:  submitter,
		BufferSize: DefaultBufferSize,
		Now:        time.Now,
		subs:       make(map[*Subscription]struct{}),
	}
}

// HandleFrame implements ln.FrameHandler.
func (h *Hub) HandleFrame(q *ln.Queue) {
	h.lock.Lock()
	h.seq++
	seq := h.seq
	h.lock.Unlock()
	h.Publish(&msgs.Frame{
		Node:      h.Node,
		Seq:       seq,
		Data:      q.Drain(),
		Timestamp: h.Now().UnixNano(),
		Direction: msgs.Received,
	})
}

// Publish delivers a frame to all subscriptions.
func (h *Hub) Publish(f *msgs.Frame) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- f:
		default:
			h.dropped++
			glog.V(2).Infof("frame %d dropped by slow subscriber", f.Seq)
		}
	}
}

// Subscribe creates a subscription.
func (h *Hub) Subscribe() *Subscription {
	size := h.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	ch := make(chan *msgs.Frame, size)
	sub := &Subscription{C: ch, ch: ch, hub: h}
	h.lock.Lock()
	h.subs[sub] = struct{}{}
	h.lock.Unlock()
	return sub
}

// Submit forwards the message carried by a frame to the driver.
func (h *Hub) Submit(f *msgs.Frame) error {
	return h.Submitter.Submit(f.Message()...)
}

// Dropped returns the number of frames lost by slow subscriptions.
func (h *Hub) Dropped() uint64 {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.dropped
}

// Close implements io.Closer.
func (s *Subscription) Close() error {
	s.hub.lock.Lock()
	defer s.hub.lock.Unlock()
	if _, ok := s.hub.subs[s]; ok {
		delete(s.hub.subs, s)
		close(s.ch)
	}
	return nil
}
