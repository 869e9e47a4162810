// Package sim simulates a LocoNet segment shared by several drivers on a
// virtual clock.
package sim

import (
	"container/heap"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/trackside/pkg/ln"
)

// Defaults of the simulated line.
const (
	// DefaultByteTime is 10 bits at 16.66 kbaud.
	DefaultByteTime = 600 * time.Microsecond
	// DefaultSenseDelay is the latency until a starting byte is seen
	// on the line, one bit time.
	DefaultSenseDelay = 60 * time.Microsecond
)

// Bus is a virtual LocoNet segment. Overlapping bytes are merged as
// wired-AND, a break held by any node corrupts the line for all others.
type Bus struct {
	ByteTime   time.Duration
	SenseDelay time.Duration
	Nodes      []*Node

	now      time.Duration
	seq      uint64
	events   eventQueue
	transfer *transfer
	breaks   int
}

type transfer struct {
	value   byte
	start   time.Duration
	end     time.Duration
	senders []*Node
}

type eventKind int

const (
	evTimer eventKind = iota
	evTransferEnd
	evTransmitReady
	evReceiveError
)

type event struct {
	at       time.Duration
	seq      uint64
	kind     eventKind
	node     *Node
	gen      uint64
	transfer *transfer
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() interface{} {
	old := *q
	ev := old[len(old)-1]
	*q = old[:len(old)-1]
	return ev
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{ByteTime: DefaultByteTime, SenseDelay: DefaultSenseDelay}
}

// Now returns the virtual time.
func (b *Bus) Now() time.Duration {
	return b.now
}

// AddNode attaches a started driver seeded with seed.
func (b *Bus) AddNode(name string, seed uint16) *Node {
	n := &Node{Name: name, bus: b}
	n.Driver = ln.NewDriver(n, n, seed)
	n.Driver.Handler = ln.HandleFrameFunc(func(q *ln.Queue) {
		n.Frames = append(n.Frames, q.Drain())
	})
	b.Nodes = append(b.Nodes, n)
	n.Driver.Start()
	return n
}

// RunFor advances the virtual clock by d, processing all events due.
func (b *Bus) RunFor(d time.Duration) {
	end := b.now + d
	for b.events.Len() > 0 && b.events[0].at <= end {
		ev := heap.Pop(&b.events).(*event)
		b.now = ev.at
		b.dispatch(ev)
	}
	b.now = end
}

func (b *Bus) schedule(ev *event) {
	b.seq++
	ev.seq = b.seq
	heap.Push(&b.events, ev)
}

func (b *Bus) dispatch(ev *event) {
	switch ev.kind {
	case evTimer:
		if ev.gen == ev.node.timerGen {
			ev.node.Driver.Handle(ln.TimerExpired())
		}
	case evTransmitReady:
		ev.node.Driver.Handle(ln.TransmitReady())
	case evReceiveError:
		if !ev.node.breaking {
			ev.node.Driver.Handle(ln.ReceiveError())
		}
	case evTransferEnd:
		if ev.transfer != b.transfer {
			return
		}
		t := b.transfer
		b.transfer = nil
		for _, n := range b.Nodes {
			if !n.breaking {
				n.Driver.Handle(ln.ByteReceived(t.value))
			}
		}
		for _, n := range t.senders {
			n.Driver.Handle(ln.TransmitReady())
		}
	}
}

func (b *Bus) lineFree() bool {
	if b.breaks > 0 {
		return false
	}
	return b.transfer == nil || b.now-b.transfer.start < b.SenseDelay
}

func (b *Bus) transmit(n *Node, v byte) {
	if b.breaks > 0 {
		// swallowed by the break.
		b.schedule(&event{at: b.now + b.ByteTime, kind: evTransmitReady, node: n})
		return
	}
	t := b.transfer
	if t == nil {
		t = &transfer{value: v, start: b.now}
	} else {
		glog.V(3).Infof("%v: %s collides %02x with %02x", b.now, n.Name, v, t.value)
		t = &transfer{value: t.value & v, start: t.start, senders: t.senders}
	}
	t.senders = append(t.senders, n)
	t.end = b.now + b.ByteTime
	b.transfer = t
	b.schedule(&event{at: t.end, kind: evTransferEnd, transfer: t})
}

func (b *Bus) setBreak(n *Node, on bool) {
	if n.breaking == on {
		return
	}
	n.breaking = on
	if !on {
		b.breaks--
		return
	}
	b.breaks++
	b.transfer = nil
	for _, other := range b.Nodes {
		if other != n {
			b.schedule(&event{at: b.now + b.ByteTime, kind: evReceiveError, node: other})
		}
	}
}

// Node is a bus member. It is the Port and Timer of its driver.
type Node struct {
	Name   string
	Driver *ln.Driver
	// Frames are all frames received.
	Frames [][]byte

	bus      *Bus
	timerGen uint64
	breaking bool
}

// Submit queues a message for transmission.
func (n *Node) Submit(msg ...byte) error {
	return n.Driver.Submit(msg...)
}

// LineFree implements ln.Port.
func (n *Node) LineFree() bool {
	return n.bus.lineFree()
}

// TransmitByte implements ln.Port.
func (n *Node) TransmitByte(b byte) {
	n.bus.transmit(n, b)
}

// SetBreak implements ln.Port.
func (n *Node) SetBreak(on bool) {
	n.bus.setBreak(n, on)
}

// Arm implements ln.Timer.
func (n *Node) Arm(d time.Duration) {
	n.timerGen++
	n.bus.schedule(&event{at: n.bus.now + d, kind: evTimer, node: n, gen: n.timerGen})
}
