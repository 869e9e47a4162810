package ln

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// Timing in ticks of the shared timer. Driver.Tick converts them to real
// time and must be calibrated to one microsecond on the wire.
const (
	// IdleDelay is the period of polling the line while idle.
	IdleDelay uint16 = 1000
	// CMPDelay is the fixed part of the carrier + master + priority delay.
	CMPDelay uint16 = 1560
	// JitterMask bounds the random part of the CMP delay.
	JitterMask uint16 = 2047
	// LineBreakLong is the break announcing a corrupted frame.
	LineBreakLong uint16 = 2500
	// LineBreakShort is the shortest valid break.
	LineBreakShort uint16 = 600
	// DefaultTransmitTimeout is the echo watchdog while transmitting.
	DefaultTransmitTimeout uint16 = 2000
)

// DefaultTick is the default duration of a timer tick.
const DefaultTick = time.Microsecond

// Mode is the state of the bus arbitration.
type Mode int

// Modes
const (
	ModeIdle Mode = iota
	ModeCMP
	ModeLineBreak
	ModeTransmitting
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeCMP:
		return "cmp"
	case ModeLineBreak:
		return "linebreak"
	case ModeTransmitting:
		return "tx"
	}
	return "unknown"
}

// EventType enumerates the interrupt sources of the driver.
type EventType int

// Event types
const (
	// EventTimer is the expiry of the shared timer.
	EventTimer EventType = iota
	// EventByteReceived carries a byte received from the line.
	EventByteReceived
	// EventReceiveError reports a framing or overrun error on receive.
	EventReceiveError
	// EventTransmitReady indicates the transmitter accepts the next byte.
	EventTransmitReady
)

// Event is consumed by Driver.Handle.
type Event struct {
	Type EventType
	Byte byte
}

// TimerExpired creates an EventTimer.
func TimerExpired() Event { return Event{Type: EventTimer} }

// ByteReceived creates an EventByteReceived.
func ByteReceived(b byte) Event { return Event{Type: EventByteReceived, Byte: b} }

// ReceiveError creates an EventReceiveError.
func ReceiveError() Event { return Event{Type: EventReceiveError} }

// TransmitReady creates an EventTransmitReady.
func TransmitReady() Event { return Event{Type: EventTransmitReady} }

// Port is the byte-level transceiver the driver runs on.
type Port interface {
	// LineFree reports the receiver is idle and has no unread byte.
	// Both conditions must be sampled atomically.
	LineFree() bool
	// TransmitByte starts sending b. Completion is reported
	// with EventTransmitReady, the echo with EventByteReceived.
	TransmitByte(b byte)
	// SetBreak on disables the receiver and holds the line in break,
	// off releases the line and enables the receiver.
	SetBreak(on bool)
}

// Timer is the single shared timer. Arm replaces any pending expiry,
// which is reported with EventTimer.
type Timer interface {
	Arm(d time.Duration)
}

// FrameHandler is called when a valid frame is received. The frame is in
// the queue and must be drained before returning.
type FrameHandler interface {
	HandleFrame(*Queue)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(*Queue)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(q *Queue) {
	f(q)
}

// ModeNotifier is called when the arbitration mode changed.
type ModeNotifier interface {
	ModeChanged(Mode)
}

// ModeChangedFunc is func type of ModeNotifier.
type ModeChangedFunc func(Mode)

// ModeChanged implements ModeNotifier.
func (f ModeChangedFunc) ModeChanged(m Mode) {
	f(m)
}

// Stats are the counters of driver activities.
type Stats struct {
	FramesReceived  uint64
	FramesSent      uint64
	ChecksumErrors  uint64
	LengthErrors    uint64
	Collisions      uint64
	LineBreaks      uint64
	ReceiveErrors   uint64
	TransmitTimeout uint64
	Overflows       uint64
}

// Driver is the LocoNet bus driver. It owns all queues and the arbitration
// state. Fields must be set before Start.
//
// Handle and Submit are serialized by an internal lock. The FrameHandler
// runs with the state unlocked and may call Submit, but must not call
// Handle. Any code sharing the driver from a context which may preempt
// handlers must only go through Submit.
type Driver struct {
	Port     Port
	Timer    Timer
	Handler  FrameHandler
	Notifier ModeNotifier
	// Tick is the real duration of a timer tick.
	Tick time.Duration
	// TransmitTimeout is the echo watchdog in ticks, 0 to use default.
	TransmitTimeout uint16
	// Loopback delivers own transmitted frames to Handler.
	Loopback bool

	mode   Mode
	jitter Jitter
	stats  Stats

	rxQueue       Queue // accumulate
	rxDeliver     Queue
	txQueue       Queue // pending
	txFlightQueue Queue
	txEchoQueue   Queue
	// txStarted is set once the first byte of the burst is on the wire.
	txStarted bool

	eventLock sync.Mutex
	lock      sync.Mutex

	// filled while locked, notified after unlock.
	delivered bool
	modes     []Mode
}

// NewDriver creates a Driver with a seed for the backoff generator.
func NewDriver(port Port, timer Timer, seed uint16) *Driver {
	return &Driver{
		Port:   port,
		Timer:  timer,
		Tick:   DefaultTick,
		jitter: Jitter{state: seed},
	}
}

// Start enters Idle and arms the timer.
func (d *Driver) Start() {
	d.eventLock.Lock()
	defer d.eventLock.Unlock()
	d.lock.Lock()
	d.rxQueue.Init()
	d.rxDeliver.Init()
	d.txFlightQueue.Init()
	d.txEchoQueue.Init()
	d.startIdle()
	d.unlockAndNotify()
}

// Mode gets the current mode.
func (d *Driver) Mode() Mode {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.mode
}

// Stats gets a snapshot of the counters.
func (d *Driver) Stats() Stats {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stats
}

// Pending returns the number of bytes waiting in the transmit queue.
func (d *Driver) Pending() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.txQueue.Len()
}

// Handle processes one event.
func (d *Driver) Handle(ev Event) {
	d.eventLock.Lock()
	defer d.eventLock.Unlock()
	d.lock.Lock()
	switch ev.Type {
	case EventTimer:
		d.timerExpired()
	case EventByteReceived:
		d.byteReceived(ev.Byte)
	case EventReceiveError:
		d.stats.ReceiveErrors++
		d.rxQueue.Clear()
		d.startLineBreak(LineBreakLong)
	case EventTransmitReady:
		d.transmitReady()
	}
	d.unlockAndNotify()
}

// Break forces a line-break of the duration in ticks, e.g. LineBreakShort.
func (d *Driver) Break(ticks uint16) {
	d.eventLock.Lock()
	defer d.eventLock.Unlock()
	d.lock.Lock()
	d.startLineBreak(ticks)
	d.unlockAndNotify()
}

func (d *Driver) unlockAndNotify() {
	delivered, modes := d.delivered, d.modes
	d.delivered, d.modes = false, nil
	notifier, handler := d.Notifier, d.Handler
	d.lock.Unlock()
	if notifier != nil {
		for _, m := range modes {
			notifier.ModeChanged(m)
		}
	}
	if delivered {
		if handler != nil {
			handler.HandleFrame(&d.rxDeliver)
		}
		d.lock.Lock()
		d.rxDeliver.Clear()
		d.lock.Unlock()
	}
}

func (d *Driver) timerExpired() {
	switch d.mode {
	case ModeIdle:
		switch {
		case !d.Port.LineFree():
			d.startCMP()
		case !d.txFlightQueue.IsEmpty() && !d.txStarted:
			d.resumeTransmission()
		case !d.txQueue.IsEmpty():
			d.startTransmission()
		default:
			d.startIdle()
		}
	case ModeCMP:
		if d.Port.LineFree() {
			d.startIdle()
		} else {
			d.startCMP()
		}
	case ModeLineBreak:
		d.Port.SetBreak(false)
		d.startCMP()
	case ModeTransmitting:
		d.stats.TransmitTimeout++
		glog.V(2).Infof("echo timeout, %d bytes unconfirmed", d.txEchoQueue.Len())
		d.startLineBreak(LineBreakLong)
	}
}

func (d *Driver) byteReceived(b byte) {
	switch d.mode {
	case ModeLineBreak:
		// receiver is disabled.
	case ModeTransmitting:
		if !d.txEchoQueue.IsEmpty() || !d.txFlightQueue.IsEmpty() {
			d.verifyEcho(b)
			return
		}
		fallthrough
	default:
		d.startCMP()
		d.receive(b)
	}
}

func (d *Driver) setMode(m Mode) {
	if d.mode != m {
		if glog.V(3) {
			glog.Infof("mode %s -> %s", d.mode, m)
		}
		d.mode = m
		d.modes = append(d.modes, m)
	}
}

func (d *Driver) arm(ticks uint16) {
	tick := d.Tick
	if tick == 0 {
		tick = DefaultTick
	}
	d.Timer.Arm(time.Duration(ticks) * tick)
}

func (d *Driver) startIdle() {
	d.setMode(ModeIdle)
	d.arm(IdleDelay)
}

func (d *Driver) startCMP() {
	d.setMode(ModeCMP)
	d.arm(CMPDelay + d.jitter.Delay())
}

func (d *Driver) startLineBreak(ticks uint16) {
	d.stats.LineBreaks++
	d.txFlightQueue.Clear()
	d.txEchoQueue.Clear()
	d.txStarted = false
	d.Port.SetBreak(true)
	d.setMode(ModeLineBreak)
	d.arm(ticks)
}
