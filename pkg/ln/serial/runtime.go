// Package serial runs a LocoNet driver over a byte stream, typically a
// serial port attached to a transceiver which echoes transmitted bytes.
package serial

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/trackside/pkg/ln"
)

// Defaults of the line.
const (
	DefaultByteTime   = 600 * time.Microsecond
	DefaultBreakBytes = 2
)

// ErrFraming can be returned by the stream Read to report a receive error.
// The runtime keeps reading after it.
var ErrFraming = errors.New("framing error")

// Runtime feeds the driver with events from the stream and timer.
type Runtime struct {
	ReadWriter io.ReadWriter
	Driver     *ln.Driver
	// ByteTime is the duration of a byte on the wire. The line is free
	// when nothing was received for at least ByteTime.
	ByteTime time.Duration
	// BreakBytes is the number of zero bytes written to emulate a break.
	BreakBytes int

	rxCh    chan ln.Event
	errCh   chan error
	txCh    chan struct{}
	timerCh chan struct{}

	lock     sync.Mutex
	lastRx   time.Time
	breaking bool
	timer    *time.Timer
	timerGen uint64
	fired    bool
	writeErr error
}

// NewRuntime creates a Runtime with its own driver.
func NewRuntime(rw io.ReadWriter, seed uint16) *Runtime {
	r := &Runtime{
		ReadWriter: rw,
		ByteTime:   DefaultByteTime,
		BreakBytes: DefaultBreakBytes,
		rxCh:       make(chan ln.Event, ln.QueueCapacity),
		errCh:      make(chan error, 1),
		txCh:       make(chan struct{}, 1),
		timerCh:    make(chan struct{}, 1),
	}
	r.Driver = ln.NewDriver(r, r, seed)
	return r
}

// Submit queues a message to the driver.
func (r *Runtime) Submit(msg ...byte) error {
	return r.Driver.Submit(msg...)
}

// Run implements framework.Runnable.
func (r *Runtime) Run(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.readLoop(subCtx)
	defer r.stopTimer()

	r.Driver.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-r.errCh:
			return err
		case ev := <-r.rxCh:
			if r.isBreaking() {
				continue
			}
			r.Driver.Handle(ev)
		case <-r.txCh:
			r.Driver.Handle(ln.TransmitReady())
		case <-r.timerCh:
			if r.takeFired() {
				r.Driver.Handle(ln.TimerExpired())
			}
		}
		if err := r.takeWriteErr(); err != nil {
			return err
		}
	}
}

func (r *Runtime) readLoop(ctx context.Context) {
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		var ev ln.Event
		n, err := r.ReadWriter.Read(buf)
		switch {
		case err == ErrFraming:
			glog.V(2).Info("framing error")
			ev = ln.ReceiveError()
		case err != nil:
			select {
			case r.errCh <- err:
			case <-ctx.Done():
			}
			return
		case n == 0:
			continue
		default:
			ev = ln.ByteReceived(buf[0])
		}
		r.lock.Lock()
		r.lastRx = time.Now()
		r.lock.Unlock()
		select {
		case r.rxCh <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// LineFree implements ln.Port.
func (r *Runtime) LineFree() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.breaking || len(r.rxCh) > 0 {
		return false
	}
	return time.Since(r.lastRx) >= r.ByteTime
}

// TransmitByte implements ln.Port.
func (r *Runtime) TransmitByte(b byte) {
	if _, err := r.ReadWriter.Write([]byte{b}); err != nil {
		r.setWriteErr(err)
	}
	select {
	case r.txCh <- struct{}{}:
	default:
	}
}

// SetBreak implements ln.Port.
func (r *Runtime) SetBreak(on bool) {
	r.lock.Lock()
	r.breaking = on
	r.lock.Unlock()
	if !on {
		return
	}
	if _, err := r.ReadWriter.Write(make([]byte, r.BreakBytes)); err != nil {
		r.setWriteErr(err)
	}
}

// Arm implements ln.Timer.
func (r *Runtime) Arm(d time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timerGen++
	r.fired = false
	gen := r.timerGen
	r.timer = time.AfterFunc(d, func() { r.expire(gen) })
}

func (r *Runtime) expire(gen uint64) {
	r.lock.Lock()
	if gen != r.timerGen {
		// re-armed meanwhile.
		r.lock.Unlock()
		return
	}
	r.fired = true
	r.lock.Unlock()
	select {
	case r.timerCh <- struct{}{}:
	default:
	}
}

func (r *Runtime) stopTimer() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *Runtime) takeFired() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	fired := r.fired
	r.fired = false
	return fired
}

func (r *Runtime) isBreaking() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.breaking
}

func (r *Runtime) setWriteErr(err error) {
	r.lock.Lock()
	if r.writeErr == nil {
		r.writeErr = err
	}
	r.lock.Unlock()
}

func (r *Runtime) takeWriteErr() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	err := r.writeErr
	r.writeErr = nil
	return err
}
