package ln

import "github.com/golang/glog"

// Submit appends the checksum to msg and queues it for transmission.
// msg starts with the opcode and must not include the checksum.
// The frame is either queued completely or not at all.
func (d *Driver) Submit(msg ...byte) error {
	if err := ValidateMessage(msg); err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.txQueue.Free() < len(msg)+1 {
		d.stats.Overflows++
		return ErrQueueFull
	}
	var checksum byte
	for _, b := range msg {
		checksum ^= b
		d.txQueue.Enqueue(b)
	}
	d.txQueue.Enqueue(checksum ^ 0xff)
	return nil
}

// startTransmission copies the message at the head of the pending queue
// into the in-flight queue and starts sending.
func (d *Driver) startTransmission() {
	d.txFlightQueue.Clear()
	d.txEchoQueue.Clear()
	d.txStarted = false
	for i := 0; i < d.txQueue.Len(); i++ {
		b := d.txQueue.At(i)
		if i > 0 && IsFrameStart(b) {
			break
		}
		d.txFlightQueue.Enqueue(b)
	}
	d.resumeTransmission()
}

// resumeTransmission sends a prepared burst if the line is still free.
func (d *Driver) resumeTransmission() {
	if !d.Port.LineFree() {
		d.startCMP()
		return
	}
	d.setMode(ModeTransmitting)
	d.arm(d.transmitTimeout())
	d.sendByte()
}

func (d *Driver) transmitReady() {
	if d.mode == ModeTransmitting && !d.txFlightQueue.IsEmpty() {
		d.sendByte()
	}
}

func (d *Driver) sendByte() {
	b := d.txFlightQueue.Peek()
	d.txFlightQueue.Dequeue()
	d.txEchoQueue.Enqueue(b)
	d.txStarted = true
	d.Port.TransmitByte(b)
}

// verifyEcho checks a byte received while a burst is in flight. A byte
// arriving when no echo is expected belongs to another sender.
func (d *Driver) verifyEcho(b byte) {
	if d.txEchoQueue.IsEmpty() || b != d.txEchoQueue.Peek() {
		d.stats.Collisions++
		if d.txEchoQueue.IsEmpty() {
			glog.V(2).Infof("collision: received %02x between echoes", b)
		} else {
			glog.V(2).Infof("collision: sent %02x, received %02x", d.txEchoQueue.Peek(), b)
		}
		d.rxQueue.Clear()
		d.startLineBreak(LineBreakLong)
		return
	}
	d.txEchoQueue.Dequeue()
	if d.Loopback {
		d.receive(b)
	}
	if !d.txEchoQueue.IsEmpty() || !d.txFlightQueue.IsEmpty() {
		d.arm(d.transmitTimeout())
		return
	}
	d.removeSentFrame()
	d.stats.FramesSent++
	d.startCMP()
}

// removeSentFrame removes the head message from the pending queue, up to
// the next frame start.
func (d *Driver) removeSentFrame() {
	q := &d.txQueue
	if !q.Dequeue() {
		return
	}
	for !q.IsEmpty() && !IsFrameStart(q.Peek()) {
		q.Dequeue()
	}
}

func (d *Driver) transmitTimeout() uint16 {
	if d.TransmitTimeout != 0 {
		return d.TransmitTimeout
	}
	return DefaultTransmitTimeout
}
