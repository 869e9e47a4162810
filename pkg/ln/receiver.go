package ln

// receive accumulates one byte and delivers the frame once complete.
func (d *Driver) receive(b byte) {
	q := &d.rxQueue
	if IsFrameStart(b) {
		q.Clear()
		q.Enqueue(b)
		return
	}
	if q.IsEmpty() {
		// no frame started, wait for the next opcode.
		return
	}
	if !q.Enqueue(b) {
		d.stats.Overflows++
		q.Clear()
		return
	}

	length := FrameLength(q.At(0), q.At(1))
	switch {
	case length < 2 || q.Len() > length:
		d.stats.LengthErrors++
		q.Clear()
	case q.Len() < length:
	case !queueChecksumValid(q):
		d.stats.ChecksumErrors++
		q.Clear()
	default:
		d.deliver()
	}
}

func (d *Driver) deliver() {
	d.rxDeliver.Clear()
	for !d.rxQueue.IsEmpty() {
		d.rxDeliver.Enqueue(d.rxQueue.Peek())
		d.rxQueue.Dequeue()
	}
	d.stats.FramesReceived++
	d.delivered = true
}
