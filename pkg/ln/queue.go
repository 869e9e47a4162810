package ln

// QueueCapacity is the capacity of a Queue, the maximum length of a
// LocoNet message.
const QueueCapacity = 128

// Queue is a fixed-capacity circular byte queue.
// The zero value is an empty queue.
type Queue struct {
	values [QueueCapacity]byte
	head   int
	tail   int
	count  int
}

// Init resets the queue to empty.
func (q *Queue) Init() {
	q.head, q.tail, q.count = 0, 0, 0
}

// IsEmpty indicates the queue has no entries.
func (q *Queue) IsEmpty() bool {
	return q.count == 0
}

// IsFull indicates the queue reached its capacity.
func (q *Queue) IsFull() bool {
	return q.count == QueueCapacity
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	return q.count
}

// Free returns the number of entries can still be enqueued.
func (q *Queue) Free() int {
	return QueueCapacity - q.count
}

// Enqueue stores b at the tail. It returns false and leaves the queue
// unchanged if the queue is full.
func (q *Queue) Enqueue(b byte) bool {
	if q.IsFull() {
		return false
	}
	q.values[q.tail] = b
	q.tail = (q.tail + 1) % QueueCapacity
	q.count++
	return true
}

// Dequeue removes the head entry. The value must be read with Peek before.
// It returns false if the queue is empty.
func (q *Queue) Dequeue() bool {
	if q.IsEmpty() {
		return false
	}
	q.head = (q.head + 1) % QueueCapacity
	q.count--
	return true
}

// Peek returns the head entry, 0 if the queue is empty.
func (q *Queue) Peek() byte {
	if q.IsEmpty() {
		return 0
	}
	return q.values[q.head]
}

// At returns the entry at offset i from the head.
func (q *Queue) At(i int) byte {
	return q.values[(q.head+i)%QueueCapacity]
}

// Clear dequeues all entries.
func (q *Queue) Clear() {
	for q.Dequeue() {
	}
}

// RecoverFrameStart rewinds the head over already dequeued bytes until a
// byte with the frame-start bit is found. It is used to resynchronize an
// accumulation which went out of sync. If no frame-start byte is found
// within the capacity, the queue is left unchanged and false is returned.
//
// Driver does not call it: its receive path restarts accumulation on the
// next frame-start byte.
func (q *Queue) RecoverFrameStart() bool {
	head, count := q.head, q.count
	for count < QueueCapacity {
		head = (head + QueueCapacity - 1) % QueueCapacity
		count++
		if q.values[head]&FrameStart != 0 {
			q.head, q.count = head, count
			return true
		}
	}
	return false
}

// Bytes returns a copy of all entries without consuming them.
func (q *Queue) Bytes() []byte {
	b := make([]byte, q.count)
	for i := range b {
		b[i] = q.At(i)
	}
	return b
}

// Drain reads and dequeues all entries.
func (q *Queue) Drain() []byte {
	b := q.Bytes()
	q.Clear()
	return b
}
