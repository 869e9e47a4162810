package ln

// Galois LFSR parameters, x^16 + x^14 + x^13 + x^11 + 1.
const (
	lfsrMask uint16 = 0xb400
	// DefaultSeed replaces a zero generator state.
	DefaultSeed uint16 = 0xace1
)

// NextRandom advances a 16-bit Galois LFSR from state and returns the
// new state. A zero state is replaced by DefaultSeed. The result never
// equals the (remapped) input state.
func NextRandom(state uint16) uint16 {
	if state == 0 {
		state = DefaultSeed
	}
	lfsr := state
	for {
		lsb := lfsr & 1
		lfsr >>= 1
		if lsb != 0 {
			lfsr ^= lfsrMask
		}
		if lfsr != state {
			return lfsr
		}
	}
}

// Jitter produces the pseudo-random backoff sequence. Each draw is
// seeded with the previous one.
type Jitter struct {
	state uint16
}

// NewJitter creates a Jitter starting from seed.
func NewJitter(seed uint16) *Jitter {
	return &Jitter{state: seed}
}

// State returns the last drawn value.
func (j *Jitter) State() uint16 {
	return j.state
}

// Next draws the next value.
func (j *Jitter) Next() uint16 {
	j.state = NextRandom(j.state)
	return j.state
}

// Delay draws a backoff delay in ticks within [0, JitterMask].
func (j *Jitter) Delay() uint16 {
	return j.Next() & JitterMask
}
