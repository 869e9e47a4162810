package ln

// Frame format constants.
const (
	// FrameStart is the bit set only on the first byte (opcode) of a frame.
	FrameStart byte = 0x80
	// ChecksumOK is the XOR of all bytes of a valid frame, checksum included.
	ChecksumOK byte = 0xff

	lengthClassMask  byte = 0x60
	lengthClassShift      = 4
	// LengthVariable is the decoded length class whose actual length is
	// carried by the second byte.
	LengthVariable = 8
)

// IsFrameStart indicates b starts a frame.
func IsFrameStart(b byte) bool {
	return b&FrameStart != 0
}

// LengthClass decodes the length class from an opcode: 2, 4, 6 or
// LengthVariable.
func LengthClass(opcode byte) int {
	return int((opcode&lengthClassMask)>>lengthClassShift) + 2
}

// FrameLength computes the full frame length (checksum included) from the
// first two bytes of a frame.
func FrameLength(opcode, second byte) int {
	if n := LengthClass(opcode); n != LengthVariable {
		return n
	}
	return int(second)
}

// Checksum computes the checksum byte to append to msg.
func Checksum(msg []byte) byte {
	var x byte
	for _, b := range msg {
		x ^= b
	}
	return x ^ 0xff
}

// IsChecksumValid verifies a full frame.
func IsChecksumValid(frame []byte) bool {
	var x byte
	for _, b := range frame {
		x ^= b
	}
	return x == ChecksumOK
}

// AppendChecksum returns msg with its checksum appended.
func AppendChecksum(msg []byte) []byte {
	frame := make([]byte, len(msg)+1)
	copy(frame, msg)
	frame[len(msg)] = Checksum(msg)
	return frame
}

// ValidateMessage checks msg (without checksum) is a single well-formed
// message to submit: it starts with an opcode, no other byte has the
// frame-start bit, and the declared length matches.
func ValidateMessage(msg []byte) error {
	if len(msg) == 0 || !IsFrameStart(msg[0]) {
		return ErrInvalidMessage
	}
	for _, b := range msg[1:] {
		if IsFrameStart(b) {
			return ErrInvalidMessage
		}
	}
	var second byte
	if len(msg) > 1 {
		second = msg[1]
	}
	if FrameLength(msg[0], second) != len(msg)+1 {
		return ErrInvalidMessage
	}
	return nil
}

func queueChecksumValid(q *Queue) bool {
	var x byte
	for i := 0; i < q.Len(); i++ {
		x ^= q.At(i)
	}
	return x == ChecksumOK
}
