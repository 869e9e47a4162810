package ln

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameLength(t *testing.T) {
	testCases := []struct {
		opcode, second byte
		length         int
	}{
		{0x82, 0x00, 2},
		{0x83, 0x7f, 2},
		{0xb0, 0x00, 4},
		{0xb2, 0x10, 4},
		{0xd4, 0x00, 6},
		{0xe7, 0x0e, 14},
		{0xed, 0x0b, 11},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.length, FrameLength(tc.opcode, tc.second), "opcode %02x", tc.opcode)
	}
	require.Equal(t, LengthVariable, LengthClass(0xe7))
}

func TestChecksum(t *testing.T) {
	msg := []byte{0xb2, 0x10, 0x20}
	cs := Checksum(msg)
	require.Equal(t, ^(byte(0xb2)^0x10^0x20), cs)
	frame := AppendChecksum(msg)
	require.Equal(t, []byte{0xb2, 0x10, 0x20, cs}, frame)
	require.True(t, IsChecksumValid(frame))
	frame[1] ^= 0x01
	require.False(t, IsChecksumValid(frame))
}

func TestValidateMessage(t *testing.T) {
	testCases := []struct {
		name string
		msg  []byte
		err  error
	}{
		{"empty", nil, ErrInvalidMessage},
		{"no opcode", []byte{0x10, 0x20, 0x30}, ErrInvalidMessage},
		{"opcode in data", []byte{0xb2, 0x90, 0x20}, ErrInvalidMessage},
		{"length mismatch", []byte{0xb2, 0x10}, ErrInvalidMessage},
		{"two bytes", []byte{0x82}, nil},
		{"four bytes", []byte{0xb2, 0x10, 0x20}, nil},
		{"six bytes", []byte{0xd4, 1, 2, 3, 4}, nil},
		{"variable", []byte{0xe5, 0x05, 1, 2}, nil},
		{"variable mismatch", []byte{0xe5, 0x06, 1, 2}, ErrInvalidMessage},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.err, ValidateMessage(tc.msg))
		})
	}
}
