package sh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		data []byte
		err  bool
	}{
		{name: "spaced", args: []string{"B2", "10", "20"}, data: []byte{0xb2, 0x10, 0x20}},
		{name: "packed", args: []string{"b21020"}, data: []byte{0xb2, 0x10, 0x20}},
		{name: "prefixed", args: []string{"0xB2,0x10", "0X20"}, data: []byte{0xb2, 0x10, 0x20}},
		{name: "short byte", args: []string{"83", "7"}, data: []byte{0x83, 0x07}},
		{name: "empty", args: nil, err: true},
		{name: "invalid", args: []string{"zz"}, err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := ParseHex(tc.args)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.data, data)
		})
	}
}

func TestValidateFrameData(t *testing.T) {
	require.NoError(t, ValidateFrameData([]byte{0xb2, 0x10, 0x20}))
	err := ValidateFrameData([]byte{0xb2, 0x10})
	require.Error(t, err)
	require.Contains(t, err.Error(), "expects 3 bytes")
	require.Error(t, ValidateFrameData(nil))
}
