package sh

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/robotalks/trackside/pkg/ln"
)

// ParseHex parses bytes from arguments like "B2 10 20", "b21020" or
// "0xB2,0x10".
func ParseHex(args []string) ([]byte, error) {
	var digits strings.Builder
	for _, arg := range args {
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || r == ' ' || r == ':'
		}) {
			field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
			if len(field)%2 != 0 {
				field = "0" + field
			}
			digits.WriteString(field)
		}
	}
	if digits.Len() == 0 {
		return nil, fmt.Errorf("bytes required")
	}
	data, err := hex.DecodeString(digits.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %v", err)
	}
	return data, nil
}

// ValidateFrameData checks a message is accepted by the driver.
func ValidateFrameData(msg []byte) error {
	if err := ln.ValidateMessage(msg); err != nil {
		var second byte
		if len(msg) > 1 {
			second = msg[1]
		}
		if len(msg) > 0 {
			return fmt.Errorf("%v: opcode %02X expects %d bytes without checksum, got %d",
				err, msg[0], ln.FrameLength(msg[0], second)-1, len(msg))
		}
		return err
	}
	return nil
}
