// Package frame adds offline frame utilities to the shell.
package frame

import (
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/trackside/pkg/cli/sh"
	"github.com/robotalks/trackside/pkg/ln"
)

// Info describes a frame.
type Info struct {
	Opcode   byte   `json:"opcode"`
	Length   int    `json:"length"`
	Checksum byte   `json:"checksum"`
	Frame    []byte `json:"frame,omitempty"`
	Valid    bool   `json:"valid"`
}

// Describe computes Info of a message or a complete frame.
func Describe(data []byte) Info {
	info := Info{Opcode: data[0]}
	var second byte
	if len(data) > 1 {
		second = data[1]
	}
	info.Length = ln.FrameLength(data[0], second)
	switch {
	case len(data) == info.Length:
		info.Checksum = data[len(data)-1]
		info.Frame = data
		info.Valid = ln.IsChecksumValid(data)
	case len(data)+1 == info.Length:
		info.Frame = ln.AppendChecksum(data)
		info.Checksum = info.Frame[len(data)]
		info.Valid = ln.ValidateMessage(data) == nil
	}
	return info
}

var (
	// ChecksumCmd computes or verifies the checksum.
	ChecksumCmd = ishell.Cmd{
		Name:    "checksum",
		Aliases: []string{"ck"},
		Help:    "HEX...",
		Func: func(c *ishell.Context) {
			data, err := sh.ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			info := Describe(data)
			sh.ShellFrom(c).Print(c, info, func() string {
				if info.Frame == nil {
					return fmt.Sprintf("length mismatch: opcode %02X expects %d bytes", info.Opcode, info.Length)
				}
				state := "valid"
				if !info.Valid {
					state = "INVALID"
				}
				return fmt.Sprintf("% X (%s)", info.Frame, state)
			})
		},
	}

	// LengthCmd decodes the frame length from opcode.
	LengthCmd = ishell.Cmd{
		Name:    "length",
		Aliases: []string{"len"},
		Help:    "OPCODE [SECOND]",
		Func: func(c *ishell.Context) {
			data, err := sh.ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if !ln.IsFrameStart(data[0]) {
				c.Err(fmt.Errorf("%02X is not an opcode", data[0]))
				return
			}
			var second byte
			if len(data) > 1 {
				second = data[1]
			} else if ln.LengthClass(data[0]) == ln.LengthVariable {
				c.Err(fmt.Errorf("variable length opcode %02X needs the second byte", data[0]))
				return
			}
			n := ln.FrameLength(data[0], second)
			sh.ShellFrom(c).Print(c, n, func() string { return fmt.Sprintf("%d bytes", n) })
		},
	}
)

func init() {
	sh.AddCmds(&ChecksumCmd, &LengthCmd)
}
