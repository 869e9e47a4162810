// Package msgs defines the messages exchanged by bridges.
package msgs

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/trackside/pkg/ln"
)

// Direction of a frame relative to the node.
type Direction int32

// Directions
const (
	// Received from the bus.
	Received Direction = 0
	// Submit requests a frame to be sent on the bus.
	Submit Direction = 1
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Received:
		return "rx"
	case Submit:
		return "tx"
	}
	return fmt.Sprintf("dir(%d)", int32(d))
}

// Frame is the envelope of a LocoNet frame on a bridge.
type Frame struct {
	Node      string    `protobuf:"bytes,1,opt,name=node,proto3" json:"node,omitempty"`
	Seq       uint64    `protobuf:"varint,2,opt,name=seq,proto3" json:"seq,omitempty"`
	Data      []byte    `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
	Timestamp int64     `protobuf:"varint,4,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Direction Direction `protobuf:"varint,5,opt,name=direction,proto3" json:"direction,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Frame) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Frame) Reset() { *m = Frame{} }

// String implements proto.Message.
func (m *Frame) String() string { return proto.CompactTextString(m) }

// Time converts Timestamp.
func (m *Frame) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}

// Message returns the data without checksum. Data may carry either a
// complete frame or a message to be checksummed.
func (m *Frame) Message() []byte {
	n := len(m.Data)
	if n > 1 && ln.IsChecksumValid(m.Data) && ln.ValidateMessage(m.Data[:n-1]) == nil {
		return m.Data[:n-1]
	}
	return m.Data
}

// Hex formats Data for display.
func (m *Frame) Hex() string {
	return fmt.Sprintf("% X", m.Data)
}

// Encode serializes the frame.
func Encode(m *Frame) ([]byte, error) {
	return proto.Marshal(m)
}

// Decode parses a serialized frame.
func Decode(payload []byte) (*Frame, error) {
	m := &Frame{}
	if err := proto.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("decode frame: %v", err)
	}
	return m, nil
}
