package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/trackside/pkg/bridge/msgs"
	"github.com/robotalks/trackside/pkg/ln"
)

type testSubmitter struct {
	msgs [][]byte
	err  error
}

func (s *testSubmitter) Submit(msg ...byte) error {
	s.msgs = append(s.msgs, msg)
	return s.err
}

func newTestHub() (*Hub, *testSubmitter) {
	submitter := &testSubmitter{}
	hub := NewHub("cs", submitter)
	hub.Now = func() time.Time { return time.Unix(0, 1000) }
	return hub, submitter
}

func queueOf(frame ...byte) *ln.Queue {
	var q ln.Queue
	for _, b := range frame {
		q.Enqueue(b)
	}
	return &q
}

func TestHubFanOut(t *testing.T) {
	hub, _ := newTestHub()
	sub1, sub2 := hub.Subscribe(), hub.Subscribe()
	q := queueOf(0xb2, 0x10, 0x20, 0x7d)
	hub.HandleFrame(q)
	require.True(t, q.IsEmpty())
	for _, sub := range []*Subscription{sub1, sub2} {
		f := <-sub.C
		require.Equal(t, "cs", f.Node)
		require.Equal(t, uint64(1), f.Seq)
		require.Equal(t, []byte{0xb2, 0x10, 0x20, 0x7d}, f.Data)
		require.Equal(t, int64(1000), f.Timestamp)
		require.Equal(t, msgs.Received, f.Direction)
	}
	hub.HandleFrame(queueOf(0x83, 0x7c))
	require.Equal(t, uint64(2), (<-sub1.C).Seq)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub, _ := newTestHub()
	hub.BufferSize = 2
	sub := hub.Subscribe()
	for i := 0; i < 5; i++ {
		hub.HandleFrame(queueOf(0x83, 0x7c))
	}
	require.Equal(t, uint64(3), hub.Dropped())
	require.Equal(t, uint64(1), (<-sub.C).Seq)
	require.Equal(t, uint64(2), (<-sub.C).Seq)
}

func TestHubUnsubscribe(t *testing.T) {
	hub, _ := newTestHub()
	sub := hub.Subscribe()
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, ok := <-sub.C
	require.False(t, ok)
	hub.HandleFrame(queueOf(0x83, 0x7c))
	require.Zero(t, hub.Dropped())
}

func TestHubSubmit(t *testing.T) {
	hub, submitter := newTestHub()
	require.NoError(t, hub.Submit(&msgs.Frame{Data: []byte{0xb2, 0x10, 0x20, 0x7d}}))
	require.NoError(t, hub.Submit(&msgs.Frame{Data: []byte{0x83}}))
	require.Equal(t, [][]byte{{0xb2, 0x10, 0x20}, {0x83}}, submitter.msgs)
	submitter.err = ln.ErrQueueFull
	require.Equal(t, ln.ErrQueueFull, hub.Submit(&msgs.Frame{Data: []byte{0x83}}))
}
