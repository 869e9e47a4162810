package serial

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/trackside/pkg/ln"
)

// testStream loops written bytes back like a transceiver when echo is set.
type testStream struct {
	echo    bool
	rx      chan byte
	errs    chan error
	lock    sync.Mutex
	written []byte
}

func newTestStream(echo bool) *testStream {
	return &testStream{
		echo: echo,
		rx:   make(chan byte, 256),
		errs: make(chan error, 1),
	}
}

func (s *testStream) Read(p []byte) (int, error) {
	select {
	case b := <-s.rx:
		p[0] = b
		return 1, nil
	case err := <-s.errs:
		return 0, err
	}
}

func (s *testStream) Write(p []byte) (int, error) {
	s.lock.Lock()
	s.written = append(s.written, p...)
	s.lock.Unlock()
	if s.echo {
		for _, b := range p {
			s.rx <- b
		}
	}
	return len(p), nil
}

func (s *testStream) writtenBytes() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]byte{}, s.written...)
}

type runtimeTestCtx struct {
	t      *testing.T
	stream *testStream
	rt     *Runtime
	cancel func()
	errCh  chan error
}

func newRuntimeTestCtx(t *testing.T, echo bool) *runtimeTestCtx {
	stream := newTestStream(echo)
	return &runtimeTestCtx{
		t:      t,
		stream: stream,
		rt:     NewRuntime(stream, 0x1234),
		errCh:  make(chan error, 1),
	}
}

func (c *runtimeTestCtx) run() *runtimeTestCtx {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		c.errCh <- c.rt.Run(ctx)
	}()
	c.waitFor("started", func() bool {
		c.rt.lock.Lock()
		defer c.rt.lock.Unlock()
		return c.rt.timerGen > 0
	})
	return c
}

func (c *runtimeTestCtx) stop() {
	c.cancel()
	select {
	case err := <-c.errCh:
		require.Equal(c.t, context.Canceled, err)
	case <-time.After(time.Second):
		c.t.Fatal("runtime not stopped")
	}
}

func (c *runtimeTestCtx) waitFor(what string, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			c.t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRuntimeTransmit(t *testing.T) {
	c := newRuntimeTestCtx(t, true).run()
	defer c.stop()
	require.NoError(t, c.rt.Submit(0xb2, 0x10, 0x20))
	c.waitFor("frame sent", func() bool {
		return c.rt.Driver.Stats().FramesSent == 1
	})
	require.Equal(t, []byte{0xb2, 0x10, 0x20, 0x7d}, c.stream.writtenBytes())
	require.Zero(t, c.rt.Driver.Stats().Collisions)
}

func TestRuntimeReceive(t *testing.T) {
	c := newRuntimeTestCtx(t, false)
	frames := make(chan []byte, 1)
	c.rt.Driver.Handler = ln.HandleFrameFunc(func(q *ln.Queue) {
		frames <- q.Drain()
	})
	c.run()
	defer c.stop()
	for _, b := range []byte{0x10, 0xb2, 0x10, 0x20, 0x7d} {
		c.stream.rx <- b
	}
	select {
	case frame := <-frames:
		require.Equal(t, []byte{0xb2, 0x10, 0x20, 0x7d}, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not received")
	}
}

func TestRuntimeBreak(t *testing.T) {
	c := newRuntimeTestCtx(t, true).run()
	defer c.stop()
	c.rt.Driver.Break(ln.LineBreakShort)
	require.Equal(t, make([]byte, DefaultBreakBytes), c.stream.writtenBytes())
	c.waitFor("break released", func() bool {
		return !c.rt.isBreaking() && c.rt.Driver.Mode() != ln.ModeLineBreak
	})
	require.Equal(t, uint64(1), c.rt.Driver.Stats().LineBreaks)
}

func TestRuntimeFramingError(t *testing.T) {
	c := newRuntimeTestCtx(t, false).run()
	defer c.stop()
	c.stream.errs <- ErrFraming
	c.waitFor("receive error", func() bool {
		return c.rt.Driver.Stats().ReceiveErrors == 1
	})
}

func TestRuntimeReadError(t *testing.T) {
	c := newRuntimeTestCtx(t, false).run()
	c.stream.errs <- io.ErrUnexpectedEOF
	select {
	case err := <-c.errCh:
		require.Equal(t, io.ErrUnexpectedEOF, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runtime not stopped")
	}
	c.cancel()
}

func TestLineFree(t *testing.T) {
	rt := NewRuntime(newTestStream(false), 1)
	require.True(t, rt.LineFree())
	rt.lastRx = time.Now()
	require.False(t, rt.LineFree())
	rt.lastRx = time.Now().Add(-time.Millisecond)
	require.True(t, rt.LineFree())
	rt.rxCh <- ln.ByteReceived(0x80)
	require.False(t, rt.LineFree())
	<-rt.rxCh
	rt.SetBreak(true)
	require.False(t, rt.LineFree())
	rt.SetBreak(false)
	require.True(t, rt.LineFree())
}
