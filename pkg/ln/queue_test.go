package ln

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireQueueInvariant(t *testing.T, q *Queue) {
	require.True(t, q.count >= 0 && q.count <= QueueCapacity)
	require.Equal(t, (q.head+q.count)%QueueCapacity, q.tail)
	require.False(t, q.IsEmpty() && q.IsFull())
}

func TestQueueFillAndEmpty(t *testing.T) {
	var q Queue
	require.True(t, q.IsEmpty())
	require.False(t, q.Dequeue())
	for i := 0; i < QueueCapacity; i++ {
		require.True(t, q.Enqueue(byte(i)))
		requireQueueInvariant(t, &q)
	}
	require.True(t, q.IsFull())
	require.False(t, q.Enqueue(0xff))
	require.Equal(t, QueueCapacity, q.Len())
	require.Equal(t, byte(0), q.Peek())
	require.Equal(t, byte(QueueCapacity-1), q.At(QueueCapacity-1))

	for i := 0; i < QueueCapacity; i++ {
		require.Equal(t, byte(i), q.Peek())
		require.True(t, q.Dequeue())
		requireQueueInvariant(t, &q)
	}
	require.True(t, q.IsEmpty())
	require.False(t, q.Dequeue())
}

func TestQueueRandomOperations(t *testing.T) {
	var q Queue
	var model []byte
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		if rnd.Intn(3) > 0 {
			b := byte(rnd.Intn(256))
			ok := q.Enqueue(b)
			require.Equal(t, len(model) < QueueCapacity, ok)
			if ok {
				model = append(model, b)
			}
		} else {
			if len(model) > 0 {
				require.Equal(t, model[0], q.Peek())
			}
			ok := q.Dequeue()
			require.Equal(t, len(model) > 0, ok)
			if ok {
				model = model[1:]
			}
		}
		require.Equal(t, len(model), q.Len())
		requireQueueInvariant(t, &q)
	}
	if len(model) == 0 {
		model = []byte{}
	}
	require.Equal(t, model, q.Drain())
	require.True(t, q.IsEmpty())
}

func TestQueueClearAndInit(t *testing.T) {
	var q Queue
	for i := 0; i < 10; i++ {
		q.Enqueue(byte(i))
	}
	q.Dequeue()
	q.Clear()
	require.True(t, q.IsEmpty())
	requireQueueInvariant(t, &q)
	q.Enqueue(1)
	q.Init()
	require.True(t, q.IsEmpty())
	require.Equal(t, 0, q.head)
	require.Equal(t, 0, q.tail)
}

func TestQueueRecoverFrameStart(t *testing.T) {
	t.Run("rewind to opcode", func(t *testing.T) {
		var q Queue
		for _, b := range []byte{0xb2, 0x10, 0x20, 0x7d} {
			q.Enqueue(b)
		}
		q.Dequeue()
		q.Dequeue()
		require.True(t, q.RecoverFrameStart())
		require.Equal(t, []byte{0xb2, 0x10, 0x20, 0x7d}, q.Bytes())
		requireQueueInvariant(t, &q)
	})
	t.Run("across wrap", func(t *testing.T) {
		var q Queue
		for i := 0; i < QueueCapacity-1; i++ {
			q.Enqueue(0)
			q.Dequeue()
		}
		q.Enqueue(0x83)
		q.Enqueue(0x7c)
		q.Dequeue()
		require.True(t, q.RecoverFrameStart())
		require.Equal(t, []byte{0x83, 0x7c}, q.Bytes())
		requireQueueInvariant(t, &q)
	})
	t.Run("no opcode", func(t *testing.T) {
		var q Queue
		q.Enqueue(0x01)
		q.Enqueue(0x02)
		q.Dequeue()
		require.False(t, q.RecoverFrameStart())
		require.Equal(t, []byte{0x02}, q.Bytes())
		requireQueueInvariant(t, &q)
	})
}
