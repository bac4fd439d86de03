package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitQueue_FIFO(t *testing.T) {
	t.Parallel()

	var q waitQueue
	w1, w2, w3 := q.push(), q.push(), q.push()
	require.Equal(t, 3, q.len())

	got := q.take()
	require.Equal(t, []*waiter{w1, w2, w3}, got)
	require.Zero(t, q.len())
	require.Empty(t, q.take())
}

func TestSettle_CompletesEveryWaiter(t *testing.T) {
	t.Parallel()

	var q waitQueue
	ws := []*waiter{q.push(), q.push(), q.push()}

	settle(q.take(), outcome{accessToken: "a2"})
	for _, w := range ws {
		out := <-w.done
		require.Equal(t, "a2", out.accessToken)
		require.NoError(t, out.err)
	}

	failed := q.push()
	errBoom := errors.New("boom")
	settle(q.take(), outcome{err: errBoom})
	require.ErrorIs(t, (<-failed.done).err, errBoom)
}

func TestSettle_AbandonedWaiterDoesNotBlock(t *testing.T) {
	t.Parallel()

	var q waitQueue
	q.push() // никто не читает
	live := q.push()

	settle(q.take(), outcome{accessToken: "a2"})
	require.Equal(t, "a2", (<-live.done).accessToken)
}
