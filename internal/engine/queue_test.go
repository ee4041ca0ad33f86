package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/ir"
)

func queued(id string, priority int, seq int64) ir.Event {
	return ir.Event{ID: id, Class: "Tick", Priority: priority, Seq: seq}
}

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue()

	ok := q.Enqueue(queued("ev-1", 0, 1))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, "ev-1", got.ID)
}

func TestEventQueue_FIFOWithinPriority(t *testing.T) {
	q := newEventQueue()

	// Enqueued out of seq order on purpose.
	q.Enqueue(queued("B", 0, 2))
	q.Enqueue(queued("A", 0, 1))
	q.Enqueue(queued("C", 0, 3))

	var got []string
	for {
		ev, ok := q.TryDequeue()
		if !ok {
			break
		}
		got = append(got, ev.ID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestEventQueue_HigherPriorityFirst(t *testing.T) {
	tests := []struct {
		name   string
		events []ir.Event
		want   []string
	}{
		{
			name:   "priority beats seq",
			events: []ir.Event{queued("low", 0, 1), queued("high", 5, 2)},
			want:   []string{"high", "low"},
		},
		{
			name:   "negative priority last",
			events: []ir.Event{queued("neg", -1, 1), queued("zero", 0, 2), queued("one", 1, 3)},
			want:   []string{"one", "zero", "neg"},
		},
		{
			name: "ties broken by seq",
			events: []ir.Event{
				queued("p1-late", 1, 9),
				queued("p0", 0, 1),
				queued("p1-early", 1, 4),
			},
			want: []string{"p1-early", "p1-late", "p0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newEventQueue()
			for _, ev := range tt.events {
				q.Enqueue(ev)
			}
			var got []string
			for q.Len() > 0 {
				ev, _ := q.TryDequeue()
				got = append(got, ev.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newEventQueue()

	done := make(chan ir.Event)

	go func() {
		<-q.Wait()
		ev, ok := q.TryDequeue()
		if ok {
			done <- ev
		}
	}()

	// Give goroutine time to block
	time.Sleep(10 * time.Millisecond)

	q.Enqueue(queued("ev-blocking", 0, 1))

	select {
	case ev := <-done:
		assert.Equal(t, "ev-blocking", ev.ID)
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock")
	}
}

func TestEventQueue_Close_UnblocksWait(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})

	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)

	q.Close()

	select {
	case <-done:
		assert.True(t, q.Closed())
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock after close")
	}
}

func TestEventQueue_Close_Twice(t *testing.T) {
	q := newEventQueue()
	q.Close()
	assert.NotPanics(t, q.Close)
}

func TestEventQueue_Enqueue_AfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()

	ok := q.Enqueue(queued("ev-after-close", 0, 1))
	assert.False(t, ok, "enqueue after close should return false")
}

func TestEventQueue_DrainAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(queued("kept", 0, 1))
	q.Close()

	ev, ok := q.TryDequeue()
	require.True(t, ok, "queued events survive close")
	assert.Equal(t, "kept", ev.ID)
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()

	assert.Equal(t, 0, q.Len())

	q.Enqueue(queued("1", 0, 1))
	assert.Equal(t, 1, q.Len())

	q.Enqueue(queued("2", 0, 2))
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())

	q.TryDequeue()
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				seq := int64(producerID*eventsPerProducer + i)
				q.Enqueue(queued(fmt.Sprintf("%d-%d", producerID, i), i%3, seq))
			}
		}(p)
	}

	wg.Wait()

	seen := make(map[string]bool, producers*eventsPerProducer)
	lastPriority := 1 << 30
	for {
		ev, ok := q.TryDequeue()
		if !ok {
			break
		}
		assert.LessOrEqual(t, ev.Priority, lastPriority, "priority never increases")
		lastPriority = ev.Priority
		seen[ev.ID] = true
	}

	assert.Len(t, seen, producers*eventsPerProducer)
}
