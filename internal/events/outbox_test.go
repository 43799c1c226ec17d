package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOutbox_PreservesOrderWithSlowSubscriber(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ch, unsubscribe := Subscribe[LogAppended](b, 0)
	defer unsubscribe()

	o := NewOutbox(b)
	id := uuid.New()
	const n = 50
	// Push never blocks even though nobody reads yet.
	for i := range n {
		o.Push(LogAppended{Header: NewHeader(id), Seq: i})
	}

	for i := range n {
		select {
		case got := <-ch:
			require.Equal(t, i, got.Seq)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
	require.NoError(t, o.Close(t.Context()))
}

func TestOutbox_CloseFlushesAndDropsLatePushes(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ch, unsubscribe := Subscribe[ProjectEvent](b, 10)
	defer unsubscribe()

	o := NewOutbox(b)
	id := uuid.New()
	o.Push(ProjectAdded{Header: NewHeader(id), Location: "/p"})
	o.Push(ProjectRemoved{Header: NewHeader(id), Location: "/p"})
	require.NoError(t, o.Close(t.Context()))

	o.Push(NameResolved{Header: NewHeader(id)})
	require.Equal(t, 0, o.Pending())

	require.Len(t, ch, 2)
	require.Equal(t, KindProjectAdded, (<-ch).Kind())
	require.Equal(t, KindProjectRemoved, (<-ch).Kind())
}

func TestSubscribeProject_Filters(t *testing.T) {
	b := NewBus()
	defer b.Close()

	mine, other := uuid.New(), uuid.New()
	ch, unsubscribe := SubscribeProject(b, mine, 4)

	require.NoError(t, b.Publish(t.Context(), LogAppended{Header: NewHeader(other), Line: "x"}))
	require.NoError(t, b.Publish(t.Context(), LogAppended{Header: NewHeader(mine), Line: "y"}))

	select {
	case got := <-ch:
		la, ok := got.(LogAppended)
		require.True(t, ok)
		require.Equal(t, "y", la.Line)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	unsubscribe()
	unsubscribe()
	for range ch {
	}
}
