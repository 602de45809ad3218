package event

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_FanOutDeliversToEverySubscriber(t *testing.T) {
	b := NewBroker()
	subs := []*Subscription{
		b.Subscribe(TopicSystemOutput),
		b.Subscribe(TopicSystemOutput),
		b.Subscribe(TopicSystemOutput),
	}

	require.NoError(t, b.Publish(SystemEvent{Message: "hello", At: time.Now()}))

	for _, sub := range subs {
		ev, ok := sub.Queue().Pop(time.Second)
		require.True(t, ok)
		assert.Equal(t, "hello", ev.(SystemEvent).Message)
		// Exactly once: nothing left behind.
		_, ok = sub.Queue().TryPop()
		assert.False(t, ok)
	}
}

func TestBroker_TopicsAreIsolated(t *testing.T) {
	b := NewBroker()
	system := b.Subscribe(TopicSystemOutput)
	assistant := b.Subscribe(TopicAssistantOutput)

	require.NoError(t, b.Publish(AssistantEvent{Message: "reply", At: time.Now()}))

	_, ok := system.Queue().TryPop()
	assert.False(t, ok, "system subscriber must not see assistant events")
	ev, ok := assistant.Queue().Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "reply", ev.(AssistantEvent).Message)
}

func TestBroker_PublishWithoutSubscribersIsNoOp(t *testing.T) {
	b := NewBroker()
	assert.NoError(t, b.Publish(SystemEvent{Message: "into the void", At: time.Now()}))
}

func TestBroker_NilEvent(t *testing.T) {
	b := NewBroker()
	assert.ErrorIs(t, b.Publish(nil), ErrNilEvent)
}

func TestBroker_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBroker()
	require.NoError(t, b.Publish(SystemEvent{Message: "before", At: time.Now()}))

	late := b.Subscribe(TopicSystemOutput)
	_, ok := late.Queue().TryPop()
	assert.False(t, ok, "late subscriber must not see earlier events")

	require.NoError(t, b.Publish(SystemEvent{Message: "after", At: time.Now()}))
	ev, ok := late.Queue().Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "after", ev.(SystemEvent).Message)
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(TopicSystemOutput)

	require.NoError(t, b.Publish(SystemEvent{Message: "first", At: time.Now()}))
	b.Unsubscribe(sub)
	require.NoError(t, b.Publish(SystemEvent{Message: "second", At: time.Now()}))

	// The event queued before unsubscribing stays consumable.
	ev, ok := sub.Queue().TryPop()
	require.True(t, ok)
	assert.Equal(t, "first", ev.(SystemEvent).Message)
	_, ok = sub.Queue().TryPop()
	assert.False(t, ok)

	b.Unsubscribe(sub) // second remove is a no-op
	b.Unsubscribe(nil)
}

func TestBroker_OrderConsistentAcrossSubscribers(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe(TopicSystemOutput)
	c := b.Subscribe(TopicSystemOutput)

	const publishers = 4
	const perPublisher = 50

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				b.Publish(SystemEvent{Message: fmt.Sprintf("%d/%d", p, i), At: time.Now()})
			}
		}(p)
	}
	wg.Wait()

	total := publishers * perPublisher
	drain := func(sub *Subscription) []string {
		out := make([]string, 0, total)
		for {
			ev, ok := sub.Queue().TryPop()
			if !ok {
				break
			}
			out = append(out, ev.(SystemEvent).Message)
		}
		return out
	}

	seqA := drain(a)
	seqC := drain(c)
	require.Len(t, seqA, total)
	// Every subscriber observes the same global publish order.
	assert.Equal(t, seqA, seqC)
}

func TestBroker_QueueSizesDoesNotConsume(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(TopicSystemOutput)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(SystemEvent{Message: "x", At: time.Now()}))
	}

	sizes := b.QueueSizes()
	require.Len(t, sizes, 1)
	assert.Equal(t, TopicSystemOutput, sizes[0].Topic)
	assert.Equal(t, 3, sizes[0].Size)
	assert.Equal(t, 3, sub.Queue().Len())
}
