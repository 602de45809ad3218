package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/convo"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

func pushThinkFire(q *event.Queue) {
	q.Push(event.ScheduleFireEvent{Kind: event.FireThinkUpdate, FiredAt: time.Now()})
}

func TestThinkWorker_UpdatesThinkingOnly(t *testing.T) {
	inbox := event.NewQueue()
	store := convo.NewStore("system", 40)
	store.AppendUser("こんにちは")
	fc := &fakeCompleter{reply: "アシスタントが今考えていることと今の状態: 初対面の挨拶中"}
	w := NewThinkWorker(inbox, fc, store, func(current string) string {
		return "update, current: " + current
	}, discardSink())

	pushThinkFire(inbox)

	ev, err := w.Step(context.Background())
	require.NoError(t, err)
	se, ok := ev.(event.SystemEvent)
	require.True(t, ok)
	assert.Equal(t, event.TopicSystemOutput, se.Topic())

	assert.Equal(t, fc.reply, store.Thinking())
	assert.Equal(t, 1, store.Len(), "thinking updates never touch history")
}

func TestThinkWorker_PromptCarriesCurrentThinking(t *testing.T) {
	inbox := event.NewQueue()
	store := convo.NewStore("system", 40)
	store.SetThinking("previous state")
	fc := &fakeCompleter{reply: "new state"}
	w := NewThinkWorker(inbox, fc, store, func(current string) string {
		return "current: " + current
	}, discardSink())

	pushThinkFire(inbox)
	_, err := w.Step(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, fc.last)
	last := fc.last[len(fc.last)-1]
	assert.Equal(t, convo.RoleUser, last.Role)
	assert.Equal(t, "current: previous state", last.Content)
}

func TestThinkWorker_DrainsStaleFires(t *testing.T) {
	inbox := event.NewQueue()
	store := convo.NewStore("system", 40)
	fc := &fakeCompleter{reply: "state"}
	w := NewThinkWorker(inbox, fc, store, func(string) string { return "p" }, discardSink())

	for i := 0; i < 5; i++ {
		pushThinkFire(inbox)
	}

	_, err := w.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fc.calls, "piled-up fires collapse into one recomputation")
	assert.Equal(t, 0, inbox.Len())
}

func TestThinkWorker_FailureKeepsOldThinking(t *testing.T) {
	inbox := event.NewQueue()
	store := convo.NewStore("system", 40)
	store.SetThinking("known good")
	fc := &fakeCompleter{err: errors.New("api down")}
	w := NewThinkWorker(inbox, fc, store, func(string) string { return "p" }, discardSink())

	pushThinkFire(inbox)

	ev, err := w.Step(context.Background())
	require.NoError(t, err)
	ee, ok := ev.(event.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, event.TopicThinkError, ee.Topic())
	assert.Equal(t, "known good", store.Thinking())
}

func TestThinkWorker_IgnoresTickFires(t *testing.T) {
	inbox := event.NewQueue()
	fc := &fakeCompleter{reply: "never"}
	w := NewThinkWorker(inbox, fc, convo.NewStore("s", 40), func(string) string { return "p" }, discardSink())

	inbox.Push(event.ScheduleFireEvent{Kind: event.FireTick, FiredAt: time.Now()})

	ev, err := w.Step(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Equal(t, 0, fc.calls)
}
