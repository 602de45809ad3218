package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/convo"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

// ThinkPromptBuilder renders the instruction that asks the model to update
// the thinking scratchpad, given its current value.
type ThinkPromptBuilder func(current string) string

// ThinkWorker reacts to think_update schedule fires by recomputing the
// thinking scratchpad from the conversation so far. It is the single
// writer of Store.SetThinking.
type ThinkWorker struct {
	inbox     *event.Queue
	completer Completer
	store     *convo.Store
	prompt    ThinkPromptBuilder
	sink      *slog.Logger
}

func NewThinkWorker(inbox *event.Queue, completer Completer, store *convo.Store, prompt ThinkPromptBuilder, sink *slog.Logger) *ThinkWorker {
	if sink == nil {
		sink = slog.Default()
	}
	return &ThinkWorker{inbox: inbox, completer: completer, store: store, prompt: prompt, sink: sink}
}

func (w *ThinkWorker) Name() string { return "think" }

func (w *ThinkWorker) Step(ctx context.Context) (event.Event, error) {
	ev, ok := w.inbox.Pop(pollTimeout)
	if !ok {
		return nil, nil
	}
	fire, ok := ev.(event.ScheduleFireEvent)
	if !ok || fire.Kind != event.FireThinkUpdate {
		return nil, nil
	}
	// Fires that piled up while a previous update ran are stale; one
	// recomputation covers them all.
	w.inbox.Drain()

	messages := append(w.store.Snapshot(), convo.Message{
		Role:    convo.RoleUser,
		Content: w.prompt(w.store.Thinking()),
	})
	summary, err := w.completer.Complete(ctx, messages)
	if err != nil {
		return event.ErrorEvent{On: event.TopicThinkError, Message: err.Error(), At: time.Now()}, nil
	}

	w.store.SetThinking(summary)
	w.sink.Info("thinking updated", "thinking", summary)

	return event.SystemEvent{
		Message: "  * アシスタントの現状認識がアップデートされました *",
		At:      time.Now(),
	}, nil
}
