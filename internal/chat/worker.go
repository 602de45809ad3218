// Package chat owns the conversational stages: the chat worker that turns
// completed user turns into assistant replies, and the think worker that
// refreshes the assistant's thinking scratchpad on a timer.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/convo"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

const pollTimeout = 200 * time.Millisecond

// Worker consumes split transcriptions, assembles them into turns and asks
// the chat collaborator for a reply. History is touched only here, and
// only once a turn actually completed — a failed collaborator call leaves
// the store untouched and the turn is not resubmitted.
type Worker struct {
	inbox     *event.Queue
	completer Completer
	store     *convo.Store
	policy    TurnPolicy
	sink      *slog.Logger
}

func NewWorker(inbox *event.Queue, completer Completer, store *convo.Store, policy TurnPolicy, sink *slog.Logger) *Worker {
	if sink == nil {
		sink = slog.Default()
	}
	if policy == nil {
		policy = ImmediatePolicy{}
	}
	return &Worker{inbox: inbox, completer: completer, store: store, policy: policy, sink: sink}
}

func (w *Worker) Name() string { return "chat" }

func (w *Worker) Step(ctx context.Context) (event.Event, error) {
	ev, ok := w.inbox.Pop(pollTimeout)
	if !ok {
		if turn, ready := w.policy.Flush(time.Now()); ready {
			return w.respond(ctx, turn)
		}
		return nil, nil
	}
	te, ok := ev.(event.TranscriptionEvent)
	if !ok {
		return nil, nil
	}
	text := strings.TrimSpace(te.Text)
	if text == "" {
		return nil, nil
	}
	if turn, ready := w.policy.Add(text, time.Now()); ready {
		return w.respond(ctx, turn)
	}
	return nil, nil
}

func (w *Worker) respond(ctx context.Context, turn string) (event.Event, error) {
	outbound := append(w.store.Snapshot(), convo.Message{Role: convo.RoleUser, Content: turn})

	reply, err := w.completer.Complete(ctx, outbound)
	if err != nil {
		w.sink.Info("assistant reply failed", "turn", turn, "err", err)
		return event.ErrorEvent{On: event.TopicAssistantError, Message: err.Error(), At: time.Now()}, nil
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, nil
	}

	w.store.AppendUser(turn)
	w.store.AppendAssistant(reply)
	w.sink.Info("assistant reply", "turn", turn, "reply", reply)

	return event.AssistantEvent{Message: reply, At: time.Now()}, nil
}
