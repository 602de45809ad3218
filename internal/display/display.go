// Package display renders pipeline events to the console. Presentation
// only: these workers mutate no shared state and publish nothing.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

const pollTimeout = 200 * time.Millisecond

const (
	colorCyan   = "\033[96m"
	colorGreen  = "\033[92m"
	colorYellow = "\033[93m"
	colorGray   = "\033[90m"
	colorReset  = "\033[0m"
	clearLine   = "\r\033[2K"
)

// Console serializes writes from the display workers so the status line
// and full lines never interleave mid-escape-sequence.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Status overwrites the current line with a transient message.
func (c *Console) Status(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s%s", clearLine, message)
}

// ClearStatus erases the transient line.
func (c *Console) ClearStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, clearLine)
}

// Line clears any transient status and prints a permanent line.
func (c *Console) Line(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s%s\n", clearLine, text)
}

// RealtimeWorker shows the latest realtime transcription as a transient
// status line and clears it once no update arrived for StaleAfter.
type RealtimeWorker struct {
	inbox      *event.Queue
	console    *Console
	staleAfter time.Duration

	lastUpdate time.Time
	hasStatus  bool
}

func NewRealtimeWorker(inbox *event.Queue, console *Console, staleAfter time.Duration) *RealtimeWorker {
	return &RealtimeWorker{inbox: inbox, console: console, staleAfter: staleAfter}
}

func (w *RealtimeWorker) Name() string { return "display-realtime" }

func (w *RealtimeWorker) Step(ctx context.Context) (event.Event, error) {
	ev, ok := w.inbox.Pop(pollTimeout)
	if !ok {
		if w.hasStatus && time.Since(w.lastUpdate) >= w.staleAfter {
			w.console.ClearStatus()
			w.hasStatus = false
		}
		return nil, nil
	}
	te, ok := ev.(event.TranscriptionEvent)
	if !ok {
		return nil, nil
	}
	w.console.Status("聞き取っています: " + te.Text)
	w.lastUpdate = time.Now()
	w.hasStatus = true
	return nil, nil
}

// UserWorker prints completed user utterances with transcription timing.
type UserWorker struct {
	inbox   *event.Queue
	console *Console
}

func NewUserWorker(inbox *event.Queue, console *Console) *UserWorker {
	return &UserWorker{inbox: inbox, console: console}
}

func (w *UserWorker) Name() string { return "display-user" }

func (w *UserWorker) Step(ctx context.Context) (event.Event, error) {
	ev, ok := w.inbox.Pop(pollTimeout)
	if !ok {
		return nil, nil
	}
	te, ok := ev.(event.TranscriptionEvent)
	if !ok {
		return nil, nil
	}
	w.console.Line(fmt.Sprintf("%sUser:%s %s %s(transcribe: %.2f sec, chunk %.2f sec)%s",
		colorCyan, colorReset, te.Text, colorGray, te.TranscribeSec, te.ChunkSec, colorReset))
	return nil, nil
}

// AssistantWorker prints assistant replies and assistant-side errors.
type AssistantWorker struct {
	inbox   *event.Queue
	console *Console
}

func NewAssistantWorker(inbox *event.Queue, console *Console) *AssistantWorker {
	return &AssistantWorker{inbox: inbox, console: console}
}

func (w *AssistantWorker) Name() string { return "display-assistant" }

func (w *AssistantWorker) Step(ctx context.Context) (event.Event, error) {
	ev, ok := w.inbox.Pop(pollTimeout)
	if !ok {
		return nil, nil
	}
	switch e := ev.(type) {
	case event.AssistantEvent:
		w.console.Line(fmt.Sprintf("%sAssistant:%s %s", colorGreen, colorReset, e.Message))
	case event.ErrorEvent:
		w.console.Line("Assistant error: " + e.Message)
	}
	return nil, nil
}

// SystemWorker prints system notices.
type SystemWorker struct {
	inbox   *event.Queue
	console *Console
}

func NewSystemWorker(inbox *event.Queue, console *Console) *SystemWorker {
	return &SystemWorker{inbox: inbox, console: console}
}

func (w *SystemWorker) Name() string { return "display-system" }

func (w *SystemWorker) Step(ctx context.Context) (event.Event, error) {
	ev, ok := w.inbox.Pop(pollTimeout)
	if !ok {
		return nil, nil
	}
	se, ok := ev.(event.SystemEvent)
	if !ok {
		return nil, nil
	}
	w.console.Line(fmt.Sprintf("%sSystem:%s %s", colorYellow, colorReset, se.Message))
	return nil, nil
}

// ErrorWorker prints pipeline errors with a stage label.
type ErrorWorker struct {
	inbox   *event.Queue
	console *Console
	label   string
}

func NewErrorWorker(inbox *event.Queue, console *Console, label string) *ErrorWorker {
	return &ErrorWorker{inbox: inbox, console: console, label: label}
}

func (w *ErrorWorker) Name() string { return "display-error-" + w.label }

func (w *ErrorWorker) Step(ctx context.Context) (event.Event, error) {
	ev, ok := w.inbox.Pop(pollTimeout)
	if !ok {
		return nil, nil
	}
	ee, ok := ev.(event.ErrorEvent)
	if !ok {
		return nil, nil
	}
	w.console.Line(fmt.Sprintf("%s error: %s", w.label, ee.Message))
	return nil, nil
}

// ReadyBanner is the line printed once the pipeline is up.
const ReadyBanner = "## アシスタントと接続できました。どうぞ対話を楽しんでください。 ##"
