// Package remote forwards display lines to an external hub over a
// websocket. Presentation mirroring only: the broker's delivery semantics
// stay in-process, the hub just sees the same lines the console shows.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

const pollTimeout = 200 * time.Millisecond

// Frame is the JSON wire format consumed by the hub.
type Frame struct {
	From    string `json:"from"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	SentAt  int64  `json:"sent_at"`
}

// Sink is a worker that drains one inbound queue and writes frames to the
// hub, redialing with a fixed delay when the connection drops. Frames that
// fail to send are dropped; the hub is an observer, not a participant.
type Sink struct {
	inbox       *event.Queue
	url         string
	redialDelay time.Duration
	log         *slog.Logger

	conn *ws.Conn
}

func NewSink(inbox *event.Queue, url string, redialDelay time.Duration, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	if redialDelay <= 0 {
		redialDelay = 3 * time.Second
	}
	return &Sink{inbox: inbox, url: url, redialDelay: redialDelay, log: log}
}

func (s *Sink) Name() string { return "remote-sink" }

func (s *Sink) Step(ctx context.Context) (event.Event, error) {
	ev, ok := s.inbox.Pop(pollTimeout)
	if !ok {
		return nil, nil
	}
	frame, ok := toFrame(ev)
	if !ok {
		return nil, nil
	}
	if err := s.send(frame); err != nil {
		s.log.Warn("remote sink send failed", "kind", frame.Kind, "err", err)
	}
	return nil, nil
}

// Close shuts the connection down; safe to call at shutdown regardless of
// connection state.
func (s *Sink) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Sink) send(frame Frame) error {
	if s.conn == nil {
		if err := s.dial(); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := s.conn.WriteMessage(ws.TextMessage, payload); err != nil {
		_ = s.conn.Close()
		s.conn = nil
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Sink) dial() error {
	conn, _, err := ws.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		time.Sleep(s.redialDelay)
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.log.Info("remote sink connected", "url", s.url)
	s.conn = conn
	return nil
}

func toFrame(ev event.Event) (Frame, bool) {
	switch e := ev.(type) {
	case event.TranscriptionEvent:
		return Frame{From: "voicechat", Kind: "user", Content: e.Text, SentAt: e.At.Unix()}, true
	case event.AssistantEvent:
		return Frame{From: "voicechat", Kind: "assistant", Content: e.Message, SentAt: e.At.Unix()}, true
	case event.SystemEvent:
		return Frame{From: "voicechat", Kind: "system", Content: e.Message, SentAt: e.At.Unix()}, true
	default:
		return Frame{}, false
	}
}
