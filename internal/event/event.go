package event

import (
	"time"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/audio"
)

// Topic is the channel key events are published and subscribed under.
type Topic string

const (
	TopicAudioChunk            Topic = "audio_chunk"
	TopicSplitTranscription    Topic = "split_transcription"
	TopicRealtimeTranscription Topic = "realtime_transcription"
	TopicAssistantOutput       Topic = "assistant_output"
	TopicAssistantError        Topic = "assistant_error"
	TopicTranscribeError       Topic = "transcribe_error"
	TopicThinkError            Topic = "think_error"
	TopicScheduleFire          Topic = "schedule_fire"
	TopicSystemOutput          Topic = "system_output"
)

// Event is the closed set of payloads flowing through the broker. Events
// are value objects: never mutated after publish.
type Event interface {
	Topic() Topic
	OccurredAt() time.Time
}

// AudioChunkEvent carries one bounded chunk of microphone audio.
type AudioChunkEvent struct {
	Chunk *audio.Chunk
	At    time.Time
}

func (e AudioChunkEvent) Topic() Topic          { return TopicAudioChunk }
func (e AudioChunkEvent) OccurredAt() time.Time { return e.At }

// TranscriptionEvent carries the transcribed text of one chunk. The topic
// depends on the chunk kind: split chunks feed the chat worker, realtime
// chunks feed the live status line.
type TranscriptionEvent struct {
	Kind          audio.ChunkKind
	Text          string
	ChunkIndex    int
	ChunkSec      float64
	TranscribeSec float64
	At            time.Time
}

func (e TranscriptionEvent) Topic() Topic {
	if e.Kind == audio.ChunkRealtime {
		return TopicRealtimeTranscription
	}
	return TopicSplitTranscription
}

func (e TranscriptionEvent) OccurredAt() time.Time { return e.At }

// AssistantEvent carries one assistant reply.
type AssistantEvent struct {
	Message string
	At      time.Time
}

func (e AssistantEvent) Topic() Topic          { return TopicAssistantOutput }
func (e AssistantEvent) OccurredAt() time.Time { return e.At }

// ErrorEvent reports a collaborator failure on one of the error topics.
type ErrorEvent struct {
	On      Topic
	Message string
	At      time.Time
}

func (e ErrorEvent) Topic() Topic          { return e.On }
func (e ErrorEvent) OccurredAt() time.Time { return e.At }

// FireKind tags a ScheduleFireEvent with what the scheduler wants done.
type FireKind string

const (
	FireTick        FireKind = "tick"
	FireThinkUpdate FireKind = "think_update"
)

// ScheduleFireEvent is a synthetic timer event from the cron worker.
type ScheduleFireEvent struct {
	Kind    FireKind
	FiredAt time.Time
}

func (e ScheduleFireEvent) Topic() Topic          { return TopicScheduleFire }
func (e ScheduleFireEvent) OccurredAt() time.Time { return e.FiredAt }

// SystemEvent carries an informational message for the display.
type SystemEvent struct {
	Message string
	At      time.Time
}

func (e SystemEvent) Topic() Topic          { return TopicSystemOutput }
func (e SystemEvent) OccurredAt() time.Time { return e.At }
