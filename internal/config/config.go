package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full pipeline configuration. Defaults match a Japanese
// conversation setup on a 16 kHz mono capture; every field can be
// overridden through the environment (loaded from .env by the daemon).
type Config struct {
	Audio   AudioConfig
	Whisper WhisperConfig
	Chat    ChatConfig
	Sched   SchedConfig
	Monitor MonitorConfig
	LogDir  string
}

// AudioConfig tunes capture and chunk boundary detection.
type AudioConfig struct {
	SampleRate          int
	Channels            int
	BlockSize           int
	SilenceThreshold    float64
	SilenceDuration     time.Duration
	RealtimeChunk       time.Duration
	MinRMSForTranscribe float64
	DeviceMaxRetries    int           // reconnect attempts before the listener gives up
	DeviceRetryDelay    time.Duration // initial backoff between reconnect attempts
}

// WhisperConfig selects the local transcription models. The main model
// handles utterance (split) chunks, the realtime model the low-latency
// slices.
type WhisperConfig struct {
	MainModelPath     string
	RealtimeModelPath string
	Language          string
	BeamSize          int
	Threads           int
	DenylistPhrases   []string
	DenylistMode      string // "drop" or "mask"
}

// ChatConfig drives the chat and think collaborators.
type ChatConfig struct {
	Model      string
	ThinkModel string
	TurnPolicy string        // "immediate" or "pause"
	TurnPause  time.Duration // inactivity gap that flushes a turn under "pause"
	MaxHistory int           // messages kept before oldest-first trimming
}

// SchedConfig sets the cron worker intervals.
type SchedConfig struct {
	TickInterval  time.Duration
	ThinkInterval time.Duration
}

// MonitorConfig sets the queue-depth sampling interval.
type MonitorConfig struct {
	Interval time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:          16000,
			Channels:            1,
			BlockSize:           1024,
			SilenceThreshold:    0.01,
			SilenceDuration:     time.Second,
			RealtimeChunk:       2 * time.Second,
			MinRMSForTranscribe: 0.01,
			DeviceMaxRetries:    5,
			DeviceRetryDelay:    time.Second,
		},
		Whisper: WhisperConfig{
			MainModelPath:     "models/ggml-medium.bin",
			RealtimeModelPath: "models/ggml-small.bin",
			Language:          "ja",
			BeamSize:          1,
			Threads:           0,
			DenylistPhrases:   []string{"ご視聴ありがとうございました"},
			DenylistMode:      "drop",
		},
		Chat: ChatConfig{
			Model:      "gpt-5-chat-latest",
			ThinkModel: "gpt-5.2",
			TurnPolicy: "immediate",
			TurnPause:  1500 * time.Millisecond,
			MaxHistory: 40,
		},
		Sched: SchedConfig{
			TickInterval:  15 * time.Second,
			ThinkInterval: 60 * time.Second,
		},
		Monitor: MonitorConfig{
			Interval: 5 * time.Second,
		},
		LogDir: "logs",
	}
}

// FromEnv returns Default overridden by any VOICECHAT_* variables set in
// the environment, validated.
func FromEnv() (Config, error) {
	cfg := Default()

	envInt("VOICECHAT_SAMPLE_RATE", &cfg.Audio.SampleRate)
	envInt("VOICECHAT_BLOCK_SIZE", &cfg.Audio.BlockSize)
	envFloat("VOICECHAT_SILENCE_THRESHOLD", &cfg.Audio.SilenceThreshold)
	envDuration("VOICECHAT_SILENCE_DURATION", &cfg.Audio.SilenceDuration)
	envDuration("VOICECHAT_REALTIME_CHUNK", &cfg.Audio.RealtimeChunk)
	envFloat("VOICECHAT_MIN_RMS", &cfg.Audio.MinRMSForTranscribe)
	envInt("VOICECHAT_DEVICE_MAX_RETRIES", &cfg.Audio.DeviceMaxRetries)

	envString("VOICECHAT_WHISPER_MAIN_MODEL", &cfg.Whisper.MainModelPath)
	envString("VOICECHAT_WHISPER_REALTIME_MODEL", &cfg.Whisper.RealtimeModelPath)
	envString("VOICECHAT_WHISPER_LANGUAGE", &cfg.Whisper.Language)
	envInt("VOICECHAT_WHISPER_BEAM_SIZE", &cfg.Whisper.BeamSize)
	envInt("VOICECHAT_WHISPER_THREADS", &cfg.Whisper.Threads)
	envList("VOICECHAT_DENYLIST", &cfg.Whisper.DenylistPhrases)
	envString("VOICECHAT_DENYLIST_MODE", &cfg.Whisper.DenylistMode)

	envString("VOICECHAT_CHAT_MODEL", &cfg.Chat.Model)
	envString("VOICECHAT_THINK_MODEL", &cfg.Chat.ThinkModel)
	envString("VOICECHAT_TURN_POLICY", &cfg.Chat.TurnPolicy)
	envDuration("VOICECHAT_TURN_PAUSE", &cfg.Chat.TurnPause)
	envInt("VOICECHAT_MAX_HISTORY", &cfg.Chat.MaxHistory)

	envDuration("VOICECHAT_TICK_INTERVAL", &cfg.Sched.TickInterval)
	envDuration("VOICECHAT_THINK_INTERVAL", &cfg.Sched.ThinkInterval)
	envDuration("VOICECHAT_MONITOR_INTERVAL", &cfg.Monitor.Interval)
	envString("VOICECHAT_LOG_DIR", &cfg.LogDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.BlockSize <= 0 {
		return fmt.Errorf("audio: block size must be positive, got %d", c.Audio.BlockSize)
	}
	if c.Audio.SilenceThreshold < 0 {
		return fmt.Errorf("audio: silence threshold must not be negative, got %f", c.Audio.SilenceThreshold)
	}
	if c.Audio.SilenceDuration <= 0 {
		return fmt.Errorf("audio: silence duration must be positive, got %s", c.Audio.SilenceDuration)
	}
	if c.Audio.RealtimeChunk <= 0 {
		return fmt.Errorf("audio: realtime chunk span must be positive, got %s", c.Audio.RealtimeChunk)
	}
	switch c.Whisper.DenylistMode {
	case "drop", "mask":
	default:
		return fmt.Errorf("whisper: denylist mode must be drop or mask, got %q", c.Whisper.DenylistMode)
	}
	switch c.Chat.TurnPolicy {
	case "immediate", "pause":
	default:
		return fmt.Errorf("chat: turn policy must be immediate or pause, got %q", c.Chat.TurnPolicy)
	}
	if c.Chat.MaxHistory <= 0 {
		return fmt.Errorf("chat: max history must be positive, got %d", c.Chat.MaxHistory)
	}
	if c.Sched.TickInterval <= 0 || c.Sched.ThinkInterval <= 0 {
		return fmt.Errorf("sched: intervals must be positive")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor: interval must be positive")
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envList(key string, dst *[]string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
