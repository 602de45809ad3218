package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/audio"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/chat"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/config"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/convo"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/display"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/ipc"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/listen"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/monitor"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/notify"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/proxy"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/remote"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/sched"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/transcribe"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/worker"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/pkg/audiofile"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func buildSystemPrompt() string {
	return "あなたは日本語で会話するアシスタントスタッフです。\n" +
		fmt.Sprintf("現在日付は%sです\n", time.Now().Format("2006-01-02 15:04")) +
		"ユーザーをサポートするアシスタントサービスをやってるアルバイトスタッフとして会話に応じます。\n" +
		"チャットが始まったときは少し事務的ですが、少しやりとりをするとくだけた口調になります。\n" +
		"あなたは優秀でユーモアのある人物です。ユーザーの話をよく聞き、適切に反応します。\n" +
		"チャットが始まったときはお互いに相手のことを知りません。アルバイトのルールで、名前など個人情報を話してはいけない決まりになっていますが、個人が特定されない範囲であればいいだろう、と思っています。\n" +
		"質問して答えを引き出すのではなく、自分なりの意見や設定に基づく自己開示で会話をリードします。"
}

func buildThinkPrompt(current string) string {
	if current == "" {
		current = "なし"
	}
	return "会話履歴と現在のthinkingを踏まえて、" +
		"アシスタントの思考背景と設定を更新してください。十分な情報がなければ創作してよいです。" +
		"これまでの会話についてどう考えているのか。ユーザーのことはどういう人物だと考えているのか。" +
		"そういうことも整理します。一貫性のあるキャラクター設定と会話を行うための重要な情報です。" +
		"必ず「アシスタントが今考えていることと今の状態:」から始めてください。" +
		"\n\n現在のthinking: " + current
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS5 proxy address for the chat API (optional)")
	inputFile := cli.StringP("input", "i", "", "Replay a recording (wav/mp3/ogg) instead of the microphone")
	dumpDir := cli.StringP("dump-dir", "d", "", "Write emitted chunks as WAV files into this directory")
	busURL := cli.StringP("bus", "b", "", "Forward display lines to a websocket hub (optional)")
	chime := cli.StringP("chime", "c", "", "Play this mp3 once the pipeline is ready (optional)")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[strings.ToLower(*logLevel)],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	sink, closeSink, err := buildLogSink(cfg.LogDir)
	if err != nil {
		log.Error("Failed to open log sink", "err", err)
		os.Exit(1)
	}
	defer closeSink()

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if *proxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		clientOpts = append(clientOpts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(clientOpts...)

	engine, err := transcribe.NewEngine(cfg.Whisper)
	if err != nil {
		log.Error("Failed to load whisper models", "err", err)
		os.Exit(1)
	}
	defer engine.Close()

	source, err := buildSource(cfg.Audio, *inputFile)
	if err != nil {
		log.Error("Failed to open audio source", "err", err)
		os.Exit(1)
	}
	defer source.Close()

	var archiver *audio.Archiver
	if *dumpDir != "" {
		archiver, err = audio.NewArchiver(*dumpDir)
		if err != nil {
			log.Error("Failed to prepare chunk archive", "err", err)
			os.Exit(1)
		}
	}

	log.Info("Boot up - successful")

	store := convo.NewStore(buildSystemPrompt(), cfg.Chat.MaxHistory)
	broker := event.NewBroker()
	console := display.NewConsole(os.Stdout)

	// Subscriptions precede worker start so the first publishes land.
	audioChunks := broker.Subscribe(event.TopicAudioChunk)
	splitForChat := broker.Subscribe(event.TopicSplitTranscription)
	splitForDisplay := broker.Subscribe(event.TopicSplitTranscription)
	realtimeForDisplay := broker.Subscribe(event.TopicRealtimeTranscription)
	assistantForDisplay := broker.Subscribe(event.TopicAssistantOutput)
	assistantErrors := broker.Subscribe(event.TopicAssistantError)
	transcribeErrors := broker.Subscribe(event.TopicTranscribeError)
	thinkErrors := broker.Subscribe(event.TopicThinkError)
	scheduleForThink := broker.Subscribe(event.TopicScheduleFire)
	systemForDisplay := broker.Subscribe(event.TopicSystemOutput)

	var turnPolicy chat.TurnPolicy = chat.ImmediatePolicy{}
	if cfg.Chat.TurnPolicy == "pause" {
		turnPolicy = chat.NewPausePolicy(cfg.Chat.TurnPause)
	}

	workers := []worker.Worker{
		listen.NewListener(cfg.Audio, source, audio.NewProcessor(audio.ProcessorConfig{
			SampleRate:       cfg.Audio.SampleRate,
			SilenceThreshold: cfg.Audio.SilenceThreshold,
			SilenceDuration:  cfg.Audio.SilenceDuration,
			RealtimeChunk:    cfg.Audio.RealtimeChunk,
		}), archiver, log.Default()),
		transcribe.NewWorker(audioChunks.Queue(), engine,
			transcribe.NewFilter(transcribe.FilterMode(cfg.Whisper.DenylistMode), cfg.Whisper.DenylistPhrases),
			cfg.Audio.MinRMSForTranscribe, sink),
		chat.NewWorker(splitForChat.Queue(), chat.NewJSONCompleter(client, cfg.Chat.Model), store, turnPolicy, sink),
		chat.NewThinkWorker(scheduleForThink.Queue(), chat.NewTextCompleter(client, cfg.Chat.ThinkModel), store, buildThinkPrompt, sink),
		sched.NewCron(cfg.Sched.TickInterval, cfg.Sched.ThinkInterval),
		monitor.NewWorker(broker, cfg.Monitor.Interval, sink),
		display.NewRealtimeWorker(realtimeForDisplay.Queue(), console, 2*time.Second),
		display.NewUserWorker(splitForDisplay.Queue(), console),
		display.NewAssistantWorker(assistantForDisplay.Queue(), console),
		display.NewAssistantWorker(assistantErrors.Queue(), console),
		display.NewErrorWorker(transcribeErrors.Queue(), console, "Transcribe"),
		display.NewErrorWorker(thinkErrors.Queue(), console, "Think"),
		display.NewSystemWorker(systemForDisplay.Queue(), console),
	}

	var busSinks []*remote.Sink
	if *busURL != "" {
		for _, topic := range []event.Topic{
			event.TopicSplitTranscription,
			event.TopicAssistantOutput,
			event.TopicSystemOutput,
		} {
			s := remote.NewSink(broker.Subscribe(topic).Queue(), *busURL, 3*time.Second, log.Default())
			busSinks = append(busSinks, s)
			workers = append(workers, s)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runners := make([]*worker.Runner, 0, len(workers))
	for _, w := range workers {
		r := worker.NewRunner(broker, log.Default())
		if w.Name() == "listener" {
			// A listener step only fails after device reconnects are
			// exhausted; nothing is gained by looping on it.
			r.MaxConsecutiveFailures = 1
		}
		r.Start(ctx, w)
		runners = append(runners, r)
	}

	stopIPC, err := ipc.StartServer(func(msg ipc.ControlMessage) ipc.ControlReply {
		switch msg.Cmd {
		case "stop":
			cancel()
			return ipc.ControlReply{OK: true, Message: "stopping"}
		case "status":
			var parts []string
			for _, qs := range broker.QueueSizes() {
				parts = append(parts, fmt.Sprintf("%s=%d", qs.Topic, qs.Size))
			}
			return ipc.ControlReply{OK: true, Message: strings.Join(parts, " ")}
		default:
			return ipc.ControlReply{OK: false, Message: "unknown command: " + msg.Cmd}
		}
	})
	if err != nil {
		log.Error("Failed to start control socket", "err", err)
		os.Exit(1)
	}
	defer stopIPC()

	// Seed a thinking update so the assistant has a state before the
	// first user turn.
	broker.Publish(event.ScheduleFireEvent{Kind: event.FireThinkUpdate, FiredAt: time.Now()})

	console.Line(display.ReadyBanner)
	if *chime != "" {
		if err := notify.Chime(*chime); err != nil {
			log.Warn("Chime failed", "err", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	cancel()

	joinAll(runners, time.Second)
	for _, s := range busSinks {
		s.Close()
	}
	log.Info("Shutdown complete")
}

// buildSource selects the microphone or a file replay source and opens it.
func buildSource(cfg config.AudioConfig, inputFile string) (audio.BlockSource, error) {
	if inputFile == "" {
		mic := audio.NewMicSource(cfg.SampleRate, cfg.BlockSize)
		if err := mic.Open(); err != nil {
			return nil, err
		}
		return mic, nil
	}
	pcm, err := audiofile.Decode(inputFile, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", inputFile, err)
	}
	return audio.NewFileSource(pcm, cfg.SampleRate, cfg.BlockSize, true), nil
}

// buildLogSink opens the hourly JSON log file the workers stream their
// structured records into.
func buildLogSink(dir string) (*log.Logger, func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	path := filepath.Join(dir, "app-"+time.Now().Format("20060102-15")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	sink := log.New(log.NewJSONHandler(f, &log.HandlerOptions{Level: log.LevelDebug}))
	return sink, func() { f.Close() }, nil
}

// joinAll waits for every runner, giving each the remainder of a shared
// grace period.
func joinAll(runners []*worker.Runner, grace time.Duration) {
	deadline := time.After(grace)
	done := make(chan struct{})
	go func() {
		for _, r := range runners {
			r.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-deadline:
		log.Warn("Some workers did not stop within the grace period")
	}
}
