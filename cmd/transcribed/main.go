// Command transcribed attaches to one Discord voice channel, transcribes
// each participant's speech via a remote ASR worker, and maintains a
// durable, append-only session log.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/glyphoxa/internal/asrclient"
	"github.com/MrWong99/glyphoxa/internal/config"
	"github.com/MrWong99/glyphoxa/internal/coordinator"
	"github.com/MrWong99/glyphoxa/internal/displayname"
	"github.com/MrWong99/glyphoxa/internal/health"
	"github.com/MrWong99/glyphoxa/internal/observe"
	"github.com/MrWong99/glyphoxa/internal/segment"
	"github.com/MrWong99/glyphoxa/internal/wrapup"
	"github.com/MrWong99/glyphoxa/pkg/vad"
	vadwebrtc "github.com/MrWong99/glyphoxa/pkg/vad/webrtc"
	"github.com/MrWong99/glyphoxa/pkg/voiceplatform/discord"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	sessionName := flag.String("session", "", "human-safe session name (required)")
	guildID := flag.String("guild", "", "Discord guild ID to join (required)")
	channelID := flag.String("channel", "", "Discord voice channel ID to join (required)")
	token := flag.String("token", os.Getenv("DISCORD_BOT_TOKEN"), "Discord bot token (defaults to DISCORD_BOT_TOKEN env var)")
	flag.Parse()

	if *sessionName == "" || *guildID == "" || *channelID == "" || *token == "" {
		fmt.Fprintln(os.Stderr, "transcribed: -session, -guild, -channel and a bot token are all required")
		return 1
	}

	// ── Load configuration ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "transcribed: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "transcribed: %v\n", err)
		}
		return 1
	}

	// ── Logger ───────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("transcribed starting", "config", *configPath, "session", *sessionName, "guild", *guildID)

	// ── Metrics ──────────────────────────────────────────────────────────────
	metrics, metricsShutdown, err := initMetrics()
	if err != nil {
		slog.Error("failed to init metrics", "error", err)
		return 1
	}
	defer metricsShutdown()

	// ── Discord session ──────────────────────────────────────────────────────
	session, err := discordgo.New("Bot " + *token)
	if err != nil {
		slog.Error("failed to create discord session", "error", err)
		return 1
	}
	session.Identify.Intents = discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuilds
	if err := session.Open(); err != nil {
		slog.Error("failed to open discord session", "error", err)
		return 1
	}
	defer session.Close()

	platform := discord.New(session, *guildID)
	resolver := displayname.New(platform, displayname.WithMetrics(metrics))

	// ── Coordinator wiring ────────────────────────────────────────────────────
	var sess *coordinator.Session
	transport := asrclient.NewClient(asrclient.Config{URL: cfg.ASR.ServiceURL}, func(t asrclient.Transcription) {
		sess.OnTranscription(t)
	}, func(e asrclient.WorkerError) {
		sess.OnWorkerError(e)
	})

	httpSrv := startHTTPServer(cfg.Server.MetricsAddr, transport, metrics)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	sess = coordinator.New(coordinator.Config{
		DataDir:      cfg.Session.DataDir,
		SessionName:  *sessionName,
		GuildID:      *guildID,
		BasePrompt:   cfg.ASR.Prompt,
		ContextWords: cfg.ASR.ContextWords,
		VAD: vad.Config{
			FrameMs:           cfg.VAD.FrameMs,
			EnergyThresholdDB: cfg.VAD.DBThreshold,
			Mode:              vad.Mode(cfg.VAD.WebrtcMode),
		},
		Segment: segment.Config{
			SilenceGapMs: cfg.Segment.SilenceGapMs,
			MinSegmentMs: cfg.Segment.MinSegmentMs,
			MaxSegmentMs: cfg.Segment.MaxSegmentMs,
		},
	}, vadwebrtc.Engine{}, transport, resolver, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		slog.Error("failed to start session", "error", err)
		return 1
	}

	conn, err := platform.Connect(ctx, *channelID, sess)
	if err != nil {
		slog.Error("failed to join voice channel", "error", err)
		_ = sess.Stop()
		return 1
	}

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		diff := config.Diff(old, updated)
		if diff.LogLevelChanged {
			slog.SetDefault(newLogger(diff.NewLogLevel))
		}
		slog.Info("configuration reloaded",
			"log_level_changed", diff.LogLevelChanged,
			"service_url_changed", diff.ServiceURLChanged,
			"prompt_changed", diff.PromptChanged,
			"vad_changed", diff.VADChanged,
			"segment_changed", diff.SegmentChanged,
		)
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", "error", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("transcribed ready — press Ctrl+C to shut down")

	fatal := false
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case <-sess.Done():
		// The session log is a consistency boundary (spec.md's LogWriteError
		// classification): a write failure aborts the session rather than let
		// it keep running while silently dropping entries, so this process
		// must exit too instead of looping back to "ready".
		fatal = true
		slog.Error("session log write failed, aborting")
	}

	if err := conn.Disconnect(); err != nil {
		slog.Warn("voice disconnect error", "error", err)
	}
	sess.FlushAll()
	if err := sess.Stop(); err != nil {
		slog.Error("session stop error", "error", err)
		fatal = true
	}

	if err := writeDigest(cfg.Session.DataDir, *sessionName); err != nil {
		slog.Warn("digest generation failed", "error", err)
	}

	if fatal {
		slog.Error("goodbye (aborted)")
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func writeDigest(dataDir, sessionName string) error {
	logPath := dataDir + "/" + sessionName + "/log.jsonl"
	outPath := dataDir + "/" + sessionName + "/digest.md"
	return wrapup.WriteDigest(sessionName, logPath, outPath)
}

func initMetrics() (*observe.Metrics, func(), error) {
	shutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "transcribed",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init otel provider: %w", err)
	}
	return observe.DefaultMetrics(), func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}, nil
}

// startHTTPServer serves Prometheus metrics on /metrics and liveness/
// readiness probes on /healthz and /readyz, per SPEC_FULL.md's ambient
// observability surface. Readiness reports the ASR transport's current
// connection state: this process is a thin pipe to the inference worker,
// so "ready" means "connected to it". Requests are wrapped with
// observe.Middleware for trace propagation and request-duration metrics.
func startHTTPServer(addr string, transport *asrclient.Client, metrics *observe.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	health.New(health.Checker{
		Name: "asr_transport",
		Check: func(_ context.Context) error {
			if !transport.Connected() {
				return errors.New("not connected to asr worker")
			}
			return nil
		},
	}).Register(mux)

	srv := &http.Server{Addr: addr, Handler: observe.Middleware(metrics)(mux)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()
	return srv
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
