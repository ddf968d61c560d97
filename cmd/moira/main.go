package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/mcallaghan/moira/internal/brain"
	"github.com/mcallaghan/moira/internal/companion"
	"github.com/mcallaghan/moira/internal/config"
	"github.com/mcallaghan/moira/internal/docs"
	"github.com/mcallaghan/moira/internal/family"
	"github.com/mcallaghan/moira/internal/health"
	"github.com/mcallaghan/moira/internal/httpapi"
	"github.com/mcallaghan/moira/internal/memory"
	"github.com/mcallaghan/moira/internal/observability"
	"github.com/mcallaghan/moira/internal/research"
	"github.com/mcallaghan/moira/internal/session"
	"github.com/mcallaghan/moira/internal/store"
	"github.com/mcallaghan/moira/internal/voice"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	paths := store.NewPaths(cfg.DataDir)
	if err := paths.EnsureDirs(); err != nil {
		log.Fatalf("data dir init failed: %v", err)
	}
	records := store.New(paths, func(kind string) {
		metrics.StoreDecodeFails.WithLabelValues(kind).Inc()
	})

	ctx := context.Background()
	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL, records)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer memoryStore.Close()

	registry := family.NewRegistry(records)
	patientNames := func() []string {
		names := registry.Names()
		return append(names, cfg.ExtraPatientNames...)
	}
	tracker := health.NewTracker(records, patientNames, cfg.KeywordMatchThreshold, cfg.NameMatchThreshold)
	dailyLog := memory.NewDailyLog(paths)
	library := research.NewLibrary(records, paths)

	generator, err := brain.NewGenerator(brain.Config{
		Mode:   cfg.BrainMode,
		URL:    cfg.BrainHTTPURL,
		APIKey: cfg.BrainAPIKey,
		Model:  cfg.BrainModel,
	})
	if err != nil {
		log.Fatalf("brain init failed: %v", err)
	}

	synthesizer, err := voice.NewSynthesizer(voice.SynthesizerConfig{
		Provider: cfg.VoiceProvider,
		APIKey:   cfg.ElevenLabsAPIKey,
		BaseURL:  cfg.ElevenLabsBaseURL,
		VoiceID:  cfg.ElevenLabsVoiceID,
		ModelID:  cfg.ElevenLabsModelID,
	})
	if err != nil {
		log.Fatalf("voice init failed: %v", err)
	}
	transcriber, err := voice.NewTranscriber(voice.TranscriberConfig{
		Mode:   cfg.TranscriberMode,
		APIURL: cfg.WhisperAPIURL,
		APIKey: cfg.WhisperAPIKey,
		Model:  cfg.WhisperModel,
	})
	if err != nil {
		log.Fatalf("transcriber init failed: %v", err)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
		metrics.ActiveOnboarding.Set(float64(sessions.OnboardingCount()))
	})

	comp := companion.New(companion.Config{ContextWindow: cfg.ContextWindow}, companion.Deps{
		Sessions:    sessions,
		Registry:    registry,
		Tracker:     tracker,
		Memory:      memoryStore,
		DailyLog:    dailyLog,
		Research:    library,
		Generator:   generator,
		Synthesizer: synthesizer,
		Audio:       voice.NewAudioStore(paths.AudioDir, cfg.AudioRetainCount),
		Documents:   docs.NewWriter(paths.DocumentsDir),
		Metrics:     metrics,
	})

	rollover := cron.New()
	if _, err := rollover.AddFunc(cfg.RolloverSpec, func() {
		n, err := dailyLog.Flush(time.Now())
		if err != nil {
			log.Printf("daily log flush failed: %v", err)
			return
		}
		if n > 0 {
			metrics.DailyFlushes.Inc()
			metrics.FlushedTurns.Add(float64(n))
			log.Printf("daily log: flushed %d turns", n)
		}
	}); err != nil {
		log.Fatalf("rollover schedule %q invalid: %v", cfg.RolloverSpec, err)
	}
	rollover.Start()
	defer rollover.Stop()

	api := httpapi.New(cfg, httpapi.Deps{
		Companion:   comp,
		Sessions:    sessions,
		Tracker:     tracker,
		Registry:    registry,
		DailyLog:    dailyLog,
		Memory:      memoryStore,
		Research:    library,
		Generator:   generator,
		Records:     records,
		Transcriber: transcriber,
		Metrics:     metrics,
	}, paths)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
