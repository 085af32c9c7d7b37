package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"contact-insights-go/internal/analyzer"
	"contact-insights-go/internal/api"
	"contact-insights-go/internal/config"
	"contact-insights-go/internal/crm"
	"contact-insights-go/internal/llm"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/opportunity"
	"contact-insights-go/internal/store"
	"contact-insights-go/internal/timeline"
	"contact-insights-go/internal/transcription"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "contact-insights-go").Info("starting service")

	cfg, err := config.FromEnv()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer db.Close()
	log.WithField("db_path", cfg.DBPath).Info("store ready")

	crmClient := crm.NewClient(cfg.CRMBaseURL, cfg.CRMAPIKey, cfg.CRMAPIVersion,
		crm.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
		crm.WithRecordingLimits(cfg.RecordingTimeout, cfg.RecordingMaxBytes))
	sttClient := transcription.NewClient(cfg.TranscribeURL, cfg.TranscribeAPIKey)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)

	step := transcription.NewStep(crmClient, sttClient)
	builder := timeline.NewBuilder(crmClient, step)
	runner := analyzer.New(crmClient, builder, llmClient, db, db, db)
	enricher := opportunity.NewEnricher(crmClient, db, cfg.EnrichBatchSize)

	router := api.NewRouter(api.Deps{
		Analyzer:      runner,
		Prompts:       db,
		Analyses:      db,
		Opportunities: enricher,
		CRM:           crmClient,
		Recordings:    crmClient,
		STT:           sttClient,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // analysis runs transcribe many calls
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
}
