package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"contract-engine/api/handler"
	"contract-engine/api/router"
	"contract-engine/config"
	"contract-engine/job"
	"contract-engine/logic/extract"
	"contract-engine/pkg/logger"
	"contract-engine/service"
	"contract-engine/storage"
	"contract-engine/storage/memory"
	"contract-engine/storage/postgres"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv(config.ConfigPathEnv))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// Storage
	var store storage.Store
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.InitDB(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("init postgres: %v", err)
		}
		store = postgres.NewStore(db)
	case "memory":
		store = memory.NewStore()
	default:
		log.Fatalf("unknown database driver %q", cfg.Database.Driver)
	}

	// Extraction collaborator (optional)
	var extractor service.Extractor
	if cfg.Extractor.Enabled {
		llm, err := extract.NewOllamaExtractor(ctx, cfg.Extractor.BaseURL, cfg.Extractor.Model)
		if err != nil {
			log.Fatalf("init extractor: %v", err)
		}
		extractor = llm
	}

	// Services
	gate := service.NewGate()
	lifecycle := service.NewLifecycleService(store, gate)
	provenance := service.NewProvenanceService(store, gate, extractor)
	audit := service.NewAuditService(store, gate)
	notify := service.NewNotificationService(store, lifecycle, cfg.Scheduler.SchedulerConfig)

	// Scheduled reconciliation
	if _, err := job.StartCronJob(cfg.Scheduler.CronSpec, notify); err != nil {
		log.Fatalf("start cron: %v", err)
	}

	// Web server
	h := handler.NewContractHandler(lifecycle, provenance, audit, notify)
	r := gin.Default()
	router.RegisterRoutes(r, h, cfg.Auth.JWTSecret)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server running on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
