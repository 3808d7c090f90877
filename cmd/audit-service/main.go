package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/mediconnect/platform/pkg/audit"
	"github.com/mediconnect/platform/pkg/common/config"
	"github.com/mediconnect/platform/pkg/common/database"
	"github.com/mediconnect/platform/pkg/common/kafka"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/mediconnect/platform/pkg/dlp"
	"github.com/mediconnect/platform/pkg/gateway/middleware"
	"github.com/mediconnect/platform/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

func main() {
	logger.Init("audit-service")
	cfg := config.Load()
	if !cfg.KafkaEnabled() {
		logger.Log.Fatal("KAFKA_BROKERS is required for the audit service")
	}

	redactor := mustRedactor(cfg)
	logger.UseRedactor(redactor)

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres()

	repo := audit.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate audit schema")
	}
	service := audit.NewService(repo, redactor)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaEventsTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumed := make(chan error, 1)
	go func() {
		consumed <- consumer.Consume(ctx, service.HandleEvent)
	}()

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	audit.NewHandler(service).Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.AuditPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"host":  cfg.ServerHost,
			"port":  cfg.AuditPort,
			"topic": cfg.KafkaEventsTopic,
			"group": cfg.KafkaGroupID,
		}).Info("Audit Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-consumed:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("Consumer stopped")
		}
	}

	logger.Log.Info("Shutting down Audit Service...")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Audit Service stopped")
}

func mustRedactor(cfg *config.Config) *dlp.Redactor {
	rules, err := dlp.LoadRules(cfg.RedactionRules)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load redaction rules")
	}
	redactor, err := dlp.NewRedactor(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid redaction rules")
	}
	return redactor
}
