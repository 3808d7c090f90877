package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediconnect/platform/pkg/common/config"
	"github.com/mediconnect/platform/pkg/common/database"
	"github.com/mediconnect/platform/pkg/common/kafka"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/mediconnect/platform/pkg/consultation"
	"github.com/mediconnect/platform/pkg/dlp"
	"github.com/mediconnect/platform/pkg/gateway/auth"
	"github.com/mediconnect/platform/pkg/gateway/middleware"
	"github.com/mediconnect/platform/pkg/gateway/routes"
	"github.com/mediconnect/platform/pkg/identity"
	"github.com/mediconnect/platform/pkg/prescription"
	"github.com/mediconnect/platform/pkg/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	logger.Init("api-server")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Log.WithError(err).Fatal("Invalid configuration")
	}

	logger.UseRedactor(mustRedactor(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres()

	identityRepo := identity.NewRepository(db)
	consultationRepo := consultation.NewRepository(db)
	prescriptionRepo := prescription.NewRepository(db)
	for name, migrate := range map[string]func() error{
		"identity":     identityRepo.AutoMigrate,
		"consultation": consultationRepo.AutoMigrate,
		"prescription": prescriptionRepo.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).WithField("repository", name).Fatal("Failed to migrate schema")
		}
	}

	var directory identity.DirectoryCache
	if client := database.GetRedis(cfg); client != nil {
		directory = storage.NewDirectoryCache(client, cfg.DirectoryCacheTTL)
		defer database.CloseRedis()
	}

	var events kafka.Publisher = kafka.NopPublisher{}
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaEventsTopic)
		defer producer.Close()
		events = kafka.WithTimeout(producer, cfg.KafkaPublishTimeout)
	} else {
		logger.Log.Info("KAFKA_BROKERS not set, domain events disabled")
	}

	documents, err := storage.NewPrescriptionStore(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialise prescription storage")
	}
	uploads, err := storage.NewLocalStore(cfg.UploadsDir, "/uploads")
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialise uploads directory")
	}

	tmpl := prescription.DefaultTemplate()
	if cfg.PrescriptionTemplate != "" {
		if tmpl, err = prescription.LoadTemplate(cfg.PrescriptionTemplate); err != nil {
			logger.Log.WithError(err).Fatal("Failed to load prescription template")
		}
	}
	renderer, err := prescription.NewPDFRenderer(tmpl)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid prescription template")
	}

	tokens, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialise token issuer")
	}

	identitySvc := identity.NewService(identityRepo, directory, events)
	handler := routes.NewRouter(routes.Dependencies{
		Identity:       identitySvc,
		Consultations:  consultation.NewService(consultationRepo, identitySvc, events),
		Prescriptions:  prescription.NewService(prescriptionRepo, consultationRepo, renderer, documents, events),
		Tokens:         tokens,
		Uploads:        uploads,
		UploadsDir:     cfg.UploadsDir,
		AuthLimiter:    middleware.NewRateLimiter(ctx, cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst),
		CORSOrigins:    cfg.CORSOrigins,
		MaxRequestBody: cfg.MaxRequestBody,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"storage": cfg.StorageDriver,
			"cache":   directory != nil,
			"events":  cfg.KafkaEnabled(),
		}).Info("MediConnect API started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down MediConnect API...")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("MediConnect API stopped")
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
