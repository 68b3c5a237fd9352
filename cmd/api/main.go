package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medconnect/telehealth-platform/cmd/mainconfig"
	"github.com/medconnect/telehealth-platform/internal/api/router"
	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/internal/booking"
	"github.com/medconnect/telehealth-platform/internal/calendly"
	"github.com/medconnect/telehealth-platform/internal/chat"
	appconfig "github.com/medconnect/telehealth-platform/internal/config"
	"github.com/medconnect/telehealth-platform/internal/doctors"
	"github.com/medconnect/telehealth-platform/internal/notify"
	"github.com/medconnect/telehealth-platform/internal/observability/metrics"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telehealth-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	appointmentStore := appointments.NewStore(dynamoClient, cfg.AppointmentsTable, logger)
	directory := doctors.NewDirectory(dynamoClient, cfg.UsersTable, logger)

	var avatarStore *doctors.AvatarStore
	if cfg.AvatarBucket != "" {
		presigner := s3.NewPresignClient(s3.NewFromConfig(awsCfg))
		avatarStore = doctors.NewAvatarStore(presigner, cfg.AvatarBucket, cfg.AWSRegion, cfg.AvatarURLExpiry, logger)
	}

	rdb := redis.NewClient(redisOptions(cfg))
	sessionStore := booking.NewSessionStore(rdb, cfg.BookingSessionTTL, logger)

	providerClient := calendly.NewClient(cfg.CalendlyBaseURL, cfg.CalendlyAccessToken, logger)
	if !providerClient.Configured() {
		logger.Warn("calendly access token not configured, bookings will use fallback data")
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)
	reconciler := booking.NewReconciler(providerClient, appointmentStore, bookingMetrics, logger)

	// Confirmations go through SQS when a queue is configured; otherwise an
	// in-process queue with a local worker keeps emails flowing in dev.
	sender := buildEmailSender(cfg, awsCfg, logger)
	var notifier *notify.Publisher
	if cfg.NotifyQueueURL != "" {
		queue := notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL)
		notifier = notify.NewSQSPublisher(queue, logger)
	} else {
		pub, memQueue := notify.NewMemoryPublisher(128, logger)
		notifier = pub
		go notify.NewMemoryWorker(memQueue, sender, logger).Run(context.Background())
	}

	bookingHandler := booking.NewHandler(sessionStore, directory, reconciler, notifier, bookingMetrics, cfg.CalendlyOrigin, logger)
	appointmentsHandler := appointments.NewHandler(appointmentStore, logger)
	doctorsHandler := doctors.NewHandler(directory, avatarStore, logger)

	transcripts := chat.NewTranscriptStore(rdb, logger)
	chatHandler := chat.NewHandler(chat.NewHub(), transcripts, appointmentStore, cfg.CORSAllowedOrigins, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointmentsHandler,
		DoctorsHandler:      doctorsHandler,
		BookingHandler:      bookingHandler,
		ChatHandler:         chatHandler,
		MetricsHandler:      promhttp.Handler(),
		AuthSecret:          cfg.AuthJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func redisOptions(cfg *appconfig.Config) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

func buildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if cfg.EmailProvider == "sendgrid" && cfg.SendGridAPIKey != "" {
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	if cfg.EmailProvider == "ses" && cfg.SESFromEmail != "" {
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	}
	logger.Warn("no email provider configured, confirmations will be logged only")
	return notify.NewStubEmailSender(logger)
}
