package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"storyverse/internal/ratelimit"
	"storyverse/internal/util"
	"storyverse/pkg/events"
	"storyverse/pkg/payment"
	"storyverse/pkg/storage"
	"storyverse/services/api/internal/app"
	"storyverse/services/api/internal/config"
	"storyverse/services/api/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect event broker: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:          cfg.DatabaseURL,
		JWTSecret:            cfg.JWTSecret,
		SessionTTL:           sessionTTL,
		PaymentSigningSecret: cfg.PaymentSigningSecret,
		Currency:             cfg.Currency,
		Provider:             payment.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		Events:               publisher,
		Objects:              objects,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var authLimiter, orderLimiter server.Limiter
	if cfg.AuthRateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "storyverse:ratelimit:auth", cfg.AuthRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init auth rate limiter: %v", err)
		}
		authLimiter = limiter
	}
	if cfg.OrderRateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "storyverse:ratelimit:order", cfg.OrderRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init order rate limiter: %v", err)
		}
		orderLimiter = limiter
	}

	httpServer := server.New(server.Config{
		App:          appCore,
		AuthLimiter:  authLimiter,
		OrderLimiter: orderLimiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("api server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
