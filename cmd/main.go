/**
 * @description
 * This is the main entry point for the portal-service. It wires the banking API
 * client, the session and remember-me stores, the audit event producer and the
 * scheduled jobs into the web router, then serves until a termination signal.
 *
 * Key features:
 * - Loads application configuration from environment variables.
 * - Uses redis for session state and login rate limiting when configured.
 * - Uses PostgreSQL for remember-me credentials when configured.
 * - Falls back to in-memory stores so the portal runs without either.
 * - Implements graceful shutdown.
 *
 * @dependencies
 * - pgxpool for the database, go-redis for sessions, godotenv for local config,
 *   and rabbitmq for audit events.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/transfa/portal-service/internal/api"
	"github.com/transfa/portal-service/internal/app"
	"github.com/transfa/portal-service/internal/config"
	"github.com/transfa/portal-service/internal/store"
	"github.com/transfa/portal-service/pkg/bankclient"
	"github.com/transfa/portal-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"cannot load config\" err=%v", err)
	}

	// Money is sent to the banking API as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	bank := bankclient.NewClient(cfg.BankAPIBaseURL,
		bankclient.WithTimeout(cfg.RequestTimeout),
		bankclient.WithFormEncoding(cfg.BankAPIFormEncoded),
	)
	log.Printf("level=info component=bootstrap msg=\"banking api client configured\" base_url=%s form_encoded=%t", bank.BaseURL(), cfg.BankAPIFormEncoded)

	// Session state lives in redis when available. Stored sessions expire once
	// the idle timeout and its grace period have both passed without activity.
	sessionLifetime := cfg.SessionIdleTimeout + cfg.SessionGracePeriod
	var sessions store.SessionStore = store.NewMemorySessionStore(sessionLifetime)
	var limiter app.RateLimiter
	if redisClient := connectRedis(cfg.RedisURL); redisClient != nil {
		defer redisClient.Close()
		sessions = store.NewRedisSessionStore(redisClient, cfg.RedisKeyPrefix, sessionLifetime)
		if cfg.LoginRateLimitPerMinute > 0 {
			limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisKeyPrefix)
		}
	} else {
		log.Println("level=warn component=bootstrap msg=\"redis unavailable; using in-memory sessions and no login rate limit\"")
	}

	// Remember-me credentials live in PostgreSQL when available.
	var rememberStore store.RememberStore = store.NewMemoryRememberStore()
	if dbpool := connectPostgres(cfg.DatabaseURL); dbpool != nil {
		defer dbpool.Close()
		repo := store.NewPostgresRememberRepository(dbpool)
		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.EnsureSchema(schemaCtx); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"remember-me schema setup failed; using in-memory store\" err=%v", err)
		} else {
			rememberStore = repo
		}
		cancel()
	} else {
		log.Println("level=warn component=bootstrap msg=\"database unavailable; remember-me credentials are kept in memory\"")
	}

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; audit events disabled\" env=RABBITMQ_URL")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq connect failed; audit events disabled\" err=%v", err)
	} else {
		defer producer.Close()
		publisher = producer
		log.Printf("level=info component=bootstrap msg=\"rabbitmq producer ready\" exchange=%s", cfg.EventsExchange)
	}

	remember := app.NewRememberManager(rememberStore, cfg.RememberMeTTL(), nil)
	sessionController := app.NewSessionController(bank, sessions, remember, publisher, nil, app.SessionOptions{
		IdleTimeout:             cfg.SessionIdleTimeout,
		GracePeriod:             cfg.SessionGracePeriod,
		LoginRateLimitPerMinute: cfg.LoginRateLimitPerMinute,
	})
	if limiter != nil {
		sessionController.SetRateLimiter(limiter)
	}
	accountViews := app.NewAccountViews(bank, sessions, bankclient.RetryPolicy{
		MaxRetries:   cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
	})
	transferWorkflow := app.NewTransferWorkflow(bank, sessions, publisher, nil, app.TransferOptions{
		ShowDemoOTP: cfg.ShowDemoOTP,
	})

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	jobs := app.NewJobs(remember, bank, logger)
	scheduler := app.NewScheduler(jobs, logger, app.SchedulerConfig{
		RememberCleanupSchedule: cfg.RememberCleanupSchedule,
		HealthProbeSchedule:     cfg.HealthProbeSchedule,
	})
	scheduler.Start()

	html, err := api.NewHTMLPresenter()
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"cannot parse page templates\" err=%v", err)
	}

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Cookies:        api.CookieSettings{Secure: cfg.SessionCookieSecure},
		Tokens:         api.NewSessionTokens(cfg.SessionSecret),
	}, api.Services{
		Sessions:  sessionController,
		Accounts:  accountViews,
		Transfers: transferWorkflow,
		Health:    jobs,
	}, html)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=bootstrap msg=\"starting http server\" port=%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=bootstrap msg=\"could not start server\" err=%v", err)
		}
	}()

	// Wait for termination signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("level=info component=bootstrap msg=\"shutting down portal-service\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-scheduler.Stop().Done()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=bootstrap msg=\"server shutdown failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"portal-service stopped\"")
}

func connectRedis(rawURL string) *redis.Client {
	if strings.TrimSpace(rawURL) == "" {
		return nil
	}
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed\" err=%v", err)
		return nil
	}
	client := redis.NewClient(options)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed\" err=%v", err)
		client.Close()
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}

func connectPostgres(databaseURL string) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	dbConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"database url parse failed\" err=%v", err)
		return nil
	}
	dbConfig.MaxConns = 10
	dbConfig.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"database connect failed\" err=%v", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"database ping failed\" err=%v", err)
		pool.Close()
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"database connection established\"")
	return pool
}
