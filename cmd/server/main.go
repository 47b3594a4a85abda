package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/brokerage/internal/auth"
	"github.com/atmx/brokerage/internal/broker"
	"github.com/atmx/brokerage/internal/metrics"
	"github.com/atmx/brokerage/internal/quote"
	"github.com/atmx/brokerage/internal/risk"
	"github.com/atmx/brokerage/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Quote provider ---
	var quotes quote.Provider
	if apiURL := os.Getenv("QUOTE_API_URL"); apiURL != "" {
		quotes = quote.NewHTTPProvider(apiURL, nil)
		slog.Info("using external quote API", "url", apiURL)
	} else {
		slog.Warn("QUOTE_API_URL not set, using built-in static quotes")
		quotes = devQuotes()
	}

	// Wrap with Redis read-through cache if configured.
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		quotes = quote.NewCachedProvider(quotes, rdb, 30*time.Second)
		slog.Info("Redis quote cache enabled")
	}

	// --- Sessions ---
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		slog.Error("SESSION_SECRET is required")
		os.Exit(1)
	}
	sessions := auth.NewSessions([]byte(secret), 24*time.Hour)
	authSvc := auth.NewService(st, sessions)

	// --- Position limits ---
	limiter := risk.NewPositionLimiter(
		envInt64("MAX_SHARES_PER_SYMBOL", 100000),
		envInt64("MAX_TOTAL_SHARES", 1000000),
	)

	// --- WebSocket hub ---
	hub := broker.NewTickerHub()
	go hub.Run()

	// --- Trading service ---
	brokerSvc := broker.NewService(st, quotes, limiter, hub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"brokerage"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Account management (unauthenticated).
		r.Post("/register", authSvc.Register)
		r.Post("/login", authSvc.Login)
		r.Post("/logout", authSvc.Logout)

		// Public trade ticker.
		r.Get("/ws", hub.HandleWS)

		// Everything else requires a session.
		r.Group(func(r chi.Router) {
			r.Use(sessions.RequireUser)

			r.Post("/buy", brokerSvc.HandleBuy)
			r.Post("/sell", brokerSvc.HandleSell)
			r.Get("/quote/{symbol}", brokerSvc.HandleQuote)
			r.Get("/portfolio", brokerSvc.HandlePortfolio)
			r.Get("/history", brokerSvc.HandleHistory)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("brokerage listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down brokerage...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("brokerage stopped")
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Error("invalid value for "+key, "value", v)
		os.Exit(1)
	}
	return n
}
