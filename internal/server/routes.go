// Package server exposes the stats service over HTTP.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speedtype/internal/auth"
	"speedtype/internal/config"
	"speedtype/internal/db"
	"speedtype/internal/events"
	"speedtype/internal/memstore"
	"speedtype/internal/metrics"
	"speedtype/internal/mongostore"
	"speedtype/internal/stats"
	"speedtype/internal/wshub"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
)

// New builds a Server around svc. svc may be nil, in which case every
// store-backed route answers 503.
func New(svc *stats.Service, cfg config.Config) *Server {
	s := &Server{
		Stats:      svc,
		Hub:        wshub.NewHub(),
		Metrics:    metrics.New(),
		Limiter:    newIPLimiter(cfg.RateLimitPerMinute),
		CORSOrigin: cfg.CORSOrigin,
	}
	s.probeStore()
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("POST /register", s.rateLimit(s.requireStore(s.handleRegister)))
	mux.HandleFunc("POST /login", s.rateLimit(s.requireStore(s.handleLogin)))
	mux.HandleFunc("POST /results", s.requireStore(s.handleRecordResult))
	mux.HandleFunc("GET /users/{userId}/stats", s.requireStore(s.handleUserStats))
	mux.HandleFunc("GET /leaderboard", s.requireStore(s.handleLeaderboard))
	mux.HandleFunc("GET /ws/leaderboard", s.requireStore(s.handleLeaderboardFeed))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.Metrics.Handler())

	return chain(mux, requestIDMiddleware, s.corsMiddleware, s.metricsMiddleware)
}

// openStore connects the backend named by cfg.StoreDriver and applies its
// migrations.
func openStore(ctx context.Context, cfg config.Config) (stats.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrating: %w", err)
		}
		return database, nil
	case "mongo":
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating: %w", err)
		}
		return store, nil
	case "memory":
		log.Println("[Store] Using in-memory store; data is lost on restart")
		return memstore.New(), nil
	case "":
		return nil, errors.New("no store configured (set DATABASE_URL, MONGO_URI or STORE_DRIVER)")
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func (s *Server) startJobs(interval time.Duration) *gocron.Scheduler {
	sched := gocron.NewScheduler(time.UTC)
	if _, err := sched.Every(interval).Do(s.probeStore); err != nil {
		log.Printf("[Jobs] scheduling health probe: %v\n", err)
	}
	if _, err := sched.Every(10 * time.Minute).Do(s.Limiter.sweep, 10*time.Minute); err != nil {
		log.Printf("[Jobs] scheduling limiter sweep: %v\n", err)
	}
	sched.StartAsync()
	return sched
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] No .env file found, using environment")
	}
	appCfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if appCfg.JWTSecret == "" {
		log.Println("[Config] JWT_SECRET not set, generating a per-process secret")
		appCfg.JWTSecret = randomSecret()
	}

	var svc *stats.Service
	bus := events.NewBus()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := openStore(connectCtx, appCfg)
	cancel()
	if err != nil {
		log.Printf("[Store] %v (running degraded, store routes return 503)\n", err)
	} else {
		defer store.Close()
		svc = stats.NewService(store, auth.NewJWT(appCfg.JWTSecret, appCfg.TokenTTL), auth.NewBcrypt(), bus)
	}

	srv := New(svc, appCfg)
	if svc != nil {
		go srv.leaderboardFeed(ctx, bus)
	}
	sched := srv.startJobs(appCfg.HealthInterval)
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + appCfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Server listening on http://localhost:%s\n", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
