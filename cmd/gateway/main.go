// The gateway fronts Supabase for the AppMaster client: it verifies access
// tokens, resolves sessions, caches the active organisation, and answers
// route-guard and dashboard queries.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/appmaster-cloud/gateway/internal/admin"
	"github.com/appmaster-cloud/gateway/internal/audit"
	"github.com/appmaster-cloud/gateway/internal/config"
	"github.com/appmaster-cloud/gateway/internal/events"
	"github.com/appmaster-cloud/gateway/internal/httpapi"
	"github.com/appmaster-cloud/gateway/internal/logging"
	"github.com/appmaster-cloud/gateway/internal/metrics"
	"github.com/appmaster-cloud/gateway/internal/middleware"
	"github.com/appmaster-cloud/gateway/internal/prefs"
	"github.com/appmaster-cloud/gateway/internal/session"
	"github.com/appmaster-cloud/gateway/internal/tenant"
	supa "github.com/appmaster-cloud/gateway/supabase/client"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New("gateway", cfg.LogLevel, cfg.LogFormat)
	logger.WithField("addr", cfg.ListenAddr).Info("starting gateway")

	supaClient, err := supa.New(supa.Config{
		URL:        cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		ServiceKey: cfg.SupabaseService,
	})
	if err != nil {
		logger.WithError(err).Error("supabase client init failed")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, continuing without it")
			redisClient = nil
		}
		cancel()
	}

	auditSink, err := audit.NewFileSink(cfg.AuditFilePath)
	if err != nil {
		logger.WithError(err).Error("audit sink init failed")
		os.Exit(1)
	}
	auditLog := audit.NewLog(500, auditSink)

	var tenantCache tenant.Cache
	var prefStore prefs.Store = prefs.NewMemoryStore()
	if redisClient != nil {
		tenantCache = tenant.NewRedisCache(redisClient)
		prefStore = prefs.NewRedisStore(redisClient)
	}

	tenantSource := tenant.NewSupabaseSource(supaClient)
	tenants := tenant.NewContext(tenantSource, tenantCache, cfg.TenantCacheTTL, logger)

	sessions := session.NewStore()
	directory := session.NewSupabaseDirectory(supaClient)
	resolver := session.NewResolver(sessions, directory, tenants, logger)

	hub := events.NewHub()
	defer hub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go resolver.Run(ctx, hub)

	if cfg.RealtimeEnabled {
		startRealtime(ctx, cfg, tenants, sessions, hub, logger)
	}

	adminSvc := admin.NewService(supaClient, auditLog, logger)
	sweeper := admin.NewSweeper(supaClient, auditLog, logger)
	if err := sweeper.Start(cfg.OrphanSweepSpec); err != nil {
		logger.WithError(err).Error("orphan sweeper init failed")
		os.Exit(1)
	}
	defer sweeper.Stop()

	server := httpapi.NewServer(httpapi.Options{
		Logger:   logger,
		Hub:      hub,
		Sessions: sessions,
		Tenants:  tenants,
		Tools:    tenantSource,
		Catalog:  config.LoadToolsConfigOrDefault(cfg.ToolsConfigPath),
		Prefs:    prefStore,
		Admin:    adminSvc,
		Audit:    auditLog,
	})

	router := mux.NewRouter()
	server.Routes(router)

	authMW := middleware.NewAuthMiddleware(cfg.SupabaseJWTKey, supaClient.Auth(), logger,
		[]string{"/healthz", "/metrics"})
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst, logger)
	limiterStop := make(chan struct{})
	rateLimiter.StartCleanup(10*time.Minute, limiterStop)
	defer close(limiterStop)

	var handler http.Handler = router
	handler = rateLimiter.Handler(handler)
	handler = authMW.Handler(handler)
	handler = middleware.NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = middleware.NewTracingMiddleware(logger).Handler(handler)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown incomplete")
	}
	_ = auditSink.Close()
	logger.Info("gateway stopped")
}

// startRealtime subscribes to admin and organisation table changes so cached
// state never outlives an upstream edit by more than the websocket latency.
func startRealtime(ctx context.Context, cfg *config.Config, tenants *tenant.Context,
	sessions *session.Store, hub *events.Hub, logger *logging.Logger) {
	rt := supa.NewRealtime(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	rt.OnDisconnect = func(err error) {
		// The tenant TTL still bounds staleness, but operators should know
		// invalidation went passive.
		logger.WithError(err).Error("realtime connection lost, reconnects exhausted, cache invalidation disabled")
	}
	if err := rt.Connect(ctx); err != nil {
		logger.WithError(err).Warn("realtime connect failed, cache invalidation disabled")
		return
	}

	cancelOrgs, err := rt.WatchTable(ctx, "organisations", func(event *supa.ChangeEvent) {
		logger.WithField("event", event.Event).Debug("organisation change, invalidating tenant cache")
		tenants.Invalidate()
	})
	if err != nil {
		logger.WithError(err).Warn("organisations watch failed")
	}

	cancelAdmins, err := rt.WatchTable(ctx, "appmaster_admins", func(event *supa.ChangeEvent) {
		// Admin grants changed; re-resolve the current session so the
		// super-admin classification catches up.
		id := sessions.Identity()
		if id == "" {
			return
		}
		sess := sessions.Session()
		email := ""
		if sess != nil {
			email = sess.Email
		}
		hub.Publish(events.AuthEvent{Kind: events.TokenRefreshed, UserID: id, Email: email})
	})
	if err != nil {
		logger.WithError(err).Warn("appmaster_admins watch failed")
	}

	go func() {
		<-ctx.Done()
		if cancelOrgs != nil {
			cancelOrgs()
		}
		if cancelAdmins != nil {
			cancelAdmins()
		}
		_ = rt.Close()
	}()
}
