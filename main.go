package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PhilHem/logstore/backend/config"
	"github.com/PhilHem/logstore/backend/database"
	"github.com/PhilHem/logstore/backend/handlers"
	"github.com/PhilHem/logstore/backend/logger"
	"github.com/PhilHem/logstore/backend/middleware"
)

func main() {
	// Load configuration
	if err := config.Load(); err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Initialize session store with configured secret and timeout
	if err := handlers.InitSession(); err != nil {
		log.Fatal("Failed to init session:", err)
	}

	if err := database.Init(config.C.DatabasePath); err != nil {
		log.Fatal("Failed to init database:", err)
	}
	handlers.InitLogs(database.DB)

	// Initialize structured logging
	slog.SetDefault(slog.New(logger.NewDBHandler(handlers.Logs, os.Stdout)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logger.CleanupOldLogs(ctx, handlers.Logs, logger.CleanupConfig{
		Interval:     time.Hour,
		MaxAge:       config.C.Logs.Retention,
		DatabasePath: config.C.DatabasePath,
		MaxDBSize:    config.C.Logs.MaxDBSize,
	})

	slog.Info("server starting", "source", "main", "listen", config.C.Listen, "public_url", config.C.PublicURL)

	// Rate limiter for auth endpoints (10 requests per minute)
	authRateLimiter := middleware.NewRateLimiter(10, time.Minute)
	authRateLimiter.TrustProxy = config.C.TrustProxyHeaders

	csrf := middleware.NewCSRFProtection(config.C.Session.Secret)
	csrf.Secure = config.C.TLS.Enabled
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireLocalAuth(csrf.ProtectFunc(h))
	}

	mux := http.NewServeMux()

	// Health check (unauthenticated, for load balancers)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Admin auth routes (public, rate limited)
	mux.HandleFunc("POST /admin/login", authRateLimiter.LimitFunc(handlers.Login))
	mux.HandleFunc("POST /admin/register", authRateLimiter.LimitFunc(handlers.Register))
	mux.HandleFunc("POST /admin/logout", handlers.Logout)
	mux.HandleFunc("POST /admin/mfa/verify", authRateLimiter.LimitFunc(handlers.MFAVerify))

	// 2FA management (require local auth)
	mux.HandleFunc("POST /admin/mfa/setup", protected(handlers.MFASetup))
	mux.HandleFunc("POST /admin/mfa/enable", protected(handlers.MFAEnable))
	mux.HandleFunc("POST /admin/mfa/disable", protected(handlers.MFADisable))

	// Admin logs API (require local username/password auth)
	mux.HandleFunc("GET /admin/api/logs", protected(handlers.GetLogs))
	mux.HandleFunc("GET /admin/api/logs/timeline", protected(handlers.GetLogTimeline))
	mux.HandleFunc("GET /admin/api/logs/export", protected(handlers.ExportLogs))
	mux.HandleFunc("GET /admin/api/logs/{id}", protected(handlers.GetLog))
	mux.HandleFunc("DELETE /admin/api/logs/{id}", protected(handlers.DeleteLog))
	mux.HandleFunc("DELETE /admin/api/logs", protected(handlers.DeleteLogs))

	// Wrap all routes with security headers and request metadata for logging
	handler := middleware.SecurityHeaders(middleware.RequestInfo(config.C.TrustProxyHeaders, mux))

	srv := &http.Server{
		Addr:              config.C.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("server shutting down", "source", "main")
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Server running at %s (public: %s)\n", config.C.Listen, config.C.PublicURL)
	var err error
	if config.C.TLS.Enabled {
		slog.Info("starting server with TLS", "source", "main")
		err = srv.ListenAndServeTLS(config.C.TLS.Cert, config.C.TLS.Key)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
