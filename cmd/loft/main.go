package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/loftdocs/loft/pkg/api"
	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/config"
	"github.com/loftdocs/loft/pkg/guard"
	"github.com/loftdocs/loft/pkg/maintenance"
	"github.com/loftdocs/loft/pkg/seed"
	"github.com/loftdocs/loft/pkg/session"
	"github.com/loftdocs/loft/pkg/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	log.SetLevel(cfg.LogLevel)

	st, err := store.New(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer st.Close()

	ctx := context.Background()
	if err := store.RunMigrations(ctx, st.DB(), log); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	catalog, err := seed.LoadCatalog(os.Getenv("LOFT_SEED_CATALOG"))
	if err != nil {
		log.WithError(err).Fatal("failed to load seed catalog")
	}
	if err := seed.Install(ctx, st, catalog, log); err != nil {
		log.WithError(err).Fatal("failed to seed roles and permissions")
	}

	registry := prometheus.NewRegistry()
	checkerOpts := []authz.Option{
		authz.WithLogger(log),
		authz.WithMetrics(authz.NewMetrics(registry)),
		authz.WithBatchLimit(cfg.Authz.BatchLimit),
	}

	switch cfg.Cache.Backend {
	case "memory":
		checkerOpts = append(checkerOpts, authz.WithCache(authz.NewLRUCache(cfg.Cache.Size, cfg.Cache.TTL)))
	case "redis":
		cache, err := authz.NewRedisCache(cfg.Cache.RedisURL, "", cfg.Cache.TTL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer cache.Close()
		checkerOpts = append(checkerOpts, authz.WithCache(cache))
	}

	checker := authz.NewChecker(st, checkerOpts...)

	var auditLogger audit.Logger
	var auditDB *audit.DBLogger
	if cfg.Audit.Backend == "db" {
		auditDB, err = audit.NewDBLogger(st.DB())
		if err != nil {
			log.WithError(err).Fatal("failed to initialize audit log")
		}
		auditLogger = auditDB
	} else {
		auditLogger = audit.NewLogrusLogger(log)
	}

	g := guard.New(st, checker, session.ContextProvider{},
		guard.WithAuditLogger(auditLogger),
		guard.WithLogger(log),
		guard.WithInvitationLimit(cfg.Authz.InvitationLimit),
		guard.WithInvitationTTL(cfg.Authz.InvitationTTL),
	)

	maint := maintenance.New(st, auditDB, cfg.Audit.Retention, log)
	if err := maint.Start(); err != nil {
		log.WithError(err).Fatal("failed to start maintenance scheduler")
	}
	defer maint.Stop()

	tokens := session.NewTokenProvider(st)
	server := api.NewServer(g, checker, st, tokens, auditDB, maint, registry, log)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", addr).Info("starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}
