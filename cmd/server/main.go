package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/org/jitaccess/internal/api"
	"github.com/org/jitaccess/internal/audit"
	"github.com/org/jitaccess/internal/catalog"
	"github.com/org/jitaccess/internal/config"
	"github.com/org/jitaccess/internal/deferral"
	"github.com/org/jitaccess/internal/envcache"
	"github.com/org/jitaccess/internal/idp"
	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/internal/policydoc"
	"github.com/org/jitaccess/internal/provisioner"
	"github.com/org/jitaccess/internal/resourcemanager"
	"github.com/org/jitaccess/internal/subject"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrapLogger := zerolog.New(os.Stderr)
		bootstrapLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := logging.New(os.Stdout, level, "jitaccess")

	idpClient := idp.NewMemoryClient()
	rmClient := resourcemanager.NewMemoryClient()

	mapping := subject.NewGroupMapping("jit-")

	loader := policydoc.NewEnvLoader(cfg.Resource.Environments, policydoc.NewFileStore())
	cache := envcache.New(loader, cfg.Resource.CacheTimeout, logger)

	prov := provisioner.New(idpClient, rmClient, mapping, cfg.Resource.Domain, logger)
	cat := catalog.New(cache, prov)

	resolver := subject.NewResolver(idpClient, mapping, cfg.SubjectResolverPool, logger)

	signer := deferral.NewJWTSigner([]byte(cfg.DeferralSigningKey))
	deferralSvc := deferral.New(signer, cfg.DeferralTTL)

	auditSink := audit.NewLogger(logger)
	srv := api.NewServer(cat, resolver, deferralSvc, prov, idpClient, auditSink, logger, api.Config{ListenAddr: cfg.ListenAddr})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started", logging.Field("addr", cfg.ListenAddr))
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", err)
	}
	logger.Info("server stopped")
}
