package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"autobattler/arbiter/internal/arbiter"
	"autobattler/arbiter/internal/auth"
	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/combat"
	configpkg "autobattler/arbiter/internal/config"
	arbitergrpc "autobattler/arbiter/internal/grpc"
	httpapi "autobattler/arbiter/internal/http"
	"autobattler/arbiter/internal/logging"
	"autobattler/arbiter/internal/replay"
	"autobattler/arbiter/internal/roster"
	"autobattler/arbiter/internal/storage"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := configpkg.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logging.ReplaceGlobals(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("arbiter stopped", logging.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// components holds everything run wires together so tests can build it without listeners.
type components struct {
	service *arbiter.Service
	store   *storage.Store
	cleaner *replay.Cleaner
	http    *httpapi.HandlerSet
}

func (c *components) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

func combatOptions(cfg *configpkg.Config) combat.Options {
	opts := combat.DefaultOptions()
	opts.Policy = combat.Policy(cfg.Policy)
	opts.AttackPriority = board.Priority(cfg.AttackPriority)
	opts.Limits = combat.Limits{MaxAttacksPerUnit: cfg.MaxAttacksPerUnit, MaxTotalAttacks: cfg.MaxTotalAttacks}
	return opts
}

func loadCatalog(path string) (*roster.Catalog, error) {
	if path == "" {
		return roster.Default()
	}
	return roster.Load(path)
}

func buildComponents(cfg *configpkg.Config, logger *logging.Logger) (*components, error) {
	//1.- Catalogue and optional store come first; the service depends on both.
	catalog, err := loadCatalog(cfg.RosterPath)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	built := &components{}
	opts := arbiter.Options{
		Combat:    combatOptions(cfg),
		Catalog:   catalog,
		ReplayDir: cfg.ReplayDir,
		Workers:   cfg.Workers,
		Logger:    logger,
	}
	if cfg.StorePath != "" {
		store, err := storage.Open(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open commitment store: %w", err)
		}
		built.store = store
		opts.Store = store
	}
	built.service = arbiter.New(opts)

	//2.- Retention only runs when bundles are persisted.
	var replayStats func() replay.StorageStats
	if cfg.ReplayDir != "" {
		built.cleaner = replay.NewCleaner(cfg.ReplayDir, replay.RetentionPolicy{
			MaxBundles: cfg.ReplayMaxBundles,
			MaxAge:     cfg.ReplayMaxAge,
		}, logger)
		replayStats = built.cleaner.Stats
	}

	var verifier *auth.HMACTokenVerifier
	if cfg.AuthSecret != "" {
		verifier, err = auth.NewHMACTokenVerifier(cfg.AuthSecret, 2*time.Second)
		if err != nil {
			_ = built.Close()
			return nil, fmt.Errorf("auth verifier: %w", err)
		}
	}
	built.http = httpapi.NewHandlerSet(httpapi.Options{
		Logger:          logger,
		Backend:         built.service,
		Verifier:        verifier,
		RateLimiter:     httpapi.NewSlidingWindowLimiter(cfg.RateLimitWindow, cfg.RateLimitBurst, nil),
		ReplayStats:     replayStats,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		BatchLimit:      cfg.BatchLimit,
		AllowedOrigins:  cfg.AllowedOrigins,
		PingInterval:    cfg.PingInterval,
	})
	logger.Info("arbiter configured",
		logging.Int("units", catalog.Len()),
		logging.String("policy", cfg.Policy),
		logging.String("attack_priority", cfg.AttackPriority),
		logging.Bool("store", built.store != nil),
		logging.Bool("replay", cfg.ReplayDir != ""),
		logging.Bool("http_auth", verifier != nil))
	return built, nil
}

func run(ctx context.Context, cfg *configpkg.Config, logger *logging.Logger) error {
	built, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer built.Close()

	if built.cleaner != nil {
		go built.cleaner.Run(ctx, cfg.ReplayCleanInterval)
	}

	errs := make(chan error, 2)
	tlsEnabled := cfg.TLSCertPath != ""

	var httpServer *http.Server
	if cfg.HTTPAddress != "" {
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           built.http.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http listening",
				logging.String("url", listenerURL("http", cfg.HTTPAddress, tlsEnabled)),
				logging.String("stream", listenerURL("ws", cfg.HTTPAddress, tlsEnabled)+"/v1/stream"))
			var serveErr error
			if tlsEnabled {
				serveErr = httpServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			} else {
				serveErr = httpServer.ListenAndServe()
			}
			if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				errs <- fmt.Errorf("http server: %w", serveErr)
			}
		}()
	}

	var grpcServer *grpc.Server
	if cfg.GRPCAddress != "" {
		serverOpts, err := configureGRPCSecurity(cfg, logger)
		if err != nil {
			return err
		}
		listener, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = grpc.NewServer(serverOpts...)
		arbitergrpc.RegisterArbiterServer(grpcServer, arbitergrpc.NewService(built.service))
		go func() {
			logger.Info("grpc listening", logging.String("url", listenerURL("grpc", cfg.GRPCAddress, tlsEnabled)))
			if serveErr := grpcServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
				errs <- fmt.Errorf("grpc server: %w", serveErr)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case runErr = <-errs:
	}

	//3.- Drain both surfaces; in-flight simulations finish before the store closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", logging.Error(err))
		}
	}
	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
	}
	return runErr
}
