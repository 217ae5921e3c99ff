// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/badge"
	"github.com/luxfi/badge/attest"
	"github.com/luxfi/badge/config"
	"github.com/luxfi/badge/registry"
	"github.com/luxfi/badge/registry/gormstore"
	"github.com/luxfi/badge/service"
	"github.com/luxfi/badge/utils"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var version = "v0.0.0-dev"

const dbConnectTimeout = 30 * time.Second

func main() {
	cfg := buildConfig()

	logLevel, err := log.ToLevel(cfg.LogLevel)
	if err != nil {
		stdlog.Fatalf("error reading log level from config: %s", err)
	}
	logger := log.NewLogger(
		"badged",
		*log.NewWrappedCore(logLevel, os.Stdout, log.JSON.ConsoleEncoder()),
	)

	logger.Info("initializing badge registry daemon",
		log.String("version", version),
		log.String("config", cfg.DebugString()),
	)

	voterIDs, err := cfg.ParseVoters()
	if err != nil {
		logger.Fatal("failed to parse voters", log.Err(err))
		os.Exit(1)
	}
	var voterSetOpts []badge.VoterSetOption
	if cfg.RejectDuplicateVoters {
		voterSetOpts = append(voterSetOpts, badge.WithRejectDuplicates())
	}
	voterSet, err := badge.NewVoterSet(voterIDs, voterSetOpts...)
	if err != nil {
		logger.Fatal("failed to build voter set", log.Err(err))
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	metrics := service.NewMetrics(promRegistry)

	events := badge.NewAcceptorGroup()
	events.RegisterAcceptor("metrics", metrics.Acceptor())

	registryOpts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithAcceptorGroup(events),
	}
	if cfg.BadgeURIPrefix != "" {
		prefix := cfg.BadgeURIPrefix
		registryOpts = append(registryOpts, registry.WithLocator(
			func(tokenID badge.TokenID, _ ids.ShortID) string {
				return fmt.Sprintf("%s/%d", prefix, tokenID)
			},
		))
	}
	if cfg.DatabaseURL != "" {
		store, err := openStore(logger, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to open badge store", log.Err(err))
			os.Exit(1)
		}
		registryOpts = append(registryOpts, registry.WithStore(store))
	}

	ledger, err := registry.New(registryOpts...)
	if err != nil {
		logger.Fatal("failed to initialize badge ledger", log.Err(err))
		os.Exit(1)
	}

	consensus := badge.NewConsensus(
		voterSet,
		ledger,
		badge.WithLogger(logger),
		badge.WithAcceptorGroup(events),
	)

	serverOpts := []service.ServerOption{}
	if cfg.RequireAttestation {
		voterKeys, err := cfg.LoadVoterKeys()
		if err != nil {
			logger.Fatal("failed to load voter keys", log.Err(err))
			os.Exit(1)
		}
		ring, err := attest.NewKeyRing(voterKeys)
		if err != nil {
			logger.Fatal("failed to build voter key ring", log.Err(err))
			os.Exit(1)
		}
		serverOpts = append(serverOpts, service.WithKeyRing(ring))
	}

	apiServer, err := service.NewServer(logger, metrics, consensus, ledger, cfg.BadgeCacheSize, serverOpts...)
	if err != nil {
		logger.Fatal("failed to create API server", log.Err(err))
		os.Exit(1)
	}

	apiMux := http.NewServeMux()
	apiServer.RegisterRoutes(apiMux)
	service.HandleHealthCheck(apiMux, func(context.Context) error { return nil })

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: apiMux,
	}
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving badge registry API", log.Uint16("port", cfg.APIPort))
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("serving metrics", log.Uint16("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = api.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("daemon exited with error", log.Err(err))
		os.Exit(1)
	}
	logger.Info("daemon stopped")
}

// openStore connects to postgres with retries and runs migrations
func openStore(logger log.Logger, dsn string) (*gormstore.Store, error) {
	var db *gorm.DB
	err := utils.WithRetriesTimeout(logger, func() error {
		var err error
		db, err = gormstore.Open(dsn)
		return err
	}, dbConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return gormstore.New(db)
}

func buildConfig() config.Config {
	fs := pflag.NewFlagSet("badged", pflag.ExitOnError)
	fs.String(config.ConfigFileKey, "", "Path to the JSON configuration file")
	fs.Bool(config.VersionKey, false, "Print the version and exit")
	fs.String(config.LogLevelKey, "", "Log level")
	fs.Uint16(config.APIPortKey, 0, "Port for the registry API")
	fs.Uint16(config.MetricsPortKey, 0, "Port for the metrics endpoint")
	fs.String(config.DatabaseURLKey, "", "Postgres URL for badge persistence")
	fs.StringSlice(config.VotersKey, nil, "Ordered voter identities")
	fs.Bool(config.RejectDuplicateVotersKey, false, "Reject duplicate voter identities at startup")
	fs.String(config.VoterKeysFileKey, "", "Path to the voter public key file")
	fs.Bool(config.RequireAttestationKey, false, "Require BLS attestations on approvals")
	fs.Int(config.BadgeCacheSizeKey, 0, "Badge read cache capacity")
	fs.String(config.BadgeURIPrefixKey, "", "Prefix for badge content locators")
	if err := fs.Parse(os.Args[1:]); err != nil {
		stdlog.Fatalf("error parsing flags: %s", err)
	}

	if v, _ := fs.GetBool(config.VersionKey); v {
		fmt.Println(version)
		os.Exit(0)
	}

	v, err := config.BuildViper(fs)
	if err != nil {
		stdlog.Fatalf("error building viper instance: %s", err)
	}
	cfg, err := config.NewConfig(v)
	if err != nil {
		stdlog.Fatalf("error building config: %s", err)
	}
	return cfg
}
