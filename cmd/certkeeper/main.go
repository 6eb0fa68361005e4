// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main contains certkeeper main function to start the
// certificate lifecycle service.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/absmach/certkeeper"
	"github.com/absmach/certkeeper/certs"
	certsapi "github.com/absmach/certkeeper/certs/api"
	"github.com/absmach/certkeeper/certs/pki"
	certspg "github.com/absmach/certkeeper/certs/postgres"
	"github.com/absmach/certkeeper/internal"
	"github.com/absmach/certkeeper/internal/email"
	"github.com/absmach/certkeeper/internal/env"
	pgclient "github.com/absmach/certkeeper/internal/postgres"
	"github.com/absmach/certkeeper/internal/server"
	httpserver "github.com/absmach/certkeeper/internal/server/http"
	"github.com/absmach/certkeeper/monitoring"
	monitoringapi "github.com/absmach/certkeeper/monitoring/api"
	"github.com/absmach/certkeeper/monitoring/notifiers"
	smtpnotifier "github.com/absmach/certkeeper/monitoring/notifiers/smtp"
	webhooknotifier "github.com/absmach/certkeeper/monitoring/notifiers/webhook"
	monitoringpg "github.com/absmach/certkeeper/monitoring/postgres"
	pkglog "github.com/absmach/certkeeper/pkg/logger"
	"github.com/absmach/certkeeper/pkg/ticker"
	"github.com/absmach/certkeeper/pkg/uuid"
	"github.com/absmach/certkeeper/renewals"
	renewalsapi "github.com/absmach/certkeeper/renewals/api"
	renewalspg "github.com/absmach/certkeeper/renewals/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	migrate "github.com/rubenv/sql-migrate"
	"golang.org/x/sync/errgroup"
)

const (
	svcName        = "certkeeper"
	envPrefix      = "CK_"
	envPrefixHTTP  = "CK_HTTP_"
	defDB          = "certkeeper"
	defSvcHTTPPort = "9040"
)

type config struct {
	LogLevel           string        `env:"LOG_LEVEL"                     envDefault:"info"`
	BaseDir            string        `env:"PKI_BASE_DIR"                  envDefault:"./pki"`
	SANDomain          string        `env:"SAN_DOMAIN"                    envDefault:"gridtokenx.local"`
	HSMType            string        `env:"HSM_TYPE"                      envDefault:"software"`
	HSMKeyID           string        `env:"HSM_KEY_ID"                    envDefault:"certkeeper-ca"`
	VaultAddr          string        `env:"VAULT_ADDR"                    envDefault:"http://localhost:8200"`
	VaultToken         string        `env:"VAULT_TOKEN"                   envDefault:""`
	VaultMount         string        `env:"VAULT_MOUNT"                   envDefault:"transit"`
	MonitoringInterval time.Duration `env:"MONITORING_INTERVAL"           envDefault:"4h"`
	ExpiryAlertDays    uint          `env:"MONITORING_EXPIRY_ALERT_DAYS"  envDefault:"30"`
	WebhookURL         string        `env:"WEBHOOK_URL"                   envDefault:""`
	WebhookTimeout     time.Duration `env:"WEBHOOK_TIMEOUT"               envDefault:"10s"`
	EmailTo            []string      `env:"ALERT_EMAIL_TO"                envDefault:""`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	cfg := config{}
	if err := env.Parse(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		log.Fatalf("failed to load %s configuration : %s", svcName, err)
	}

	logger, err := pkglog.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %s", err)
	}

	var exitCode int
	defer func() {
		if exitCode > 0 {
			os.Exit(exitCode)
		}
	}()

	caConfig := pki.Config{}
	if err := env.Parse(&caConfig, env.Options{Prefix: envPrefix}); err != nil {
		logger.Error(fmt.Sprintf("failed to load CA configuration : %s", err))
		exitCode = 1
		return
	}

	agent, err := newAgent(cfg, caConfig)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to init signing backend : %s", err))
		exitCode = 1
		return
	}

	renewalCfg := renewals.Config{}
	if err := env.Parse(&renewalCfg, env.Options{Prefix: envPrefix}); err != nil {
		logger.Error(fmt.Sprintf("failed to load renewal configuration : %s", err))
		exitCode = 1
		return
	}

	migrations := migrate.MemoryMigrationSource{}
	for _, m := range []*migrate.MemoryMigrationSource{certspg.Migration(), renewalspg.Migration(), monitoringpg.Migration()} {
		migrations.Migrations = append(migrations.Migrations, m.Migrations...)
	}

	db, err := pgclient.SetupWithConfig(envPrefix, migrations, pgclient.Config{Name: defDB})
	if err != nil {
		logger.Error(err.Error())
		exitCode = 1
		return
	}
	defer db.Close()

	idp := uuid.New()
	runInfo := make(chan pkglog.RunInfo, 100)

	certsSvc := certs.NewService(certspg.NewRepository(db), agent, cfg.BaseDir, cfg.SANDomain, renewalCfg.ThresholdDays)
	certsSvc = certsapi.LoggingMiddleware(certsSvc, logger)
	counter, latency := internal.MakeMetrics(svcName, "certs")
	certsSvc = certsapi.MetricsMiddleware(certsSvc, counter, latency)

	nfs := []notifiers.Notifier{}
	if cfg.WebhookURL != "" {
		nfs = append(nfs, webhooknotifier.New(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	if len(cfg.EmailTo) > 0 {
		emailConfig := email.Config{}
		if err := env.Parse(&emailConfig, env.Options{Prefix: envPrefix}); err != nil {
			logger.Error(fmt.Sprintf("failed to load email configuration : %s", err))
			exitCode = 1
			return
		}
		emailAgent, err := email.New(&emailConfig)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to init email agent : %s", err))
			exitCode = 1
			return
		}
		nfs = append(nfs, smtpnotifier.New(emailAgent, cfg.EmailTo))
	}

	monitoringSvc := monitoring.New(
		monitoringpg.NewRepository(db),
		certspg.NewRepository(db),
		nfs,
		idp,
		ticker.NewTicker(cfg.MonitoringInterval),
		runInfo,
		cfg.ExpiryAlertDays,
	)
	monitoringSvc = monitoringapi.LoggingMiddleware(monitoringSvc, logger)
	mcounter, mlatency := internal.MakeMetrics(svcName, "monitoring")
	monitoringSvc = monitoringapi.MetricsMiddleware(monitoringSvc, mcounter, mlatency)

	renewalsSvc := renewals.New(
		renewalspg.NewRepository(db),
		certsSvc,
		monitoringSvc,
		idp,
		runInfo,
		renewalCfg,
	)
	renewalsSvc = renewalsapi.LoggingMiddleware(renewalsSvc, logger)
	rcounter, rlatency := internal.MakeMetrics(svcName, "renewals")
	renewalsSvc = renewalsapi.MetricsMiddleware(renewalsSvc, rcounter, rlatency)
	renewalsRunner := renewals.NewRunner(renewalsSvc, ticker.NewTicker(renewalCfg.CheckInterval), ticker.NewTicker(renewalCfg.ProcessInterval))

	httpServerConfig := server.Config{Port: defSvcHTTPPort}
	if err := env.Parse(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err))
		exitCode = 1
		return
	}

	mux := chi.NewRouter()
	mux = certsapi.MakeHandler(mux, certsSvc, logger)
	mux = monitoringapi.MakeHandler(mux, monitoringSvc, logger)
	mux.Get("/health", certkeeper.Health(svcName))
	mux.Handle("/metrics", promhttp.Handler())

	hs := httpserver.New(ctx, cancel, svcName, httpServerConfig, http.Handler(mux), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return monitoringSvc.StartScheduler(ctx)
	})
	g.Go(func() error {
		return renewalsRunner.StartScheduler(ctx)
	})
	g.Go(func() error {
		return renewalsRunner.StartProcessor(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case info := <-runInfo:
				logger.LogAttrs(ctx, info.Level, info.Message, info.Details...)
			}
		}
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service terminated: %s", svcName, err))
	}
}

func newAgent(cfg config, caConfig pki.Config) (pki.Agent, error) {
	switch cfg.HSMType {
	case "vault":
		return pki.NewVaultAgent(cfg.BaseDir, cfg.VaultAddr, cfg.VaultToken, cfg.VaultMount, cfg.HSMKeyID, caConfig)
	default:
		return pki.NewSoftwareAgent(cfg.BaseDir, caConfig)
	}
}
