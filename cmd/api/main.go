package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"chreosis/internal/interfaces/scheduler"
	"chreosis/internal/shared/config"
	"chreosis/internal/shared/logger"
	"chreosis/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Application error")
	}
}

func run() error {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Setup(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.Telemetry.ServiceName,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Server.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
			SampleRatio:  cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				log.Error().Err(err).Msg("Telemetry shutdown failed")
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	deps.Pool.Start()
	deps.BalanceListener.Start(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled && deps.MailboxService != nil {
		sched, err = scheduler.NewScheduler(deps.Pool, scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider:   scheduler.WatchRenewalProvider(deps.MailboxService, cfg.Scheduler.WatchRenewal),
		})
		if err != nil {
			return err
		}
		sched.Start()
		log.Info().Time("next_run", sched.NextRun()).Msg("Watch renewal scheduled")
	}

	handler := SetupRoutes(deps, cfg)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	GracefulShutdown(srv, redirectSrv, Background{
		Scheduler: sched,
		Pool:      deps.Pool,
		Listener:  deps.BalanceListener,
	}, shutdownTimeout)
	return nil
}
