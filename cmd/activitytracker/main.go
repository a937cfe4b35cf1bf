package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/2beens/activitytracker/internal"
	"github.com/2beens/activitytracker/internal/config"
	"github.com/2beens/activitytracker/internal/logging"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "activitytracker",
	})

	log.Debugf("using postgres: [%s:%s/%s]", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)
	log.Debugf("using logs path: [%s]", cfg.LogsPath)

	if cfg.TracingEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := internal.NewServer(ctx, internal.NewServerParams{
		Config:      cfg,
		ServiceName: "activitytracker",
	})
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	if err := server.Migrate(); err != nil {
		server.GracefulShutdown()
		log.Fatalf("migrate: %s", err)
	}

	server.Serve()

	demoDone := make(chan error, 1)
	go func() {
		_, err := internal.RunDemo(ctx, server.Store())
		demoDone <- err
	}()

	select {
	case err := <-demoDone:
		if err != nil {
			log.Errorf("demo run failed: %s", err)
		} else {
			log.Infoln("demo run done")
		}
		if cfg.MetricsPort != 0 {
			// keep the metrics endpoint up until interrupted
			receivedSig := <-chOsInterrupt
			log.Warnf("signal [%s] received, killing everything ...", receivedSig)
		}
	case receivedSig := <-chOsInterrupt:
		log.Warnf("signal [%s] received, killing everything ...", receivedSig)
		cancel()
		<-demoDone
	}

	// go to sleep 🥱
	server.GracefulShutdown()
}
