package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/activitytracker/internal/activity"
	"github.com/2beens/activitytracker/internal/config"
	"github.com/2beens/activitytracker/internal/db"
	"github.com/2beens/activitytracker/internal/middleware"
	"github.com/2beens/activitytracker/internal/telemetry/metrics"
	"github.com/2beens/activitytracker/internal/telemetry/tracing"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	config *config.Config

	dbPool   *pgxpool.Pool
	migrator *db.Migrator
	store    *activity.Store

	metricsHttpServer *http.Server

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config      *config.Config
	ServiceName string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.Config.TracingEnabled, params.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}

	dbParams := db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		DBUser:         params.Config.PostgresUser,
		DBPassword:     params.Config.PostgresPassword,
		SSLMode:        params.Config.PostgresSSLMode,
		TracingEnabled: params.Config.TracingEnabled,
	}
	dbPool, err := db.NewDBPool(ctx, dbParams)
	if err != nil {
		otelShutdown()
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("activitytracker", "store", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	return &Server{
		config:         params.Config,
		dbPool:         dbPool,
		migrator:       db.NewMigrator(dbParams),
		store:          activity.NewStore(dbPool, metricsManager),
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) Store() *activity.Store {
	return s.store
}

// Migrate brings the schema to the latest version, wiping the database
// first when configured to.
func (s *Server) Migrate() error {
	if s.config.CleanBeforeMigrate {
		log.Warnln("cleaning the database before migrating")
		if err := s.migrator.CleanAndMigrate(); err != nil {
			return fmt.Errorf("clean and migrate: %w", err)
		}
	} else if err := s.migrator.Up(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	version, dirty, err := s.migrator.Version()
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	log.Infof("schema at version %d (dirty: %t)", version, dirty)
	return nil
}

// Serve starts the metrics endpoint. A zero metrics port disables it.
func (s *Server) Serve() {
	s.metricsManager.GaugeLifeSignal.Set(1)

	if s.config.MetricsPort == 0 {
		log.Debugln("metrics endpoint disabled")
		return
	}

	metricsAddr := net.JoinHostPort(s.config.MetricsHost, strconv.Itoa(s.config.MetricsPort))
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter(s.promRegistry, s.metricsManager),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics service, listen and serve: %s", err)
		}
	}()
}

func metricsRouter(reg *prometheus.Registry, metricsManager *metrics.Manager) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Use(middleware.PanicRecovery(metricsManager))
	return r
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}
