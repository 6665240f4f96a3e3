package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/vitalsync/internal/auth"
	"github.com/2beens/vitalsync/internal/config"
	"github.com/2beens/vitalsync/internal/db"
	"github.com/2beens/vitalsync/internal/fitmetrics"
	"github.com/2beens/vitalsync/internal/googlefit"
	"github.com/2beens/vitalsync/internal/insights"
	"github.com/2beens/vitalsync/internal/middleware"
	"github.com/2beens/vitalsync/internal/misc"
	"github.com/2beens/vitalsync/internal/telemetry/metrics"
	"github.com/2beens/vitalsync/internal/telemetry/tracing"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"golang.org/x/oauth2"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string
	startedAt         time.Time

	config *config.Config
	dbPool *pgxpool.Pool

	redisClient  *redis.Client
	authService  *auth.Service
	loginChecker *auth.LoginChecker
	usersRepo    *auth.UsersRepo
	admin        *auth.Admin

	googleOAuthConfig *oauth2.Config

	fitTokensRepo *googlefit.TokensRepo
	fitClient     *googlefit.Client
	fitRepo       *fitmetrics.Repo
	fitSyncer     *fitmetrics.Syncer

	insightsRepo      *insights.Repo
	insightsGenerator *insights.Generator

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	GoogleClientID          string
	GoogleClientSecret      string
	OpenAIApiKey            string
	VersionInfo             string
	AdminUsername           string
	AdminPasswordHash       string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPoolParams := db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	}
	dbPool, err := db.NewDBPool(ctx, dbPoolParams)
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	if err := db.RunMigrations(dbPoolParams.ConnString() + "?sslmode=disable"); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "vitalsync-backend", rdb)
	if err != nil {
		return nil, err
	}

	fitRepo := fitmetrics.NewRepo(dbPool)
	fitTokensRepo := googlefit.NewTokensRepo(dbPool)
	googleOAuthConfig := googlefit.NewOAuthConfig(
		params.GoogleClientID,
		params.GoogleClientSecret,
		params.Config.GoogleFitRedirectURL,
	)
	fitClient := googlefit.NewClient(
		googlefit.NewProvider(googleOAuthConfig, fitTokensRepo),
	)

	insightsRepo := insights.NewRepo(dbPool)
	insightsGenerator := insights.NewGenerator(
		params.OpenAIApiKey,
		params.Config.OpenAIBaseURL,
		fitRepo,
		insightsRepo,
	)

	return &Server{
		config:      params.Config,
		dbPool:      dbPool,
		versionInfo: params.VersionInfo,
		startedAt:   time.Now(),

		redisClient:  rdb,
		authService:  auth.NewService(auth.SessionDefaultTTL, rdb),
		loginChecker: auth.NewLoginChecker(rdb),
		usersRepo:    auth.NewUsersRepo(dbPool),
		admin: &auth.Admin{
			Username:     params.AdminUsername,
			PasswordHash: params.AdminPasswordHash,
		},

		googleOAuthConfig: googleOAuthConfig,

		fitTokensRepo: fitTokensRepo,
		fitClient:     fitClient,
		fitRepo:       fitRepo,
		fitSyncer:     fitmetrics.NewSyncer(fitClient, fitRepo, insightsGenerator, metricsManager),

		insightsRepo:      insightsRepo,
		insightsGenerator: insightsGenerator,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	miscHandler := misc.NewHandler(s.dbPool, s.versionInfo, s.startedAt)
	miscHandler.SetupRoutes(r)

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	authHandler := auth.NewHandler(s.authService, s.usersRepo, s.admin, s.config.BaseURL)
	authHandler.SetupRoutes(r, middleware.RateLimit(
		reqRateLimiter,
		"login",
		s.config.LoginRateLimitAllowedPerMin,
		s.metricsManager,
	))

	googleFitHandler := googlefit.NewHandler(
		s.googleOAuthConfig,
		s.fitTokensRepo,
		s.fitRepo,
		googlefit.GenerateStateString,
	)
	googleFitHandler.SetupRoutes(r)

	fitMetricsHandler := fitmetrics.NewHandler(s.fitSyncer, s.fitRepo)
	fitMetricsHandler.SetupRoutes(r)

	insightsHandler := insights.NewHandler(s.insightsRepo, s.insightsGenerator)
	insightsHandler.SetupRoutes(r)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
