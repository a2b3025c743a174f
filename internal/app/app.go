package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fxcalc/internal/adapters"
	"fxcalc/internal/adapters/cache"
	"fxcalc/internal/adapters/filefeed"
	"fxcalc/internal/adapters/httpclient"
	"fxcalc/internal/adapters/logsink"
	"fxcalc/internal/adapters/postgres"
	"fxcalc/internal/adapters/redisbus"
	"fxcalc/internal/api"
	"fxcalc/internal/api/handler"
	"fxcalc/internal/config"
	"fxcalc/internal/conversion"
	"fxcalc/internal/domain"
	"fxcalc/internal/platform/db"
	httpserver "fxcalc/internal/platform/http"
	"fxcalc/internal/rate"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run wires the application components and blocks until shutdown.
func Run() error {
	appCfg, err := config.Init()
	if err != nil {
		return err
	}
	// Logger
	logrus.SetOutput(os.Stdout)
	if parsedLvl, parseErr := logrus.ParseLevel(appCfg.Logging.Level); parseErr != nil {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(parsedLvl)
	}
	logrus.Info("✅ Config initialization successful")

	// Root context bound to OS signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bounded context for startup operations (DB connect, migrations, warm start)
	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pivot := domain.NormalizeCode(appCfg.Conversion.PivotCurrency)

	// Snapshot archive (optional)
	var archive adapters.SnapshotArchive
	if appCfg.DbServer.Enabled() {
		pool, dbErr := db.CreatePoolAndPing(startupCtx, appCfg.DbServer)
		if dbErr != nil {
			logrus.WithError(dbErr).Error("Error connecting to db")
			return dbErr
		}
		defer pool.Close()
		if dbErr = db.Migrate(startupCtx, pool); dbErr != nil {
			logrus.WithError(dbErr).Error("Error migrating db")
			return dbErr
		}
		archive = postgres.NewSnapshotArchive(pool)
		logrus.Info("✅ Postgres connection successful")
	}

	// Message bus (optional)
	var egress adapters.Egress = logsink.Egress{}
	var (
		changes adapters.RateChangePublisher
		rdb     *redis.Client
	)
	if appCfg.Redis.Enabled() {
		var redisErr error
		rdb, redisErr = redisbus.NewClient(startupCtx, appCfg.Redis)
		if redisErr != nil {
			logrus.WithError(redisErr).Error("Error connecting to redis")
			return redisErr
		}
		defer func() { _ = rdb.Close() }()
		egress = redisbus.NewEgress(rdb, appCfg.Redis.ResultChannel)
		if appCfg.Redis.RateChangeChannel != "" {
			changes = redisbus.NewRateChangePublisher(rdb, appCfg.Redis.RateChangeChannel)
		}
		logrus.Info("✅ Redis connection successful")
	}

	// Rate feed
	var feed adapters.RateFeed
	switch appCfg.Importer.Source {
	case config.SourceFile:
		feed = filefeed.NewCSVFeed(appCfg.Importer.FilePath)
	default:
		httpTimeout := time.Duration(appCfg.HTTPClient.TimeoutSeconds) * time.Second
		feed = httpclient.NewExchangeRateFeed(
			&http.Client{Timeout: httpTimeout},
			strings.TrimSuffix(appCfg.FeedURL(), "/"),
			pivot,
		)
	}

	// Rate cache
	repo := rate.NewRepository()
	importer := rate.NewImporter(repo, pivot)
	rateService := rate.NewService(repo, importer, feed, archive, changes)
	if warmErr := rateService.WarmStart(startupCtx); warmErr != nil {
		logrus.WithError(warmErr).Warn("Warm start failed, waiting for the first import")
	}

	// Conversion pipeline
	results, err := cache.NewResultCache(appCfg.Conversion.DedupWindow, appCfg.Conversion.DedupTTL())
	if err != nil {
		return err
	}
	defer results.Close()

	workers := conversion.NewPool(conversion.Config{
		Workers:        appCfg.Conversion.Workers,
		QueueCapacity:  appCfg.Conversion.QueueCapacity,
		RequestTimeout: appCfg.Conversion.RequestTimeout(),
	}, conversion.NewPipeline(rateService, appCfg.Conversion.Precision), results, egress)
	workers.Start(ctx)
	// Drain the pool before the bus and the cache close
	defer workers.Close()

	scheduler := rate.NewScheduler(rateService, appCfg.Importer.Interval())
	defer func() {
		if shutDownErr := scheduler.Shutdown(); shutDownErr != nil {
			logrus.Errorf("Scheduler shutdown error: %v", shutDownErr)
		}
	}()
	if startErr := scheduler.Start(ctx); startErr != nil {
		logrus.WithError(startErr).Error("Failed to start scheduler")
		return startErr
	}
	logrus.Info("✅ Scheduler activation successful")

	router := api.NewRouter(handler.NewHandler(rateService, workers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Serve(gctx, appCfg.HTTPServer, router)
	})
	if rdb != nil {
		cfg := appCfg.Redis
		ingress := redisbus.NewIngress(rdb, cfg.RequestStream, cfg.ConsumerGroup, cfg.ConsumerName, workers)
		g.Go(func() error {
			return ingress.Run(gctx)
		})
	}

	if runErr := g.Wait(); runErr != nil {
		stop()
		logrus.Errorf("Service error: %v", runErr)
		return runErr
	}
	return nil
}
