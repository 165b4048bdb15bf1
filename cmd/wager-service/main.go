package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/wager-ledger-poc/internal/shared/cache"
	"github.com/radieske/wager-ledger-poc/internal/shared/config"
	"github.com/radieske/wager-ledger-poc/internal/shared/db"
	"github.com/radieske/wager-ledger-poc/internal/shared/kafka"
	"github.com/radieske/wager-ledger-poc/internal/shared/logger"
	"github.com/radieske/wager-ledger-poc/internal/shared/metrics"
	wcache "github.com/radieske/wager-ledger-poc/internal/wager-service/cache"
	whttp "github.com/radieske/wager-ledger-poc/internal/wager-service/http"
	"github.com/radieske/wager-ledger-poc/internal/wager-service/producer"
	"github.com/radieske/wager-ledger-poc/internal/wager-service/repo"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("env", cfg.Env))

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if err := repo.EnsureSchema(context.Background(), pg); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	// Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers (wager_created, wager_settled)
	createdWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerCreated)
	defer createdWriter.Close()
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerSettled)
	defer settledWriter.Close()

	// deps
	repository := repo.NewPostgres(pg)
	userCache := wcache.New(rdb)
	publ := producer.NewKafkaPublisher(createdWriter, settledWriter)

	api := whttp.NewServer(log, repository, userCache, publ)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// metrics/health em porta separada
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
