package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/rental-billing-worker/internal/allocation"
	"github.com/septivank/rental-billing-worker/internal/anomaly"
	"github.com/septivank/rental-billing-worker/internal/api"
	"github.com/septivank/rental-billing-worker/internal/config"
	"github.com/septivank/rental-billing-worker/internal/db"
	"github.com/septivank/rental-billing-worker/internal/format"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/mq"
	"github.com/septivank/rental-billing-worker/internal/occupancy"
	"github.com/septivank/rental-billing-worker/internal/repository"
	"github.com/septivank/rental-billing-worker/internal/service"
	"github.com/septivank/rental-billing-worker/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	readings *service.ReadingService,
) (*mq.Consumer, error) {
	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.IntakeQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.IntakeExchange,
		RoutingKey:    cfg.RabbitMQ.IntakeRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       readings.ProcessMessage,
	})
	if err != nil {
		return nil, err
	}

	consumer.RegisterLifecycle(lc)
	return consumer, nil
}

func startHTTPServer(lc fx.Lifecycle, h *api.Handler, cfg *config.Config, logger *zap.Logger) *http.Server {
	return api.NewServer(lc, h, cfg.ServicePort, logger)
}

// ProvideDBPool creates the database pool
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideRepository creates the repository
func ProvideRepository(pool *pgxpool.Pool, logger *zap.Logger) *repository.Repository {
	return repository.NewRepository(pool, logger)
}

// ProvideMQConnection creates the RabbitMQ connection
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the events publisher
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	p, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(p.Close))
	return p, nil
}

func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.TimestampToleranceMinutes)
}

func ProvideMeterRegistry(cfg *config.Config) (*meter.Registry, error) {
	return meter.NewRegistry(cfg.Billing.HeatingPattern)
}

func ProvideAllocator(cfg *config.Config) *allocation.Allocator {
	return allocation.NewAllocator(cfg.Billing.Currency)
}

func ProvideMoney(cfg *config.Config) (*format.Money, error) {
	return format.NewMoney(cfg.Billing.Locale, cfg.Billing.Currency)
}

func ProvideResolver(cfg *config.Config) *occupancy.Resolver {
	return occupancy.NewResolver(cfg.Billing.VacantSentinel)
}

func ProvideMeterSyncService(
	repo *repository.Repository,
	registry *meter.Registry,
	publisher *mq.Publisher,
	logger *zap.Logger,
) *service.MeterSyncService {
	return service.NewMeterSyncService(repo, registry, publisher, logger)
}

// ProvideReadingService creates the intake message processor
func ProvideReadingService(
	repo *repository.Repository,
	publisher *mq.Publisher,
	detector *anomaly.Detector,
	v *validator.Validator,
	meterSync *service.MeterSyncService,
	cfg *config.Config,
	logger *zap.Logger,
) *service.ReadingService {
	return service.NewReadingService(repo, publisher, detector, v, meterSync, cfg, logger)
}

func ProvideBillingService(
	repo *repository.Repository,
	registry *meter.Registry,
	allocator *allocation.Allocator,
	money *format.Money,
	cfg *config.Config,
	logger *zap.Logger,
) *service.BillingService {
	return service.NewBillingService(repo, registry, allocator, money, cfg, logger)
}

func ProvideOccupancyService(repo *repository.Repository, resolver *occupancy.Resolver) *service.OccupancyService {
	return service.NewOccupancyService(repo, resolver)
}

// ProvideHandler creates the HTTP handler
func ProvideHandler(
	billing *service.BillingService,
	occ *service.OccupancyService,
	meterSync *service.MeterSyncService,
	logger *zap.Logger,
) *api.Handler {
	return api.NewHandler(billing, occ, meterSync, billing.Money(), logger)
}
