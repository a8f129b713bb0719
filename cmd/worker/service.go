package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/s8nclone/receipt-pipeline/internal/fulfillment"
	"github.com/s8nclone/receipt-pipeline/internal/queue"
	"github.com/s8nclone/receipt-pipeline/pkg/config"
	"github.com/s8nclone/receipt-pipeline/pkg/db"
	"github.com/s8nclone/receipt-pipeline/pkg/email/sendgrid"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
	"github.com/s8nclone/receipt-pipeline/pkg/metrics"
	"github.com/s8nclone/receipt-pipeline/pkg/redis"
	"github.com/s8nclone/receipt-pipeline/pkg/storage/gcs"
)

// ServiceParams configure the fulfillment worker: three internal/queue.Worker pools, one per
// stage (§4.3-4.5), sharing a single dependency set.
type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	GCS      *gcs.Client
	Sendgrid *sendgrid.Client
}

type Service struct {
	cfg   *config.Config
	logg  *logger.Logger
	db    *db.Client
	redis *redis.Client
	gcs   *gcs.Client

	workers []*queue.Worker
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.GCS == nil {
		return nil, errors.New("gcs client is required")
	}
	if params.Sendgrid == nil {
		return nil, errors.New("sendgrid client is required")
	}

	s := &Service{
		cfg:   params.Config,
		logg:  params.Logger,
		db:    params.DB,
		redis: params.Redis,
		gcs:   params.GCS,
	}

	fulfillmentRepo := fulfillment.NewRepository(params.DB.DB())
	queueRepo := queue.NewRepository(params.DB.DB())
	queueService := queue.NewService(queueRepo, queue.DefaultOptions(), params.Logger)
	opts := queue.DefaultOptions()
	queueMetrics := metrics.NewQueueJobMetrics(prometheus.DefaultRegisterer)

	bucket := params.GCS.BucketHandle(params.Config.GCS.BucketName)

	renderWorker := fulfillment.NewRenderWorker(fulfillmentRepo, queueService, params.Config.Queue.UploadsDir, params.Logger)
	uploadWorker := fulfillment.NewUploadWorker(fulfillmentRepo, bucket, params.Config.GCS.DownloadURLExpiry, params.Logger)
	emailWorker := fulfillment.NewEmailWorker(fulfillmentRepo, params.Sendgrid, params.Logger)

	s.workers = []*queue.Worker{
		queue.NewWorker(queueRepo, opts[enums.QueueReceiptGeneration], renderWorker.Handle, params.Logger, queueMetrics),
		queue.NewWorker(queueRepo, opts[enums.QueueCloudStorageUpload], uploadWorker.Handle, params.Logger, queueMetrics),
		queue.NewWorker(queueRepo, opts[enums.QueueEmailDelivery], emailWorker.Handle, params.Logger, queueMetrics),
	}

	return s, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "gcs", s.gcs.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or any of the three queue workers stops with an error.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, len(s.workers))
	for _, w := range s.workers {
		worker := w
		go func() {
			errCh <- worker.Run(ctx)
		}()
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	remaining := len(s.workers)
	for remaining > 0 {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			remaining--
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "fulfillment worker pool stopped unexpectedly", err)
				return err
			}
		case <-heartbeat.C:
			s.logg.Info(ctx, "worker.heartbeat")
		}
	}
	return ctx.Err()
}
