package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"brieflycloud/internal/app"
	"brieflycloud/internal/model"
	"brieflycloud/internal/repository"
)

// IngestWorker consumes sync jobs and pulls the user's provider files
// through the ingest pipeline, a few files at a time.
type IngestWorker struct {
	conn        *amqp.Connection
	service     *app.IngestService
	jobRepo     *repository.IngestJobRepository
	queueName   string
	fileWorkers int
	logger      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, service *app.IngestService, jobRepo *repository.IngestJobRepository, queueName string, fileWorkers int, logger *zap.Logger) *IngestWorker {
	if fileWorkers <= 0 {
		fileWorkers = 3
	}
	return &IngestWorker{
		conn:        conn,
		service:     service,
		jobRepo:     jobRepo,
		queueName:   queueName,
		fileWorkers: fileWorkers,
		logger:      logger,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	// One job at a time per consumer; a sync can run for minutes.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handleDelivery(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var msg app.IngestJobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		w.logger.Error("decode ingest job failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	// Failures are recorded on the job row, so the delivery is acked
	// either way. Requeueing would rerun a job already marked failed.
	w.runJob(ctx, msg)
	_ = d.Ack(false)
}

func (w *IngestWorker) runJob(ctx context.Context, msg app.IngestJobMessage) {
	job, err := w.jobRepo.GetByID(msg.JobID)
	if err != nil {
		w.logger.Error("load ingest job failed", zap.String("job_id", msg.JobID.String()), zap.Error(err))
		return
	}
	if job == nil {
		w.logger.Warn("ingest job not found, dropping", zap.String("job_id", msg.JobID.String()))
		return
	}
	if job.Status != model.JobStatusPending {
		w.logger.Warn("ingest job already handled, dropping",
			zap.String("job_id", job.ID.String()),
			zap.String("status", job.Status))
		return
	}

	files, err := w.service.ListRemoteFiles(ctx, msg.UserID, msg.Source)
	if err != nil {
		w.logger.Error("list provider files failed",
			zap.String("job_id", job.ID.String()),
			zap.String("source", msg.Source),
			zap.Error(err))
		w.finishJob(job.ID, model.JobStatusFailed, fmt.Sprintf("list files: %v", err))
		return
	}

	if err := w.jobRepo.MarkProcessing(job.ID, len(files), time.Now().UTC()); err != nil {
		w.logger.Error("mark job processing failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}

	if len(files) == 0 {
		w.finishJob(job.ID, model.JobStatusCompleted, "")
		return
	}

	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.fileWorkers)
	for _, rf := range files {
		g.Go(func() error {
			chunks, err := w.service.IngestRemoteFile(gctx, msg.UserID, msg.Source, rf)
			if err != nil {
				failed.Add(1)
				w.logger.Warn("ingest file failed",
					zap.String("job_id", job.ID.String()),
					zap.String("file", rf.Name),
					zap.Error(err))
				if perr := w.jobRepo.AddProgress(job.ID, 0, 1, 0); perr != nil {
					w.logger.Error("record job progress failed", zap.String("job_id", job.ID.String()), zap.Error(perr))
				}
				return nil
			}
			succeeded.Add(1)
			if perr := w.jobRepo.AddProgress(job.ID, 1, 0, chunks); perr != nil {
				w.logger.Error("record job progress failed", zap.String("job_id", job.ID.String()), zap.Error(perr))
			}
			return nil
		})
	}
	_ = g.Wait()

	status := model.JobStatusCompleted
	errMsg := ""
	if failed.Load() > 0 {
		errMsg = fmt.Sprintf("%d of %d files failed", failed.Load(), len(files))
		if succeeded.Load() == 0 {
			status = model.JobStatusFailed
		}
	}
	w.finishJob(job.ID, status, errMsg)

	w.logger.Info("ingest job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("status", status),
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()))
}

func (w *IngestWorker) finishJob(id uuid.UUID, status, errMsg string) {
	if err := w.jobRepo.MarkFinished(id, status, errMsg, time.Now().UTC()); err != nil {
		w.logger.Error("mark job finished failed", zap.String("job_id", id.String()), zap.Error(err))
	}
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
