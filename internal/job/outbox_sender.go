package job

import (
	"context"
	"sync"
	"time"

	"itemsim/internal/config"
	"itemsim/internal/metrics"
	"itemsim/internal/model"
	"itemsim/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Publisher is the slice of the Kafka publisher the sender needs.
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender polls PENDING outbox rows and publishes them in id order.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	log        *zap.Logger
	interval   time.Duration
	batchSize  int
	maxRetry   int
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, cfg *config.Config, log *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		log:        log.Named("outbox_sender"),
		interval:   cfg.Jobs.OutboxInterval,
		batchSize:  cfg.Jobs.OutboxBatchSize,
		maxRetry:   cfg.Jobs.MaxRetryCount,
		stopCh:     make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("outbox sender started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("outbox sender stopped", zap.Error(ctx.Err()))
			return
		case <-s.stopCh:
			s.log.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// processPendingMessages publishes one batch and returns how many were sent.
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.Error("load pending outbox messages", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.RecordOutbox("sent")
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			// the row stays PENDING and will be published again
			s.log.Error("mark outbox message sent", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return false
		}
		s.log.Debug("outbox message sent",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("key", msg.MessageKey),
		)
		return true
	}

	s.log.Warn("publish outbox message",
		zap.Int64("id", msg.ID),
		zap.Int("retry_count", msg.RetryCount),
		zap.Error(err),
	)

	failed, recordErr := s.outboxRepo.RecordFailure(ctx, msg, s.maxRetry)
	if recordErr != nil {
		s.log.Error("record outbox failure", zap.Int64("id", msg.ID), zap.Error(recordErr))
		return false
	}
	if failed {
		metrics.RecordOutbox("failed")
		s.log.Error("outbox message exhausted its retries", zap.Int64("id", msg.ID), zap.Int("max_retry", s.maxRetry))
		return false
	}
	metrics.RecordOutbox("retry")
	return false
}
