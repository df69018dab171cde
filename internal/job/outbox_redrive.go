package job

import (
	"context"
	"fmt"
	"time"

	"itemsim/internal/config"
	"itemsim/internal/repository"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxRedriver periodically moves FAILED outbox rows back to PENDING so a
// broker outage longer than the retry budget does not lose events.
type OutboxRedriver struct {
	outboxRepo *repository.OutboxRepository
	log        *zap.Logger
	batchSize  int
	cron       *cron.Cron
}

func NewOutboxRedriver(db *gorm.DB, cfg *config.Config, log *zap.Logger) (*OutboxRedriver, error) {
	r := &OutboxRedriver{
		outboxRepo: repository.NewOutboxRepository(db),
		log:        log.Named("outbox_redriver"),
		batchSize:  cfg.Jobs.OutboxBatchSize,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	if _, err := r.cron.AddFunc(cfg.Jobs.RedriveSpec, r.run); err != nil {
		return nil, fmt.Errorf("schedule outbox redrive %q: %w", cfg.Jobs.RedriveSpec, err)
	}
	return r, nil
}

func (r *OutboxRedriver) Start() {
	r.log.Info("outbox redriver started")
	r.cron.Start()
}

// Stop waits for a running redrive to finish or ctx to expire.
func (r *OutboxRedriver) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
	r.log.Info("outbox redriver stopped")
}

func (r *OutboxRedriver) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	r.redrive(ctx)
}

func (r *OutboxRedriver) redrive(ctx context.Context) int64 {
	moved, err := r.outboxRepo.RequeueFailed(ctx, r.batchSize)
	if err != nil {
		r.log.Error("requeue failed outbox messages", zap.Error(err))
		return 0
	}
	if moved > 0 {
		r.log.Info("requeued failed outbox messages", zap.Int64("count", moved))
	}
	return moved
}
