package scheduler

import (
	"context"
	"time"

	"github.com/coder/quartz"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/usecase"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// Flusher выполняет один сброс счетчиков
type Flusher interface {
	Execute(ctx context.Context) (usecase.FlushResult, error)
}

// FlushScheduler периодически запускает сброс счетчиков.
// Сброс выполняется в той же goroutine, что и ожидание тика, поэтому сбросы не перекрываются.
type FlushScheduler struct {
	flusher  Flusher
	clock    quartz.Clock
	interval time.Duration
	logger   *logger.Logger
}

// NewFlushScheduler создает планировщик
func NewFlushScheduler(flusher Flusher, clock quartz.Clock, interval time.Duration, logger *logger.Logger) *FlushScheduler {
	return &FlushScheduler{
		flusher:  flusher,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Run блокируется до отмены ctx. После отмены выполняет финальный сброс
// с отдельным контекстом, чтобы не потерять накопленное.
func (s *FlushScheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval, "flushScheduler", "tick")
	defer ticker.Stop()

	s.logger.Info("Flush scheduler started", "interval", s.interval.String())

	for {
		select {
		case <-ticker.C:
			s.flush(ctx)
		case <-ctx.Done():
			s.logger.Info("Flush scheduler stopping, running final flush")
			s.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

func (s *FlushScheduler) flush(ctx context.Context) {
	// ошибка уже залогирована в use case
	_, _ = s.flusher.Execute(ctx)
}
