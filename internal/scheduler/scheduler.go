package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/metrics"
)

// UserSource 用户枚举接口（生产实现为 repository.UsersRepository）
type UserSource interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// UserProcessor 单用户处理接口（生产实现为 Pipeline）
type UserProcessor interface {
	ProcessUser(ctx context.Context, userID int64) error
}

// Scheduler 批量聚合调度器：固定周期触发，单实例保证（运行中再触发则跳过）
type Scheduler struct {
	users     UserSource
	processor UserProcessor
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	// CAS 做互斥：跳过而不排队，快于周期的触发永远不会堆叠
	running atomic.Bool
}

// NewScheduler 创建调度器
func NewScheduler(users UserSource, processor UserProcessor, interval time.Duration, batchSize int, logger *zap.Logger) *Scheduler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Scheduler{
		users:     users,
		processor: processor,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start 启动调度循环（阻塞直到 ctx 取消）
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Aggregation scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Aggregation scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一轮批量处理
// 上一轮仍在运行时本次触发被跳过（不排队）：重叠运行会重复处理同一窗口
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Previous batch still running, skipping this firing")
		metrics.ObserveBatchSkipped()
		return
	}
	defer s.running.Store(false)

	start := time.Now()

	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to enumerate users",
			zap.Error(err),
		)
		return
	}

	// 按批处理，批内并发，批间串行：限制同时在跑的用户数
	for i := 0; i < len(userIDs); i += s.batchSize {
		select {
		case <-ctx.Done():
			s.logger.Info("Batch run cancelled")
			return
		default:
		}

		end := i + s.batchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		s.processBatch(ctx, userIDs[i:end])

		s.logger.Debug("Processed batch",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int("total_users", len(userIDs)),
		)
	}

	metrics.ObserveBatch(time.Since(start))
	s.logger.Info("Batch run complete",
		zap.Int("users", len(userIDs)),
		zap.Duration("duration", time.Since(start)),
	)
}

// processBatch 并发处理一批用户；单用户失败只记录，不中断其他用户
func (s *Scheduler) processBatch(ctx context.Context, userIDs []int64) {
	var wg sync.WaitGroup
	for _, userID := range userIDs {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			if err := s.processor.ProcessUser(ctx, uid); err != nil {
				s.logger.Error("Failed to process user",
					zap.Int64("user_id", uid),
					zap.Error(err),
				)
			}
		}(userID)
	}
	wg.Wait()
}

// IsRunning 当前是否有批次在执行（测试用）
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}
