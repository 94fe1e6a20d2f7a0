// Package eviction arms one-shot deletions of peer-sourced files. Timers
// live only in memory and cannot be cancelled; re-caching a filename arms
// an additional, independent timer.
package eviction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/peer-hub/peer-hub/internal/logging"
	"github.com/peer-hub/peer-hub/internal/metrics"
)

// Remover 是到期时执行删除的存储能力，cache.Store 满足该接口。
type Remover interface {
	Remove(ctx context.Context, name string) error
}

// PendingEviction 记录一个已布置、尚未触发的删除。
type PendingEviction struct {
	ID       uint64    `json:"id"`
	Filename string    `json:"filename"`
	FireAt   time.Time `json:"fire_at"`
}

// Options 为 Scheduler 提供可选依赖，零值使用真实时钟与丢弃型 logger。
type Options struct {
	Clock   Clock
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}

// Scheduler 管理所有待执行的淘汰。
type Scheduler struct {
	remover Remover
	clock   Clock
	logger  *logrus.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]PendingEviction
}

// NewScheduler 构造淘汰调度器，remover 不能为空。
func NewScheduler(remover Remover, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	return &Scheduler{
		remover: remover,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		pending: make(map[uint64]PendingEviction),
	}
}

// Schedule 在 now+ttl 删除 filename。同名文件在此期间被覆盖也不会解除该定时器，
// 到期时删除的是当时占用该文件名的内容。
func (s *Scheduler) Schedule(filename string, ttl time.Duration) PendingEviction {
	s.mu.Lock()
	s.seq++
	item := PendingEviction{
		ID:       s.seq,
		Filename: filename,
		FireAt:   s.clock.Now().Add(ttl),
	}
	s.pending[item.ID] = item
	s.mu.Unlock()

	s.metrics.EvictionsScheduled.Inc()
	s.metrics.PendingEvictions.Inc()
	s.logger.WithFields(logrus.Fields{
		"action":   "eviction_scheduled",
		"filename": filename,
		"ttl_ms":   ttl.Milliseconds(),
		"fire_at":  item.FireAt,
	}).Debug("eviction armed")

	s.clock.AfterFunc(ttl, func() { s.fire(item) })
	return item
}

// Pending 返回尚未触发的淘汰，按触发时间排序。
func (s *Scheduler) Pending() []PendingEviction {
	s.mu.Lock()
	result := make([]PendingEviction, 0, len(s.pending))
	for _, item := range s.pending {
		result = append(result, item)
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].FireAt.Equal(result[j].FireAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].FireAt.Before(result[j].FireAt)
	})
	return result
}

func (s *Scheduler) fire(item PendingEviction) {
	s.mu.Lock()
	delete(s.pending, item.ID)
	s.mu.Unlock()

	s.metrics.EvictionsFired.Inc()
	s.metrics.PendingEvictions.Dec()

	fields := logrus.Fields{
		"action":   "eviction_fired",
		"filename": item.Filename,
	}
	if err := s.remover.Remove(context.Background(), item.Filename); err != nil {
		fields["error"] = err.Error()
		s.logger.WithFields(fields).Warn("eviction_failed")
		return
	}
	s.logger.WithFields(fields).Info("cached copy evicted")
}
