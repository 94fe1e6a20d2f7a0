// Package federation resolves a serve request: local lookup first, then a
// single-hop sweep over the configured peers, then optional caching of the
// answer with a timed eviction.
package federation

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/peer-hub/peer-hub/internal/cache"
	"github.com/peer-hub/peer-hub/internal/eviction"
	"github.com/peer-hub/peer-hub/internal/logging"
	"github.com/peer-hub/peer-hub/internal/metrics"
)

// Fetcher 对单个 peer 发起一次转发请求。实现不得返回错误：连接失败与非 200 应答都折叠为 NotFound。
type Fetcher interface {
	Fetch(ctx context.Context, peer Peer, filename string) FetchResult
}

// Scheduler 布置一次性淘汰。
type Scheduler interface {
	Schedule(filename string, ttl time.Duration) eviction.PendingEviction
}

// Options 汇总 Resolver 的依赖。
type Options struct {
	Store     cache.Store
	Fetcher   Fetcher
	Topology  *Topology
	Scheduler Scheduler
	// Save 是本节点的保存策略。
	Save    bool
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}

// Resolver 编排“本地查找 → peer 轮询 → 条件落盘 → 定时淘汰”。
type Resolver struct {
	store     cache.Store
	fetcher   Fetcher
	topology  *Topology
	scheduler Scheduler
	policy    cachePolicy
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

// NewResolver 校验依赖并构造 Resolver。
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("peer fetcher is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("eviction scheduler is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	return &Resolver{
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		topology:  opts.Topology,
		scheduler: opts.Scheduler,
		policy:    cachePolicy{nodeSave: opts.Save},
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// Topology 返回当前拓扑。
func (r *Resolver) Topology() *Topology {
	return r.topology
}

// SaveEnabled 返回本节点保存策略。
func (r *Resolver) SaveEnabled() bool {
	return r.policy.nodeSave
}

// Resolve 查找 filename。forwarded 为 true 时只查本地，保证转发深度恰好一跳。
// 返回的 error 只可能是 cache.ErrInvalidName、*StoreFault 或 ctx 错误；未找到通过 Outcome.Found 表达。
func (r *Resolver) Resolve(ctx context.Context, filename string, forwarded bool) (Outcome, error) {
	if err := cache.ValidateName(filename); err != nil {
		return Outcome{}, err
	}

	local, err := r.store.Get(ctx, filename)
	switch {
	case err == nil:
		r.metrics.LocalHits.Inc()
		return Outcome{
			FetchResult: Found("", local.Content),
			CacheHit:    true,
		}, nil
	case errors.Is(err, cache.ErrNotFound):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Outcome{}, err
	default:
		return Outcome{}, &StoreFault{Op: "read", Name: filename, Err: err}
	}

	if forwarded {
		return Outcome{FetchResult: NotFound("")}, nil
	}

	answering, result, queried := r.sweep(ctx, filename)
	outcome := Outcome{FetchResult: result, PeersQueried: queried}
	if !result.Found {
		r.metrics.Sweeps.WithLabelValues(metrics.ResultNotFound).Inc()
		return outcome, nil
	}
	r.metrics.Sweeps.WithLabelValues(metrics.ResultFound).Inc()

	if !r.policy.shouldCache(answering) {
		return outcome, nil
	}

	if _, err := r.store.Put(ctx, filename, bytes.NewReader(result.Content)); err != nil {
		return Outcome{}, &StoreFault{Op: "write", Name: filename, Err: err}
	}
	r.metrics.CacheWrites.Inc()

	ttl := r.policy.ttlFor(answering)
	r.scheduler.Schedule(filename, ttl)
	outcome.Cached = true
	outcome.TTL = ttl
	return outcome, nil
}

// sweep 按拓扑顺序逐个查询 peer，不在命中时提前结束：每一轮结果都会覆盖上一轮，
// 最终返回最后一个被查询 peer 的应答，即便更早的 peer 已经命中。
func (r *Resolver) sweep(ctx context.Context, filename string) (Peer, FetchResult, int) {
	var (
		last   Peer
		result = NotFound("")
		count  int
	)

	for _, peer := range r.topology.List() {
		answer := r.fetcher.Fetch(ctx, peer, filename)
		answer.Source = peer.ID
		count++

		if result.Found && !answer.Found {
			r.logger.WithFields(logrus.Fields{
				"action":    "peer_sweep",
				"filename":  filename,
				"discarded": result.Source,
				"peer":      peer.ID,
			}).Debug("earlier peer answer overwritten")
		}
		last, result = peer, answer
	}

	r.logger.WithFields(logrus.Fields{
		"action":   "peer_sweep",
		"filename": filename,
		"peers":    count,
		"found":    result.Found,
		"source":   result.Source,
	}).Debug("peer sweep finished")

	return last, result, count
}
