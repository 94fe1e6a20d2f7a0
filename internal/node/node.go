// Package node assembles one peer-hub node from its configuration: local
// store, eviction scheduler, peer client, resolver and the Fiber app.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/peer-hub/peer-hub/internal/cache"
	"github.com/peer-hub/peer-hub/internal/config"
	"github.com/peer-hub/peer-hub/internal/eviction"
	"github.com/peer-hub/peer-hub/internal/federation"
	"github.com/peer-hub/peer-hub/internal/metrics"
	"github.com/peer-hub/peer-hub/internal/peer"
	"github.com/peer-hub/peer-hub/internal/proxy"
	"github.com/peer-hub/peer-hub/internal/server"
	"github.com/peer-hub/peer-hub/internal/server/routes"
)

const shutdownTimeout = 5 * time.Second

// Options 提供可替换的依赖，零值即生产配置。
type Options struct {
	Logger     *logrus.Logger
	Clock      eviction.Clock
	HTTPClient *http.Client
	Registry   *prometheus.Registry
}

// Node 持有一个节点的全部组件。
type Node struct {
	App       *fiber.App
	Store     cache.Store
	Scheduler *eviction.Scheduler
	Resolver  *federation.Resolver
	Metrics   *metrics.Metrics

	cfg    *config.Config
	logger *logrus.Logger
}

// New 按“配置 → 拓扑 → 本地目录 → 淘汰调度 → peer 客户端 → Resolver → Fiber”顺序组装节点。
func New(cfg *config.Config, opts Options) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	topology, err := federation.NewTopology(cfg)
	if err != nil {
		return nil, fmt.Errorf("构建拓扑失败: %w", err)
	}

	store, err := cache.NewStore(cfg.Global.Directory)
	if err != nil {
		return nil, fmt.Errorf("初始化本地目录失败: %w", err)
	}

	m := metrics.New(opts.Registry)
	scheduler := eviction.NewScheduler(store, eviction.Options{
		Clock:   opts.Clock,
		Logger:  opts.Logger,
		Metrics: m,
	})
	client := peer.NewClient(opts.HTTPClient, opts.Logger, m)

	resolver, err := federation.NewResolver(federation.Options{
		Store:     store,
		Fetcher:   client,
		Topology:  topology,
		Scheduler: scheduler,
		Save:      cfg.Global.Save,
		Logger:    opts.Logger,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     opts.Logger,
		Files:      proxy.NewHandler(resolver, store, opts.Logger, m),
		ListenPort: cfg.Global.ListenPort,
		BodyLimit:  cfg.Global.MaxUploadSize,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnostics(app, routes.DiagnosticsOptions{
		Topology:  topology,
		NodeSave:  cfg.Global.Save,
		Scheduler: scheduler,
		Metrics:   m,
	})

	return &Node{
		App:       app,
		Store:     store,
		Scheduler: scheduler,
		Resolver:  resolver,
		Metrics:   m,
		cfg:       cfg,
		logger:    opts.Logger,
	}, nil
}

// Run 监听配置地址直到 ctx 结束，随后优雅关闭。已布置的淘汰随进程一起丢弃。
// 监听器由 Run 自行创建并在关闭时一并关闭，ctx 在 Serve 开始前就已取消时也能返回。
func (n *Node) Run(ctx context.Context) error {
	addr := n.cfg.Global.ListenAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n.logger.WithFields(logrus.Fields{
			"action":  "listen",
			"address": ln.Addr().String(),
			"peers":   config.PeerIDs(n.cfg.Peers),
		}).Info("Fiber 服务启动")
		return n.App.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	})

	g.Go(func() error {
		<-gctx.Done()
		n.logger.WithFields(logrus.Fields{
			"action":            "shutdown",
			"pending_evictions": len(n.Scheduler.Pending()),
		}).Info("Fiber 服务关闭")
		shutdownErr := n.App.ShutdownWithTimeout(shutdownTimeout)
		if closeErr := ln.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) && shutdownErr == nil {
			shutdownErr = closeErr
		}
		return shutdownErr
	})

	return g.Wait()
}
