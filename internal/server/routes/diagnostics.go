package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/peer-hub/peer-hub/internal/eviction"
	"github.com/peer-hub/peer-hub/internal/federation"
	"github.com/peer-hub/peer-hub/internal/metrics"
)

// DiagnosticsOptions 汇总诊断接口所需的只读视图。
type DiagnosticsOptions struct {
	Topology  *federation.Topology
	NodeSave  bool
	Scheduler *eviction.Scheduler
	Metrics   *metrics.Metrics
}

// RegisterDiagnostics 暴露 /-/peers、/-/evictions 与 /-/metrics。两段式路径不会与 GET /{filename} 冲突。
func RegisterDiagnostics(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil {
		return
	}

	app.Get("/-/peers", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"save":  opts.NodeSave,
			"peers": encodePeers(opts.Topology.List(), opts.NodeSave),
		})
	})

	if opts.Scheduler != nil {
		app.Get("/-/evictions", func(c fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"pending": encodeEvictions(opts.Scheduler.Pending()),
			})
		})
	}

	if opts.Metrics != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))
	}
}

type peerPayload struct {
	Order         int    `json:"order"`
	ID            string `json:"id"`
	Address       string `json:"address"`
	Save          bool   `json:"save"`
	TTLSeconds    int64  `json:"ttl_seconds"`
	TTLOverridden bool   `json:"ttl_overridden"`
	CachesAnswers bool   `json:"caches_answers"`
}

type evictionPayload struct {
	Filename string    `json:"filename"`
	FireAt   time.Time `json:"fire_at"`
}

func encodePeers(peers []federation.Peer, nodeSave bool) []peerPayload {
	result := make([]peerPayload, 0, len(peers))
	for i, p := range peers {
		result = append(result, peerPayload{
			Order:         i,
			ID:            p.ID,
			Address:       p.Address(),
			Save:          p.Save,
			TTLSeconds:    int64(p.TTL / time.Second),
			TTLOverridden: p.TTLOverridden,
			CachesAnswers: nodeSave && p.Save,
		})
	}
	return result
}

func encodeEvictions(items []eviction.PendingEviction) []evictionPayload {
	result := make([]evictionPayload, 0, len(items))
	for _, item := range items {
		result = append(result, evictionPayload{
			Filename: item.Filename,
			FireAt:   item.FireAt.UTC(),
		})
	}
	return result
}
