package proxy

import (
	"context"
	"errors"
	"mime"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/peer-hub/peer-hub/internal/cache"
	"github.com/peer-hub/peer-hub/internal/federation"
	"github.com/peer-hub/peer-hub/internal/logging"
	"github.com/peer-hub/peer-hub/internal/metrics"
	"github.com/peer-hub/peer-hub/internal/peer"
	"github.com/peer-hub/peer-hub/internal/server"
)

// UploadField 是 POST /add 中承载文件的 multipart 字段名。
const UploadField = "file"

// Resolver 抽象 federation.Resolver，便于测试替换。
type Resolver interface {
	Resolve(ctx context.Context, filename string, forwarded bool) (federation.Outcome, error)
}

// Handler 实现 server.FileHandler：读文件走 Resolver，上传直接写本地存储。
type Handler struct {
	resolver Resolver
	store    cache.Store
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

var _ server.FileHandler = (*Handler)(nil)

// NewHandler constructs the file handler with shared resolver/store/logger.
func NewHandler(resolver Resolver, store cache.Store, logger *logrus.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Handler{
		resolver: resolver,
		store:    store,
		logger:   logger,
		metrics:  m,
	}
}

// Serve 依次执行本地查找与（未转发时的）peer 轮询，命中时原样返回字节。
func (h *Handler) Serve(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	forwarded := isForwarded(c)
	// 路由参数保持原始编码，这里只做路径解码，"+" 按字面保留。
	filename, err := url.PathUnescape(c.Params("filename"))
	if err != nil {
		h.logResult(c.Params("filename"), forwarded, federation.Outcome{}, requestID, fiber.StatusBadRequest, started, err)
		return h.writeError(c, fiber.StatusBadRequest, "invalid_filename")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	outcome, err := h.resolver.Resolve(ctx, filename, forwarded)
	if err != nil {
		var fault *federation.StoreFault
		switch {
		case errors.Is(err, cache.ErrInvalidName):
			h.logResult(filename, forwarded, outcome, requestID, fiber.StatusBadRequest, started, err)
			return h.writeError(c, fiber.StatusBadRequest, "invalid_filename")
		case errors.As(err, &fault):
			h.logResult(filename, forwarded, outcome, requestID, fiber.StatusInternalServerError, started, err)
			return h.writeError(c, fiber.StatusInternalServerError, "store_fault")
		default:
			h.logResult(filename, forwarded, outcome, requestID, fiber.StatusInternalServerError, started, err)
			return err
		}
	}

	if !outcome.Found {
		h.logResult(filename, forwarded, outcome, requestID, fiber.StatusNotFound, started, nil)
		return h.writeError(c, fiber.StatusNotFound, "not_found")
	}

	source := outcome.Source
	if outcome.CacheHit {
		source = logging.SourceLocal
	}
	c.Set("Content-Type", contentTypeFor(filename))
	c.Set("X-Peer-Hub-Source", source)
	c.Set("X-Peer-Hub-Cache-Hit", strconv.FormatBool(outcome.CacheHit))

	h.logResult(filename, forwarded, outcome, requestID, fiber.StatusOK, started, nil)
	return c.Status(fiber.StatusOK).Send(outcome.Content)
}

// Upload 将 multipart 字段 file 写入本地目录，文件名取上传文件名。上传内容不会被淘汰。
func (h *Handler) Upload(c fiber.Ctx) error {
	requestID := server.RequestID(c)

	header, err := c.FormFile(UploadField)
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "file_field_required")
	}

	name := filepath.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if err := cache.ValidateName(name); err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_filename")
	}

	file, err := header.Open()
	if err != nil {
		return h.uploadFailed(c, name, requestID, err)
	}
	defer file.Close()

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	entry, err := h.store.Put(ctx, name, file)
	if err != nil {
		return h.uploadFailed(c, name, requestID, err)
	}
	h.metrics.Uploads.Inc()

	h.logger.WithFields(logrus.Fields{
		"action":     "upload",
		"filename":   name,
		"size":       entry.SizeBytes,
		"request_id": requestID,
	}).Info("upload_stored")

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "uploaded"})
}

func (h *Handler) uploadFailed(c fiber.Ctx, name, requestID string, err error) error {
	h.logger.WithFields(logrus.Fields{
		"action":     "upload",
		"filename":   name,
		"request_id": requestID,
		"error":      err.Error(),
	}).Error("upload_failed")
	return h.writeError(c, fiber.StatusInternalServerError, "store_fault")
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	filename string,
	forwarded bool,
	outcome federation.Outcome,
	requestID string,
	status int,
	started time.Time,
	err error,
) {
	source := outcome.Source
	if outcome.CacheHit {
		source = logging.SourceLocal
	}
	fields := logging.RequestFields(filename, forwarded, source, outcome.CacheHit)
	fields["action"] = "serve"
	fields["status"] = status
	fields["peers_queried"] = outcome.PeersQueried
	fields["cached"] = outcome.Cached
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		if status >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("serve_failed")
		} else {
			h.logger.WithFields(fields).Warn("serve_rejected")
		}
		return
	}
	h.logger.WithFields(fields).Info("serve_complete")
}

// isForwarded 判断防环标记：参数存在且值为空或可解析为 true 时视为转发请求；
// 无法解析的值同样按转发处理，只有明确的 false/0 才会触发 peer 轮询。
func isForwarded(c fiber.Ctx) bool {
	args := c.Request().URI().QueryArgs()
	if !args.Has(peer.ForwardedParam) {
		return false
	}
	raw := strings.TrimSpace(string(args.Peek(peer.ForwardedParam)))
	if raw == "" {
		return true
	}
	value, err := strconv.ParseBool(raw)
	return err != nil || value
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return fiber.MIMEOctetStream
}
