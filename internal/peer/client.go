// Package peer performs the single outbound fetch a node makes to a sibling
// during a peer sweep. Every request carries the forwarding marker, so the
// sibling answers from its own directory only.
package peer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/peer-hub/peer-hub/internal/federation"
	"github.com/peer-hub/peer-hub/internal/logging"
	"github.com/peer-hub/peer-hub/internal/metrics"
)

// ForwardedParam 是防环标记的查询参数名。
const ForwardedParam = "forwarded"

// Client 实现 federation.Fetcher。
type Client struct {
	http    *http.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewClient 构造 peer 客户端；httpClient 为空时使用 NewHTTPClient。
func NewClient(httpClient *http.Client, logger *logrus.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Client{http: httpClient, logger: logger, metrics: m}
}

// FileURL 构造 peer 上 serve-file 路由的地址，并带上防环标记。
func FileURL(p federation.Peer, filename string) *url.URL {
	return &url.URL{
		Scheme:   "http",
		Host:     p.Address(),
		Path:     "/" + filename,
		RawQuery: url.Values{ForwardedParam: []string{"true"}}.Encode(),
	}
}

// Fetch 对 p 发起一次 GET，不重试。任何失败都折叠为 NotFound，只记录日志。
func (c *Client) Fetch(ctx context.Context, p federation.Peer, filename string) federation.FetchResult {
	target := FileURL(p, filename)
	fields := logging.PeerFields(p.ID, p.Address(), filename)
	fields["action"] = "peer_fetch"

	content, status, err := c.get(ctx, target)
	if err != nil {
		fields["error"] = err.Error()
		c.logger.WithFields(fields).Warn("peer_unreachable")
		c.metrics.PeerFetches.WithLabelValues(p.ID, metrics.ResultUnreachable).Inc()
		return federation.NotFound(p.ID)
	}

	fields["status"] = status
	if status != http.StatusOK {
		c.logger.WithFields(fields).Debug("peer has no copy")
		c.metrics.PeerFetches.WithLabelValues(p.ID, metrics.ResultNotFound).Inc()
		return federation.NotFound(p.ID)
	}

	fields["size"] = len(content)
	c.logger.WithFields(fields).Debug("peer answered")
	c.metrics.PeerFetches.WithLabelValues(p.ID, metrics.ResultFound).Inc()
	return federation.Found(p.ID, content)
}

func (c *Client) get(ctx context.Context, target *url.URL) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return content, resp.StatusCode, nil
}
