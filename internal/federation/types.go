package federation

import (
	"net"
	"strconv"
	"time"
)

// Peer 是拓扑中的一个兄弟节点，纯数据。TTL 为已生效值（peer 覆盖或 default_ttl）。
type Peer struct {
	ID            string
	Host          string
	Port          int
	Save          bool
	TTL           time.Duration
	TTLOverridden bool
}

// Address 返回 host:port。
func (p Peer) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// FetchResult 表示一次查找的结果，Source 为应答 peer 的 id，本地查找为空。
type FetchResult struct {
	Source  string
	Found   bool
	Content []byte
}

// Found 构造命中结果。
func Found(source string, content []byte) FetchResult {
	return FetchResult{Source: source, Found: true, Content: content}
}

// NotFound 构造未命中结果。
func NotFound(source string) FetchResult {
	return FetchResult{Source: source}
}

// Outcome 是 Resolve 的最终结果。
type Outcome struct {
	FetchResult
	// CacheHit 表示直接由本地目录应答。
	CacheHit bool
	// Cached 表示 peer 返回的内容已写入本地目录并布置了淘汰。
	Cached bool
	// TTL 为 Cached 时布置的淘汰时长。
	TTL time.Duration
	// PeersQueried 记录本次请求访问的 peer 数。
	PeersQueried int
}
