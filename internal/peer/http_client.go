package peer

import (
	"net"
	"net/http"
	"time"
)

// 所有 peer 共享一个 Transport，复用长连接。只有拨号/握手级超时，整次请求不设上限。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   16,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewHTTPClient 返回用于 peer 请求的 http.Client。
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: defaultTransport.Clone(),
	}
}
