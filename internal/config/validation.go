package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if strings.TrimSpace(g.Directory) == "" {
		return newFieldError("Global.Directory", "不能为空")
	}
	if g.DefaultTTL.DurationValue() <= 0 {
		return newFieldError("Global.DefaultTTL", "必须大于 0")
	}
	if g.MaxUploadSize <= 0 {
		return newFieldError("Global.MaxUploadSize", "必须大于 0")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", err.Error())
		}
	}

	seenIDs := map[string]struct{}{}
	for i := range c.Peers {
		peer := &c.Peers[i]
		if peer.ID == "" {
			return newFieldError("Peer[].ID", "不能为空")
		}
		if _, exists := seenIDs[peer.ID]; exists {
			return newFieldError(peerField(peer.ID, "ID"), "重复")
		}
		seenIDs[peer.ID] = struct{}{}

		if err := validatePeerHost(peer.Host); err != nil {
			return fmt.Errorf("%s: %w", peerField(peer.ID, "Host"), err)
		}
		if peer.Port <= 0 || peer.Port > 65535 {
			return newFieldError(peerField(peer.ID, "Port"), "必须在 1-65535")
		}
		if peer.TTL.DurationValue() < 0 {
			return newFieldError(peerField(peer.ID, "TTL"), "不能为负数")
		}
		if peer.Address() == g.ListenAddress() {
			return newFieldError(peerField(peer.ID, "Port"), "不能指向本节点的监听地址")
		}
	}

	return nil
}

func validatePeerHost(host string) error {
	if host == "" {
		return errors.New("Host 不能为空")
	}
	if strings.Contains(host, "/") {
		return errors.New("Host 不允许包含路径")
	}
	if strings.Contains(host, " ") {
		return errors.New("Host 不允许包含空格")
	}
	if strings.Contains(host, "://") {
		return errors.New("Host 不应包含协议头")
	}
	return nil
}
