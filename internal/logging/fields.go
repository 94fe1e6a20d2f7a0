package logging

import "github.com/sirupsen/logrus"

// Source 值：本地命中统一记为 local，其它情况记录应答的 peer id。
const SourceLocal = "local"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供文件名/转发标记/来源字段，供读文件请求日志复用。
func RequestFields(filename string, forwarded bool, source string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"filename":  filename,
		"forwarded": forwarded,
		"source":    source,
		"cache_hit": cacheHit,
	}
}

// PeerFields 描述一次对 peer 的出站请求。
func PeerFields(peerID, address, filename string) logrus.Fields {
	return logrus.Fields{
		"peer":     peerID,
		"address":  address,
		"filename": filename,
	}
}
