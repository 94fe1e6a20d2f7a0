package federation

import "time"

// cachePolicy 决定 peer 返回的内容是否落盘以及保留多久。
type cachePolicy struct {
	nodeSave bool
}

// shouldCache 仅当本节点与应答 peer 都允许保存时返回 true。
func (p cachePolicy) shouldCache(answering Peer) bool {
	return p.nodeSave && answering.Save
}

// ttlFor 返回应答 peer 的生效 TTL。
func (p cachePolicy) ttlFor(answering Peer) time.Duration {
	return answering.TTL
}
