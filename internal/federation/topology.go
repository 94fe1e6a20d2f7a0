package federation

import (
	"errors"
	"fmt"

	"github.com/peer-hub/peer-hub/internal/config"
)

// Topology 保存按配置顺序排列的 peer，顺序即查询顺序，构造后只读。
type Topology struct {
	byID    map[string]*Peer
	ordered []*Peer
}

// NewTopology 根据配置构建拓扑，并提前解析每个 peer 的生效 TTL。
func NewTopology(cfg *config.Config) (*Topology, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	topology := &Topology{
		byID: make(map[string]*Peer, len(cfg.Peers)),
	}

	for _, pc := range cfg.Peers {
		if pc.ID == "" {
			return nil, errors.New("peer id is required")
		}
		if _, exists := topology.byID[pc.ID]; exists {
			return nil, fmt.Errorf("duplicate peer id %s", pc.ID)
		}

		peer := &Peer{
			ID:            pc.ID,
			Host:          pc.Host,
			Port:          pc.Port,
			Save:          pc.Save,
			TTL:           cfg.EffectiveTTL(pc),
			TTLOverridden: pc.TTL.DurationValue() > 0,
		}
		topology.byID[peer.ID] = peer
		topology.ordered = append(topology.ordered, peer)
	}

	return topology, nil
}

// Lookup 根据 id 查找 peer。
func (t *Topology) Lookup(id string) (Peer, bool) {
	if t == nil {
		return Peer{}, false
	}
	peer, ok := t.byID[id]
	if !ok {
		return Peer{}, false
	}
	return *peer, true
}

// List 按查询顺序返回 peer 副本。
func (t *Topology) List() []Peer {
	if t == nil || len(t.ordered) == 0 {
		return nil
	}

	result := make([]Peer, len(t.ordered))
	for i, peer := range t.ordered {
		result[i] = *peer
	}
	return result
}

// Len 返回 peer 数量。
func (t *Topology) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ordered)
}
