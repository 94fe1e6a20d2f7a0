package federation

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peer-hub/peer-hub/internal/cache"
	"github.com/peer-hub/peer-hub/internal/config"
	"github.com/peer-hub/peer-hub/internal/eviction"
	"github.com/peer-hub/peer-hub/internal/eviction/evictiontest"
	"github.com/peer-hub/peer-hub/internal/metrics"
)

func TestLocalHitNeverContactsPeers(t *testing.T) {
	fx := newFixture(t, true, peerSpec{id: "b", save: true})
	fx.put(t, "x.txt", "local bytes")
	fx.fetcher.answer("b", "remote bytes")

	outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	require.NoError(t, err)

	assert.True(t, outcome.Found)
	assert.True(t, outcome.CacheHit)
	assert.Equal(t, "local bytes", string(outcome.Content))
	assert.Empty(t, fx.fetcher.calls())
	assert.Empty(t, fx.scheduler.Pending(), "local hits are never scheduled for eviction")
}

func TestForwardedMissDoesNotSweep(t *testing.T) {
	fx := newFixture(t, true, peerSpec{id: "b", save: true})
	fx.fetcher.answer("b", "remote bytes")

	outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", true)
	require.NoError(t, err)

	assert.False(t, outcome.Found)
	assert.Empty(t, fx.fetcher.calls())
	assert.Zero(t, outcome.PeersQueried)
}

func TestSweepVisitsAllPeersInOrder(t *testing.T) {
	fx := newFixture(t, false,
		peerSpec{id: "b"}, peerSpec{id: "c"}, peerSpec{id: "d"})
	fx.fetcher.answer("d", "from d")

	outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "d"}, fx.fetcher.calls())
	assert.Equal(t, 3, outcome.PeersQueried)
	assert.True(t, outcome.Found)
	assert.Equal(t, "d", outcome.Source)
}

// The sweep records only the last peer's answer: an earlier success followed
// by a later miss reports not-found.
func TestSweepReportsLastPeerEvenWhenEarlierPeerHadContent(t *testing.T) {
	fx := newFixture(t, true,
		peerSpec{id: "b", save: true}, peerSpec{id: "c", save: true})
	fx.fetcher.answer("b", "from b")

	outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, fx.fetcher.calls())
	assert.False(t, outcome.Found)
	assert.Equal(t, "c", outcome.Source)
	fx.assertAbsent(t, "x.txt")
}

func TestSweepLastAnswerOverridesEarlierAnswer(t *testing.T) {
	fx := newFixture(t, true,
		peerSpec{id: "b", save: true}, peerSpec{id: "c", save: false})
	fx.fetcher.answer("b", "from b")
	fx.fetcher.answer("c", "from c")

	outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	require.NoError(t, err)

	assert.Equal(t, "from c", string(outcome.Content))
	assert.Equal(t, "c", outcome.Source)
	assert.False(t, outcome.Cached, "the save flag of the last peer decides")
	fx.assertAbsent(t, "x.txt")
}

func TestCachingRequiresNodeAndPeerSave(t *testing.T) {
	cases := []struct {
		name     string
		nodeSave bool
		peerSave bool
		cached   bool
	}{
		{"both enabled", true, true, true},
		{"node disabled", false, true, false},
		{"peer disabled", true, false, false},
		{"both disabled", false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t, tc.nodeSave, peerSpec{id: "b", save: tc.peerSave})
			fx.fetcher.answer("b", "remote bytes")

			outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
			require.NoError(t, err)
			require.True(t, outcome.Found)
			assert.Equal(t, tc.cached, outcome.Cached)

			if tc.cached {
				fx.assertContent(t, "x.txt", "remote bytes")
				require.Len(t, fx.scheduler.Pending(), 1)
			} else {
				fx.assertAbsent(t, "x.txt")
				assert.Empty(t, fx.scheduler.Pending())
			}
		})
	}
}

func TestCachedCopyExpiresAfterTTL(t *testing.T) {
	fx := newFixture(t, true, peerSpec{id: "b", save: true, ttl: 30 * time.Second})
	fx.fetcher.answer("b", "remote bytes")
	ctx := context.Background()

	outcome, err := fx.resolver.Resolve(ctx, "x.txt", false)
	require.NoError(t, err)
	require.True(t, outcome.Cached)
	assert.Equal(t, 30*time.Second, outcome.TTL)
	require.Len(t, fx.fetcher.calls(), 1)

	fx.clock.Advance(29 * time.Second)
	outcome, err = fx.resolver.Resolve(ctx, "x.txt", false)
	require.NoError(t, err)
	assert.True(t, outcome.CacheHit)
	assert.Len(t, fx.fetcher.calls(), 1, "no peer call before the deadline")

	fx.clock.Advance(time.Second)
	fx.assertAbsent(t, "x.txt")

	outcome, err = fx.resolver.Resolve(ctx, "x.txt", false)
	require.NoError(t, err)
	assert.False(t, outcome.CacheHit)
	assert.Len(t, fx.fetcher.calls(), 2, "expiry triggers a fresh sweep")
}

func TestPeerWithoutOverrideUsesDefaultTTL(t *testing.T) {
	fx := newFixture(t, true, peerSpec{id: "b", save: true})
	fx.fetcher.answer("b", "remote bytes")

	outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	require.NoError(t, err)
	assert.Equal(t, defaultTTL, outcome.TTL)
}

func TestAllPeersUnreachable(t *testing.T) {
	fx := newFixture(t, true, peerSpec{id: "b"}, peerSpec{id: "c"}, peerSpec{id: "d"})

	outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	require.NoError(t, err)
	assert.False(t, outcome.Found)
	assert.Equal(t, []string{"b", "c", "d"}, fx.fetcher.calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Sweeps.WithLabelValues(metrics.ResultNotFound)))
}

func TestEmptyTopologyIsNotFound(t *testing.T) {
	fx := newFixture(t, true)

	outcome, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	require.NoError(t, err)
	assert.False(t, outcome.Found)
	assert.Zero(t, outcome.PeersQueried)
}

func TestInvalidNameIsRejected(t *testing.T) {
	fx := newFixture(t, true, peerSpec{id: "b"})
	_, err := fx.resolver.Resolve(context.Background(), "../secret", false)
	assert.True(t, errors.Is(err, cache.ErrInvalidName))
	assert.Empty(t, fx.fetcher.calls())
}

func TestReadFailureIsStoreFault(t *testing.T) {
	fx := newFixture(t, true, peerSpec{id: "b"})
	fx.resolver.store = &brokenStore{Store: fx.store, getErr: errors.New("i/o error")}

	_, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	var fault *StoreFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "read", fault.Op)
	assert.Empty(t, fx.fetcher.calls())
}

func TestWriteFailureIsStoreFault(t *testing.T) {
	fx := newFixture(t, true, peerSpec{id: "b", save: true})
	fx.fetcher.answer("b", "remote bytes")
	fx.resolver.store = &brokenStore{Store: fx.store, putErr: errors.New("disk full")}

	_, err := fx.resolver.Resolve(context.Background(), "x.txt", false)
	var fault *StoreFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "write", fault.Op)
	assert.Empty(t, fx.scheduler.Pending(), "nothing is scheduled when the write fails")
}

func TestNewResolverRequiresDependencies(t *testing.T) {
	_, err := NewResolver(Options{})
	assert.Error(t, err)
}

const defaultTTL = 10 * time.Minute

type peerSpec struct {
	id   string
	save bool
	ttl  time.Duration
}

type fixture struct {
	store     cache.Store
	fetcher   *stubFetcher
	clock     *evictiontest.Clock
	scheduler *eviction.Scheduler
	resolver  *Resolver
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, nodeSave bool, peers ...peerSpec) *fixture {
	t.Helper()

	cfg := &config.Config{Global: config.GlobalConfig{Save: nodeSave, DefaultTTL: config.Duration(defaultTTL)}}
	for i, p := range peers {
		cfg.Peers = append(cfg.Peers, config.PeerConfig{
			ID:   p.id,
			Host: "10.0.0.1",
			Port: 9000 + i,
			Save: p.save,
			TTL:  config.Duration(p.ttl),
		})
	}
	topology, err := NewTopology(cfg)
	require.NoError(t, err)

	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)

	m := metrics.New(nil)
	clock := evictiontest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	scheduler := eviction.NewScheduler(store, eviction.Options{Clock: clock, Metrics: m})
	fetcher := &stubFetcher{answers: map[string]string{}}

	resolver, err := NewResolver(Options{
		Store:     store,
		Fetcher:   fetcher,
		Topology:  topology,
		Scheduler: scheduler,
		Save:      cfg.Global.Save,
		Metrics:   m,
	})
	require.NoError(t, err)

	return &fixture{
		store:     store,
		fetcher:   fetcher,
		clock:     clock,
		scheduler: scheduler,
		resolver:  resolver,
		metrics:   m,
	}
}

func (f *fixture) put(t *testing.T, name, body string) {
	t.Helper()
	_, err := f.store.Put(context.Background(), name, strings.NewReader(body))
	require.NoError(t, err)
}

func (f *fixture) assertContent(t *testing.T, name, body string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.store.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func (f *fixture) assertAbsent(t *testing.T, name string) {
	t.Helper()
	_, err := os.Stat(filepath.Join(f.store.Dir(), name))
	assert.True(t, os.IsNotExist(err), "expected %s to be absent, stat err=%v", name, err)
}

// stubFetcher answers from a fixed table; peers without an entry behave as
// unreachable.
type stubFetcher struct {
	mu      sync.Mutex
	answers map[string]string
	seen    []string
}

func (s *stubFetcher) answer(peerID, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[peerID] = body
}

func (s *stubFetcher) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func (s *stubFetcher) Fetch(_ context.Context, peer Peer, _ string) FetchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, peer.ID)
	body, ok := s.answers[peer.ID]
	if !ok {
		return NotFound(peer.ID)
	}
	return Found(peer.ID, []byte(body))
}

type brokenStore struct {
	cache.Store
	getErr error
	putErr error
}

func (b *brokenStore) Get(ctx context.Context, name string) (*cache.ReadResult, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	return b.Store.Get(ctx, name)
}

func (b *brokenStore) Put(ctx context.Context, name string, body io.Reader) (*cache.Entry, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}
	return b.Store.Put(ctx, name, body)
}
