package e2e

import (
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/candleworks/candle/internal/api"
	"github.com/candleworks/candle/internal/cache"
	"github.com/candleworks/candle/internal/client"
	"github.com/candleworks/candle/internal/medium"
	"github.com/candleworks/candle/internal/remote"
	"github.com/candleworks/candle/internal/store"
	"github.com/candleworks/candle/internal/syncq"
)

const testAPIKey = "e2e-test-key"

// serverFixture is a real API server over a temp SQLite store.
type serverFixture struct {
	Store *store.SQLiteStore
	HTTP  *httptest.Server
}

func newServer(t *testing.T) *serverFixture {
	t.Helper()

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("server store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(db, testAPIKey, "e2e")))
	t.Cleanup(srv.Close)

	return &serverFixture{Store: db, HTTP: srv}
}

// toggleProbe lets a test flip a client between online and offline.
type toggleProbe struct {
	mu     sync.Mutex
	online bool
}

func (p *toggleProbe) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *toggleProbe) setOnline(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

// clientFixture is a full client stack against the given server.
type clientFixture struct {
	Service *client.Service
	Cache   *cache.Store
	Queue   *syncq.Queue
	Probe   *toggleProbe
}

func newClient(t *testing.T, srv *serverFixture) *clientFixture {
	t.Helper()

	m := medium.NewMemory()
	c := cache.New(m, 24*time.Hour)
	q := syncq.New(m)
	probe := &toggleProbe{online: true}
	ds := remote.NewHTTP(srv.HTTP.URL, testAPIKey)

	return &clientFixture{
		Service: client.NewService(c, q, ds, probe, nil),
		Cache:   c,
		Queue:   q,
		Probe:   probe,
	}
}
