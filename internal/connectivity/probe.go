// Package connectivity answers "can we reach the datastore right now"
// and reports transitions between online and offline.
package connectivity

import (
	"net/http"
	"sync"
	"time"
)

// Probe reports whether the remote datastore is reachable.
type Probe interface {
	IsOnline() bool
}

// Static is a fixed-answer probe, used for forced-offline mode and in
// tests.
type Static bool

func (s Static) IsOnline() bool { return bool(s) }

// HTTPProbe checks reachability via the server health endpoint. Results
// are cached briefly so hot paths can ask without hammering the server.
type HTTPProbe struct {
	baseURL string
	client  *http.Client

	mu        sync.Mutex
	lastCheck time.Time
	lastState bool
	cacheFor  time.Duration
}

// NewHTTPProbe creates a probe against the server at baseURL.
func NewHTTPProbe(baseURL string) *HTTPProbe {
	return &HTTPProbe{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 5 * time.Second},
		cacheFor: 3 * time.Second,
	}
}

// IsOnline reports whether the last health check within the cache
// window succeeded, performing a fresh check when the window expired.
func (p *HTTPProbe) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.lastCheck) < p.cacheFor {
		return p.lastState
	}

	p.lastState = p.check()
	p.lastCheck = time.Now()
	return p.lastState
}

func (p *HTTPProbe) check() bool {
	if p.baseURL == "" {
		return false
	}
	resp, err := p.client.Get(p.baseURL + "/api/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
