package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultScriptURL is the hosted checkout script served to the browser.
const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

// ScriptLoader verifies the hosted checkout script exactly once per process.
// Concurrent callers share a single in-flight probe; a failed probe is not
// cached so the next checkout attempt retries.
type ScriptLoader struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	loaded   bool
	inflight chan struct{}
	loadErr  error
}

// NewScriptLoader constructs a loader for the given script URL.
func NewScriptLoader(scriptURL string, logger *zap.Logger) *ScriptLoader {
	if scriptURL == "" {
		scriptURL = DefaultScriptURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptLoader{
		url:        scriptURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// URL returns the script location handed to the browser.
func (l *ScriptLoader) URL() string {
	return l.url
}

// Ensure confirms the checkout script is reachable. The first caller probes;
// everyone else either returns immediately (already loaded) or waits for the
// in-flight probe instead of starting a second one.
func (l *ScriptLoader) Ensure(ctx context.Context) error {
	l.mu.Lock()
	if l.loaded {
		l.mu.Unlock()
		return nil
	}
	if l.inflight != nil {
		waiter := l.inflight
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waiter:
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.loaded {
			return nil
		}
		return l.loadErr
	}

	done := make(chan struct{})
	l.inflight = done
	l.mu.Unlock()

	err := l.probe(ctx)

	l.mu.Lock()
	l.inflight = nil
	l.loadErr = err
	if err == nil {
		l.loaded = true
	}
	l.mu.Unlock()
	close(done)

	return err
}

func (l *ScriptLoader) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, l.url, nil)
	if err != nil {
		return fmt.Errorf("build script probe: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.logger.Warn("checkout script probe failed", zap.Error(err))
		return fmt.Errorf("checkout script unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return fmt.Errorf("checkout script returned status %d", resp.StatusCode)
	}
	return nil
}
