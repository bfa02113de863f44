package gateway

// Package gateway wraps an http.RoundTripper so every outbound domain API
// call carries the current access token, and a mid-flight token expiry is
// absorbed by exactly one shared refresh.

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
)

// Refresher exchanges a refresh token for a rotated pair. Implemented by the
// auth service.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)
}

type metricsSink interface {
	Count(name string, value int64, tags map[string]string)
}

// Config groups Gateway dependencies.
type Config struct {
	// Base is the underlying transport, http.DefaultTransport when nil.
	Base      http.RoundTripper
	Refresher Refresher
	Metrics   metricsSink
	Logger    *slog.Logger

	// RetryBackoff is the pause before the single retry of an unavailable
	// refresh transport.
	RetryBackoff time.Duration
}

// Gateway is an http.RoundTripper that attaches the session's access token to
// every request and transparently renews it on an expiry 401. Refreshes are
// deduplicated: no matter how many requests fail at once, one refresh runs and
// all of them resume with its result. A terminal refresh failure clears the
// session; callers must route back through login.
type Gateway struct {
	base      http.RoundTripper
	refresher Refresher
	metrics   metricsSink
	logger    *slog.Logger
	backoff   time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	pair    domainauth.TokenPair
	haveSet bool
}

var _ http.RoundTripper = (*Gateway)(nil)

// New builds a Gateway. Tokens must be supplied via SetTokens before use.
func New(cfg Config) *Gateway {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Gateway{
		base:      base,
		refresher: cfg.Refresher,
		metrics:   cfg.Metrics,
		logger:    logger,
		backoff:   backoff,
	}
}

// SetTokens installs a fresh pair, for example right after login.
func (g *Gateway) SetTokens(pair domainauth.TokenPair) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pair = pair
	g.haveSet = true
}

// Tokens returns the current pair and whether a session is present.
func (g *Gateway) Tokens() (domainauth.TokenPair, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pair, g.haveSet
}

// Clear drops the session, for example on logout.
func (g *Gateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pair = domainauth.TokenPair{}
	g.haveSet = false
}

// RoundTrip sends the request with the current access token. On a 401 it
// joins the shared refresh, then replays the original request once with the
// token the refresh produced. Requests whose bodies cannot be replayed
// surface the 401 unchanged.
func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	pair, ok := g.Tokens()
	if !ok {
		return nil, apperrors.Unauthenticated("no session")
	}

	resp, err := g.send(req, pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if req.Body != nil && req.GetBody == nil {
		// The body is already consumed and cannot be rebuilt.
		return resp, nil
	}

	renewed, err := g.awaitRefresh(req.Context(), pair.RefreshToken)
	if err != nil {
		closeBody(resp)
		return nil, err
	}
	closeBody(resp)

	// Replay with the token produced by the awaited refresh, never a stale
	// capture from before the wait.
	return g.send(req, renewed.AccessToken)
}

func (g *Gateway) send(req *http.Request, accessToken string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	out.Header.Set("Authorization", "Bearer "+accessToken)
	return g.base.RoundTrip(out)
}

// awaitRefresh joins the single refresh in flight for this refresh token.
// The refresh itself runs detached from any one caller's context so a
// cancelled waiter does not abort it for everyone else.
func (g *Gateway) awaitRefresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	ch := g.group.DoChan(refreshToken, func() (any, error) {
		return g.refresh(context.WithoutCancel(ctx), refreshToken)
	})

	select {
	case <-ctx.Done():
		return domainauth.TokenPair{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			g.count("auth.refresh", "deduped")
		}
		if res.Err != nil {
			return domainauth.TokenPair{}, res.Err
		}
		return res.Val.(domainauth.TokenPair), nil
	}
}

// refresh performs the actual exchange. An unavailable refresh transport is
// retried once with backoff; any other failure is terminal and clears the
// session so every waiter sees the same session-expired outcome.
func (g *Gateway) refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	pair, err := g.refresher.Refresh(ctx, refreshToken)
	if apperrors.IsUpstreamUnavailable(err) {
		g.count("auth.gateway", "retry")
		g.logger.Warn("refresh transport unavailable, retrying once", "error", err)
		select {
		case <-ctx.Done():
			return domainauth.TokenPair{}, ctx.Err()
		case <-time.After(g.backoff):
		}
		pair, err = g.refresher.Refresh(ctx, refreshToken)
	}
	if err != nil {
		if apperrors.IsUpstreamUnavailable(err) {
			return domainauth.TokenPair{}, err
		}
		g.Clear()
		g.count("auth.refresh", "expired")
		g.logger.Warn("session refresh failed, session cleared", "error", err)
		return domainauth.TokenPair{}, apperrors.RefreshExpired(err)
	}

	g.SetTokens(pair)
	g.count("auth.refresh", "success")
	return pair, nil
}

func (g *Gateway) count(name, outcome string) {
	if g.metrics == nil {
		return
	}
	g.metrics.Count(name, 1, map[string]string{"outcome": outcome})
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
