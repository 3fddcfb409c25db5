// Package token implements access token providers: a static config-pinned
// token, an HTTP client for the auth service, and an expiry-aware cache.
package token

import (
	"context"
	"fmt"
	"sync"

	"keyhaven/internal/haven"
)

// StaticProvider returns the same fixed token for every scope. Used when the
// deployment pins a long-lived credential in config.
type StaticProvider struct {
	token haven.AccessToken
}

var _ haven.TokenProvider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider around a fixed token value.
func NewStaticProvider(value string) *StaticProvider {
	return &StaticProvider{token: haven.AccessToken{Value: value}}
}

func (p *StaticProvider) GetToken(_ context.Context, _ haven.TokenScope) (haven.AccessToken, error) {
	if p.token.Value == "" {
		return haven.AccessToken{}, fmt.Errorf("no access token configured")
	}
	return p.token, nil
}

// CachingProvider wraps another provider and reuses issued tokens per scope
// until they expire. Safe for concurrent use.
type CachingProvider struct {
	source haven.TokenProvider
	clock  haven.Clock

	mu     sync.Mutex
	tokens map[haven.TokenScope]haven.AccessToken
}

var _ haven.TokenProvider = (*CachingProvider)(nil)

// NewCachingProvider creates a cache in front of source.
func NewCachingProvider(source haven.TokenProvider, clock haven.Clock) *CachingProvider {
	return &CachingProvider{
		source: source,
		clock:  clock,
		tokens: make(map[haven.TokenScope]haven.AccessToken),
	}
}

func (p *CachingProvider) GetToken(ctx context.Context, scope haven.TokenScope) (haven.AccessToken, error) {
	p.mu.Lock()
	cached, ok := p.tokens[scope]
	p.mu.Unlock()
	if ok && !cached.Expired(p.clock.Now()) {
		return cached, nil
	}

	token, err := p.source.GetToken(ctx, scope)
	if err != nil {
		return haven.AccessToken{}, err
	}

	p.mu.Lock()
	p.tokens[scope] = token
	p.mu.Unlock()
	return token, nil
}
