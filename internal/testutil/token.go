package testutil

import (
	"context"
	"fmt"
	"sync"

	"keyhaven/internal/haven"
)

// FakeTokenProvider hands out "token-<service>-<operation>" tokens and
// records every scope it was asked for.
type FakeTokenProvider struct {
	mu     sync.Mutex
	scopes []haven.TokenScope

	// Err, when set, is returned from every GetToken call.
	Err error
}

var _ haven.TokenProvider = (*FakeTokenProvider)(nil)

func NewFakeTokenProvider() *FakeTokenProvider {
	return &FakeTokenProvider{}
}

func (p *FakeTokenProvider) GetToken(_ context.Context, scope haven.TokenScope) (haven.AccessToken, error) {
	p.mu.Lock()
	p.scopes = append(p.scopes, scope)
	p.mu.Unlock()

	if p.Err != nil {
		return haven.AccessToken{}, p.Err
	}
	return haven.AccessToken{Value: fmt.Sprintf("token-%s-%s", scope.Service, scope.Operation)}, nil
}

// Scopes returns the scopes requested so far, in order.
func (p *FakeTokenProvider) Scopes() []haven.TokenScope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]haven.TokenScope{}, p.scopes...)
}
