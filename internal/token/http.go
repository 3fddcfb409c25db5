package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"keyhaven/internal/haven"
)

// HTTPProvider requests scoped tokens from the auth service.
type HTTPProvider struct {
	Base   string
	APIKey string
	HTTP   *http.Client
}

var _ haven.TokenProvider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a client for the given auth endpoint.
func NewHTTPProvider(base, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		Base:   base,
		APIKey: apiKey,
		HTTP:   http.DefaultClient,
	}
}

type tokenRequest struct {
	Service   string `json:"service"`
	Operation string `json:"operation"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p *HTTPProvider) GetToken(ctx context.Context, scope haven.TokenScope) (haven.AccessToken, error) {
	body, err := json.Marshal(tokenRequest{Service: scope.Service, Operation: scope.Operation})
	if err != nil {
		return haven.AccessToken{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Base+"/token", bytes.NewReader(body))
	if err != nil {
		return haven.AccessToken{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.APIKey)

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return haven.AccessToken{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return haven.AccessToken{}, fmt.Errorf("token request failed: %s", resp.Status)
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return haven.AccessToken{}, err
	}
	if out.Token == "" {
		return haven.AccessToken{}, fmt.Errorf("auth service returned an empty token")
	}
	return haven.AccessToken{Value: out.Token, ExpiresAt: out.ExpiresAt}, nil
}
