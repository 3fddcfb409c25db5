package brainkey

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"keyhaven/internal/haven"
)

// HTTPSeedService talks to the seed service over HTTP.
type HTTPSeedService struct {
	Base string
	HTTP *http.Client
}

var _ SeedService = (*HTTPSeedService)(nil)

// NewHTTPSeedService creates a client for the given base endpoint.
func NewHTTPSeedService(base string) *HTTPSeedService {
	return &HTTPSeedService{
		Base: base,
		HTTP: http.DefaultClient,
	}
}

type seedRequest struct {
	Identity string `json:"identity"`
	Blinded  string `json:"blinded"`
}

type seedResponse struct {
	Seed string `json:"seed"`
}

// GenerateSeed posts the blinded password and returns the service seed.
func (s *HTTPSeedService) GenerateSeed(ctx context.Context, identity string, blinded []byte, token haven.AccessToken) ([]byte, error) {
	body, err := json.Marshal(seedRequest{
		Identity: identity,
		Blinded:  base64.StdEncoding.EncodeToString(blinded),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Base+"/seed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.String())

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("seed request failed: %s", resp.Status)
	}

	var out seedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	seed, err := base64.StdEncoding.DecodeString(out.Seed)
	if err != nil {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	if len(seed) == 0 {
		return nil, fmt.Errorf("seed service returned an empty seed")
	}
	return seed, nil
}
