package token

import (
	"fmt"

	"keyhaven/internal/config"
	"keyhaven/internal/haven"
)

// NewProviderFromConfig creates a TokenProvider based on the token config
// type. HTTP providers are wrapped in an expiry-aware cache.
func NewProviderFromConfig(cfg config.TokenConfig, clock haven.Clock) (haven.TokenProvider, error) {
	switch cfg.Type {
	case "static", "":
		return NewStaticProvider(cfg.Value), nil
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http token provider requires endpoint to be set")
		}
		return NewCachingProvider(NewHTTPProvider(cfg.Endpoint, cfg.APIKey), clock), nil
	default:
		return nil, fmt.Errorf("unknown token provider type: %q", cfg.Type)
	}
}
