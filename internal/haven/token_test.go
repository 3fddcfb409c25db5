package haven_test

import (
	"testing"
	"time"

	"keyhaven/internal/haven"
)

func TestAccessToken_Expired(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token haven.AccessToken
		want  bool
	}{
		{"zero expiry never expires", haven.AccessToken{Value: "t"}, false},
		{"future expiry", haven.AccessToken{Value: "t", ExpiresAt: now.Add(time.Minute)}, false},
		{"past expiry", haven.AccessToken{Value: "t", ExpiresAt: now.Add(-time.Minute)}, true},
		{"exact expiry is expired", haven.AccessToken{Value: "t", ExpiresAt: now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccessToken_String(t *testing.T) {
	tok := haven.AccessToken{Value: "secret-value"}
	if tok.String() != "secret-value" {
		t.Errorf("String() = %q, want %q", tok.String(), "secret-value")
	}
}
