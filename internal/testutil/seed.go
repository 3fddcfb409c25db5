package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"sync"

	"keyhaven/internal/haven"
)

// FakeSeedService derives seeds locally instead of calling a real service.
// Deterministic: the same (identity, blinded) pair always yields the same
// seed, so brain-key derivation in tests behaves like production.
type FakeSeedService struct {
	mu    sync.Mutex
	calls int

	// Err, when set, is returned from every GenerateSeed call.
	Err error
}

func NewFakeSeedService() *FakeSeedService {
	return &FakeSeedService{}
}

func (s *FakeSeedService) GenerateSeed(_ context.Context, identity string, blinded []byte, _ haven.AccessToken) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	mac := hmac.New(sha256.New, []byte("seed-service-fixture"))
	mac.Write([]byte(identity))
	mac.Write(blinded)
	return mac.Sum(nil), nil
}

// Calls returns how many times GenerateSeed was invoked.
func (s *FakeSeedService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
