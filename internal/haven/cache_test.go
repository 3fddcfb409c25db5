package haven_test

import (
	"testing"

	"keyhaven/internal/crypto"
	"keyhaven/internal/haven"
	"keyhaven/internal/storage"
	"keyhaven/internal/testutil"
)

// countingStorage counts durable reads so tests can observe the in-memory
// short circuit.
type countingStorage struct {
	haven.Storage
	loads int
}

func (c *countingStorage) Load(name string) (*haven.Entry, error) {
	c.loads++
	return c.Storage.Load(name)
}

func newTestCache(st haven.Storage) (*haven.KeyCache, *crypto.Provider) {
	prov := crypto.NewProvider()
	return haven.NewKeyCache("alice", st, prov, testutil.FixedClock(), haven.NewNopLogger()), prov
}

func TestKeyCache_StoreLoad(t *testing.T) {
	st := storage.NewMemoryStorage()
	cache, prov := newTestCache(st)

	kp, err := prov.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if err := cache.Store(kp.Private); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.Public().Fingerprint() != kp.Public.Fingerprint() {
		t.Fatal("Load() did not return the stored key")
	}

	// The durable entry must survive a fresh cache over the same storage.
	fresh, _ := newTestCache(st)
	got, err = fresh.Load()
	if err != nil {
		t.Fatalf("Load() from fresh cache error = %v", err)
	}
	if got == nil || got.Public().Fingerprint() != kp.Public.Fingerprint() {
		t.Fatal("fresh cache did not load the durable entry")
	}
}

func TestKeyCache_Load_Empty(t *testing.T) {
	cache, _ := newTestCache(storage.NewMemoryStorage())

	got, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Fatal("Load() on empty cache returned a key")
	}
}

func TestKeyCache_MemoryShortCircuit(t *testing.T) {
	counting := &countingStorage{Storage: storage.NewMemoryStorage()}
	cache, prov := newTestCache(counting)

	kp, err := prov.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	if err := cache.Store(kp.Private); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := cache.Load(); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}

	if counting.loads != 0 {
		t.Errorf("durable loads = %d, want 0 while the in-memory handle is set", counting.loads)
	}
}

func TestKeyCache_LoadCachesDurableHit(t *testing.T) {
	st := storage.NewMemoryStorage()
	seedCache, prov := newTestCache(st)
	kp, err := prov.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	if err := seedCache.Store(kp.Private); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	counting := &countingStorage{Storage: st}
	cache, _ := newTestCache(counting)

	for i := 0; i < 3; i++ {
		if _, err := cache.Load(); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}

	// The first Load goes to storage, every later one hits memory.
	if counting.loads != 1 {
		t.Errorf("durable loads = %d, want 1", counting.loads)
	}
}

func TestKeyCache_StoreBytes(t *testing.T) {
	st := storage.NewMemoryStorage()
	cache, prov := newTestCache(st)

	kp, err := prov.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	exported, err := prov.ExportPrivateKey(kp.Private)
	if err != nil {
		t.Fatalf("ExportPrivateKey() error = %v", err)
	}

	key, err := cache.StoreBytes(exported)
	if err != nil {
		t.Fatalf("StoreBytes() error = %v", err)
	}
	if key.Public().Fingerprint() != kp.Public.Fingerprint() {
		t.Error("StoreBytes() returned a different key")
	}

	entry, err := st.Load("alice")
	if err != nil {
		t.Fatalf("storage Load() error = %v", err)
	}
	if entry == nil {
		t.Fatal("StoreBytes() did not persist an entry")
	}
	if entry.Meta["origin"] != "restore" {
		t.Errorf("entry origin = %q, want %q", entry.Meta["origin"], "restore")
	}
}

func TestKeyCache_StoreBytes_Invalid(t *testing.T) {
	cache, _ := newTestCache(storage.NewMemoryStorage())

	if _, err := cache.StoreBytes([]byte("not a key")); err == nil {
		t.Fatal("StoreBytes() with invalid bytes expected error")
	}
}

func TestKeyCache_HasReset(t *testing.T) {
	st := storage.NewMemoryStorage()
	cache, prov := newTestCache(st)

	has, err := cache.Has()
	if err != nil {
		t.Fatalf("Has() error = %v", err)
	}
	if has {
		t.Fatal("Has() = true on empty cache")
	}

	kp, err := prov.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	if err := cache.Store(kp.Private); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	has, err = cache.Has()
	if err != nil {
		t.Fatalf("Has() error = %v", err)
	}
	if !has {
		t.Fatal("Has() = false after Store")
	}

	if err := cache.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	has, err = cache.Has()
	if err != nil {
		t.Fatalf("Has() error = %v", err)
	}
	if has {
		t.Error("Has() = true after Reset")
	}
	got, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Error("Load() returned a key after Reset")
	}
}

func TestKeyCache_ResetIdempotent(t *testing.T) {
	cache, _ := newTestCache(storage.NewMemoryStorage())

	if err := cache.Reset(); err != nil {
		t.Fatalf("Reset() on empty cache error = %v", err)
	}
	if err := cache.Reset(); err != nil {
		t.Fatalf("second Reset() error = %v", err)
	}
}
