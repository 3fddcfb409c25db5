package cloud

import (
	"context"
	"errors"
	"testing"

	"keyhaven/internal/crypto"
	"keyhaven/internal/haven"
	"keyhaven/internal/testutil"
)

func newTestStore(transport haven.Transport, tokens haven.TokenProvider) (*Store, *crypto.Provider) {
	prov := crypto.NewProvider()
	return NewStore(transport, tokens, prov, testutil.FixedClock(), testutil.NewStubIDGenerator(), haven.NewNopLogger()), prov
}

func generateKeys(t *testing.T, prov *crypto.Provider) haven.KeyPair {
	t.Helper()
	kp, err := prov.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	return kp
}

func TestStore_Open_NoRecord(t *testing.T) {
	store, prov := newTestStore(NewMemoryTransport(), testutil.NewFakeTokenProvider())
	keys := generateKeys(t, prov)

	sess, err := store.Open(context.Background(), keys, "alice")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if sess.HasRecord() {
		t.Error("HasRecord() = true for an empty account")
	}
	if _, err := sess.Payload(); err == nil {
		t.Error("Payload() on an empty session expected error")
	}
}

func TestStore_SaveThenOpen(t *testing.T) {
	ctx := context.Background()
	transport := NewMemoryTransport()
	store, prov := newTestStore(transport, testutil.NewFakeTokenProvider())
	keys := generateKeys(t, prov)

	sess, err := store.Open(ctx, keys, "alice")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	payload := []byte("exported key bytes")
	if err := sess.Save(ctx, payload); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !sess.HasRecord() {
		t.Fatal("HasRecord() = false after Save")
	}

	// The stored payload must be ciphertext, never the plaintext.
	rec, err := transport.Pull(ctx, "alice", haven.AccessToken{})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if string(rec.Payload) == string(payload) {
		t.Fatal("transport stored the plaintext payload")
	}
	if rec.Revision == "" {
		t.Error("stored record has no revision")
	}

	reopened, err := store.Open(ctx, keys, "alice")
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got, err := reopened.Payload()
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Payload() = %q, want %q", got, payload)
	}
}

func TestStore_Open_WrongKey(t *testing.T) {
	ctx := context.Background()
	store, prov := newTestStore(NewMemoryTransport(), testutil.NewFakeTokenProvider())
	owner := generateKeys(t, prov)
	stranger := generateKeys(t, prov)

	sess, err := store.Open(ctx, owner, "alice")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sess.Save(ctx, []byte("secret")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	_, err = store.Open(ctx, stranger, "alice")
	if !errors.Is(err, haven.ErrWrongPassword) {
		t.Fatalf("Open() with wrong key error = %v, want ErrWrongPassword", err)
	}
}

func TestSession_Rotate(t *testing.T) {
	ctx := context.Background()
	store, prov := newTestStore(NewMemoryTransport(), testutil.NewFakeTokenProvider())
	oldKeys := generateKeys(t, prov)
	newKeys := generateKeys(t, prov)

	sess, err := store.Open(ctx, oldKeys, "alice")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	payload := []byte("rotating payload")
	if err := sess.Save(ctx, payload); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := sess.Rotate(ctx, newKeys); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	t.Run("new key opens", func(t *testing.T) {
		reopened, err := store.Open(ctx, newKeys, "alice")
		if err != nil {
			t.Fatalf("Open() with new key error = %v", err)
		}
		got, err := reopened.Payload()
		if err != nil {
			t.Fatalf("Payload() error = %v", err)
		}
		if string(got) != string(payload) {
			t.Errorf("Payload() = %q, want %q", got, payload)
		}
	})

	t.Run("old key rejected", func(t *testing.T) {
		_, err := store.Open(ctx, oldKeys, "alice")
		if !errors.Is(err, haven.ErrWrongPassword) {
			t.Fatalf("Open() with old key error = %v, want ErrWrongPassword", err)
		}
	})
}

func TestSession_Rotate_NoRecord(t *testing.T) {
	ctx := context.Background()
	store, prov := newTestStore(NewMemoryTransport(), testutil.NewFakeTokenProvider())
	keys := generateKeys(t, prov)
	next := generateKeys(t, prov)

	sess, err := store.Open(ctx, keys, "alice")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sess.Rotate(ctx, next); err == nil {
		t.Fatal("Rotate() on an empty session expected error")
	}
}

func TestSession_Delete(t *testing.T) {
	ctx := context.Background()
	transport := NewMemoryTransport()
	store, prov := newTestStore(transport, testutil.NewFakeTokenProvider())
	keys := generateKeys(t, prov)

	t.Run("removes the record", func(t *testing.T) {
		sess, err := store.Open(ctx, keys, "alice")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if err := sess.Save(ctx, []byte("p")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		if err := sess.Delete(ctx); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if transport.Count() != 0 {
			t.Errorf("record count = %d, want 0", transport.Count())
		}
		if sess.HasRecord() {
			t.Error("HasRecord() = true after Delete")
		}
	})

	t.Run("absent record passes ErrRecordNotFound through", func(t *testing.T) {
		sess, err := store.Open(ctx, keys, "bob")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		err = sess.Delete(ctx)
		if !errors.Is(err, haven.ErrRecordNotFound) {
			t.Fatalf("Delete() error = %v, want ErrRecordNotFound", err)
		}
	})
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	transport := NewMemoryTransport()
	tokens := testutil.NewFakeTokenProvider()
	store, prov := newTestStore(transport, tokens)
	keys := generateKeys(t, prov)

	for _, identity := range []string{"alice", "bob"} {
		sess, err := store.Open(ctx, keys, identity)
		if err != nil {
			t.Fatalf("Open(%q) error = %v", identity, err)
		}
		if err := sess.Save(ctx, []byte("p")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	if err := store.Purge(ctx); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if transport.Count() != 0 {
		t.Errorf("record count = %d, want 0 after Purge", transport.Count())
	}

	// Purge must run on a delete-scoped token.
	scopes := tokens.Scopes()
	last := scopes[len(scopes)-1]
	want := haven.TokenScope{Service: "vault", Operation: "delete"}
	if last != want {
		t.Errorf("purge token scope = %+v, want %+v", last, want)
	}
}

func TestStore_TokenScopes(t *testing.T) {
	ctx := context.Background()
	tokens := testutil.NewFakeTokenProvider()
	store, prov := newTestStore(NewMemoryTransport(), tokens)
	keys := generateKeys(t, prov)

	sess, err := store.Open(ctx, keys, "alice")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sess.Save(ctx, []byte("p")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := sess.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := []haven.TokenScope{
		{Service: "vault", Operation: "get"},
		{Service: "vault", Operation: "put"},
		{Service: "vault", Operation: "delete"},
	}
	got := tokens.Scopes()
	if len(got) != len(want) {
		t.Fatalf("scopes = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scope[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
