// Package cloud implements the encrypted cloud store: password-scoped
// sessions over a pluggable record transport. A session is opened with a
// derived keypair; only the session layer turns cryptographic verification
// failures into the wrong-password domain error.
package cloud

import (
	"context"
	"errors"
	"fmt"

	"keyhaven/internal/haven"
)

// Store implements haven.CloudStore over a Transport. One Store is
// constructed per loader instance against a configured backend.
type Store struct {
	transport haven.Transport
	tokens    haven.TokenProvider
	crypto    haven.Crypto
	clock     haven.Clock
	idgen     haven.IDGenerator
	logger    haven.Logger
}

var _ haven.CloudStore = (*Store)(nil)

// NewStore creates a cloud store with the provided collaborators.
func NewStore(transport haven.Transport, tokens haven.TokenProvider, crypto haven.Crypto, clock haven.Clock, idgen haven.IDGenerator, logger haven.Logger) *Store {
	return &Store{
		transport: transport,
		tokens:    tokens,
		crypto:    crypto,
		clock:     clock,
		idgen:     idgen,
		logger:    logger,
	}
}

// Open pulls the identity's record and decrypts it with keys. An absent
// record yields a session without a payload; a record that does not verify
// against keys yields haven.ErrWrongPassword. The two outcomes are never
// conflated.
func (s *Store) Open(ctx context.Context, keys haven.KeyPair, identity string) (haven.Session, error) {
	token, err := s.tokens.GetToken(ctx, haven.TokenScope{Service: "vault", Operation: "get"})
	if err != nil {
		return nil, fmt.Errorf("acquiring vault token: %w", err)
	}

	rec, err := s.transport.Pull(ctx, identity, token)
	if err != nil {
		return nil, fmt.Errorf("retrieving backup record: %w", err)
	}

	sess := &session{store: s, identity: identity, keys: keys}
	if rec != nil {
		payload, err := s.crypto.Decrypt(rec.Payload, keys.Private)
		if err != nil {
			if errors.Is(err, haven.ErrDecryptFailed) {
				return nil, haven.ErrWrongPassword
			}
			return nil, fmt.Errorf("decrypting backup record: %w", err)
		}
		sess.record = rec
		sess.payload = payload
		s.logger.Debug("session opened", "identity", identity, "revision", rec.Revision)
	} else {
		s.logger.Debug("session opened", "identity", identity, "revision", "none")
	}
	return sess, nil
}

// Purge deletes every record in the account scope. Uses a delete-scoped
// token; no keypair is involved.
func (s *Store) Purge(ctx context.Context) error {
	token, err := s.tokens.GetToken(ctx, haven.TokenScope{Service: "vault", Operation: "delete"})
	if err != nil {
		return fmt.Errorf("acquiring delete token: %w", err)
	}
	if err := s.transport.DeleteAll(ctx, token); err != nil {
		return fmt.Errorf("deleting account records: %w", err)
	}
	return nil
}

// session is bound to the keypair it was opened with. The decrypted payload
// held here is the source of truth for recipient rotation.
type session struct {
	store    *Store
	identity string
	keys     haven.KeyPair
	record   *haven.Record
	payload  []byte
}

var _ haven.Session = (*session)(nil)

func (sn *session) HasRecord() bool { return sn.record != nil }

func (sn *session) Payload() ([]byte, error) {
	if sn.record == nil {
		return nil, fmt.Errorf("session has no record")
	}
	return sn.payload, nil
}

// Save encrypts payload to the session keypair and uploads it, replacing any
// previous revision.
func (sn *session) Save(ctx context.Context, payload []byte) error {
	rec, err := sn.push(ctx, payload, sn.keys.Public)
	if err != nil {
		return err
	}
	sn.record = rec
	sn.payload = payload
	return nil
}

// Rotate re-encrypts the held plaintext for the next keypair and uploads it.
// The record content is not re-fetched; the session's decrypted payload is
// the source of truth.
func (sn *session) Rotate(ctx context.Context, next haven.KeyPair) error {
	if sn.record == nil {
		return fmt.Errorf("session has no record to rotate")
	}
	rec, err := sn.push(ctx, sn.payload, next.Public)
	if err != nil {
		return err
	}
	sn.record = rec
	sn.keys = next
	sn.store.logger.Info("recipients rotated", "identity", sn.identity, "key", next.Public.Fingerprint())
	return nil
}

// Delete removes the identity's record. The transport's ErrRecordNotFound
// passes through raw; classification happens in the loader.
func (sn *session) Delete(ctx context.Context) error {
	token, err := sn.store.tokens.GetToken(ctx, haven.TokenScope{Service: "vault", Operation: "delete"})
	if err != nil {
		return fmt.Errorf("acquiring delete token: %w", err)
	}
	if err := sn.store.transport.Delete(ctx, sn.identity, token); err != nil {
		return err
	}
	sn.record = nil
	sn.payload = nil
	return nil
}

func (sn *session) push(ctx context.Context, payload []byte, recipient haven.PublicKey) (*haven.Record, error) {
	ciphertext, err := sn.store.crypto.Encrypt(payload, []haven.PublicKey{recipient})
	if err != nil {
		return nil, fmt.Errorf("encrypting record: %w", err)
	}

	token, err := sn.store.tokens.GetToken(ctx, haven.TokenScope{Service: "vault", Operation: "put"})
	if err != nil {
		return nil, fmt.Errorf("acquiring vault token: %w", err)
	}

	rec := &haven.Record{
		Identity:  sn.identity,
		Payload:   ciphertext,
		Revision:  sn.store.idgen.New(),
		UpdatedAt: sn.store.clock.Now(),
	}
	stored, err := sn.store.transport.Push(ctx, rec, token)
	if err != nil {
		return nil, fmt.Errorf("uploading record: %w", err)
	}
	return stored, nil
}
