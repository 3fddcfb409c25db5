package haven

import "context"

// BrainKeyDeriver deterministically turns a password into a keypair for the
// identity it was constructed for. The same password always yields
// cryptographically equivalent keys; different passwords yield unrelated keys.
// Derivation involves a network round trip to the seed service, so this is the
// one collaborator that can fail before any cloud store interaction; its
// failures propagate unclassified.
type BrainKeyDeriver interface {
	Derive(ctx context.Context, password string) (KeyPair, error)
}
