// Package chain is the optional blockchain collaborator. Ledger correctness
// never depends on it; anchoring failures are logged and ignored by callers.
package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type Anchor interface {
	// Anchor records payload for (kind, id) and returns a reference hash.
	Anchor(ctx context.Context, kind, id string, payload any) (string, error)
}

// Noop anchors nothing.
type Noop struct{}

func (Noop) Anchor(context.Context, string, string, any) (string, error) {
	return "", nil
}

// Digest computes a content hash locally, without a chain behind it. It
// gives records a stable fingerprint that a later on-chain anchor can match.
type Digest struct{}

func (Digest) Anchor(_ context.Context, kind, id string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("anchor %s %s: %w", kind, id, err)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}
