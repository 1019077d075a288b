// Package keypair manages the gateway's Ed25519 signing identity:
// loading it from disk, generating and persisting one if absent, and
// signing/verifying messages in their canonical (unsigned) form.
package keypair

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lorawan-server/gatewayd/internal/wire"
)

// Keypair holds the gateway's signing identity.
type Keypair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Load reads a keypair from path, generating and persisting a fresh
// one if the file does not exist.
func Load(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("keypair: read %s: %w", path, err)
		}
		return generate(path)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair: %s: want %d bytes, got %d", path, ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	return &Keypair{Public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

func generate(path string) (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keypair: generate: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("keypair: mkdir: %w", err)
	}
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		return nil, fmt.Errorf("keypair: write %s: %w", path, err)
	}
	return &Keypair{Public: pub, private: priv}, nil
}

// Sign signs msg in its canonical form: the signature field is
// cleared, the message is marshaled, and the resulting bytes are
// signed and written back into the Signature field.
func Sign(kp *Keypair, msg wire.Signable) error {
	canonical := msg.ClearSignature()
	b, err := canonical.Marshal()
	if err != nil {
		return fmt.Errorf("keypair: sign: %w", err)
	}
	msg.SetSignature(ed25519.Sign(kp.private, b))
	return nil
}

// Verify checks msg's signature against its canonical form.
func Verify(pub ed25519.PublicKey, msg wire.Signable) (bool, error) {
	sig := msg.GetSignature()
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	canonical := msg.ClearSignature()
	b, err := canonical.Marshal()
	if err != nil {
		return false, fmt.Errorf("keypair: verify: %w", err)
	}
	return ed25519.Verify(pub, b, sig), nil
}
