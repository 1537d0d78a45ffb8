package cryptoutil

import (
	"crypto/ed25519"
	"fmt"
)

// VerifyEd25519Base58 verifies an Ed25519 signature where the message,
// signature, and public key are all Base58-encoded on the wire — the shape
// wallet-binding challenges use. It rejects public keys and signatures that
// don't decode to exactly 32 and 64 bytes respectively, matching Solana's
// Ed25519 key/signature sizes.
func VerifyEd25519Base58(pubKeyB58, sigB58, message string) error {
	pubKey, err := Base58Decode(pubKeyB58)
	if err != nil {
		return fmt.Errorf("%w: public key: %s", ErrInvalidBase58, err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKeyLength, ed25519.PublicKeySize, len(pubKey))
	}

	sig, err := Base58Decode(sigB58)
	if err != nil {
		return fmt.Errorf("%w: signature: %s", ErrInvalidBase58, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSigLength, ed25519.SignatureSize, len(sig))
	}

	if !ed25519.Verify(ed25519.PublicKey(pubKey), []byte(message), sig) {
		return ErrBadSignature
	}
	return nil
}
