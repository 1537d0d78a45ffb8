// Package cryptoutil provides the cryptographic primitives the rest of the
// system is built on: PEM/SPKI parsing, RSA and Ed25519 signature
// verification, a Base58 codec, fingerprinting, and secure random
// generators for public identifiers, challenges, and API keys.
package cryptoutil

import "errors"

// Sentinel errors returned by the verification functions in this package.
var (
	ErrMalformedKey     = errors.New("cryptoutil: malformed key")
	ErrBadSignature     = errors.New("cryptoutil: signature verification failed")
	ErrUnsupportedAlgo  = errors.New("cryptoutil: unsupported algorithm")
	ErrInvalidBase58    = errors.New("cryptoutil: invalid base58 input")
	ErrInvalidKeyLength = errors.New("cryptoutil: invalid key length")
	ErrInvalidSigLength = errors.New("cryptoutil: invalid signature length")
)
