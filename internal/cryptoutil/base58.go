package cryptoutil

import (
	"math/big"
)

// base58Alphabet is the Bitcoin Base58 alphabet: base64 minus
// 0 (zero), O (capital o), I (capital i) and l (lower L), plus '+' and '/'
// removed, to avoid visually ambiguous characters in copy-pasted addresses.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Index [256]int8

func init() {
	for i := range base58Index {
		base58Index[i] = -1
	}
	for i, c := range base58Alphabet {
		base58Index[c] = int8(i)
	}
}

// Base58Encode encodes data using the Bitcoin Base58 alphabet. Leading
// zero bytes are preserved as leading '1' characters, matching the
// convention used by Base58Check-style wallet addresses.
func Base58Encode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}

	num := new(big.Int).SetBytes(data)
	base := big.NewInt(58)
	mod := new(big.Int)

	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		out = append(out, base58Alphabet[0])
	}

	// reverse
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return string(out)
}

// Base58Decode decodes a Base58 string. It rejects any character outside
// the Bitcoin alphabet explicitly, returning ErrInvalidBase58, rather than
// silently skipping or truncating.
func Base58Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	zeros := 0
	for zeros < len(s) && s[zeros] == base58Alphabet[0] {
		zeros++
	}

	num := new(big.Int)
	base := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		idx := base58Index[s[i]]
		if idx < 0 {
			return nil, ErrInvalidBase58
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(idx)))
	}

	decoded := num.Bytes()
	out := make([]byte, zeros+len(decoded))
	copy(out[zeros:], decoded)
	return out, nil
}
