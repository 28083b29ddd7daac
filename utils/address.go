package utils

import (
	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	minSolanaAddressLen = 32
	maxSolanaAddressLen = 44
)

// IsValidSolanaAddress reports whether addr looks like a Solana public key:
// base-58 text between 32 and 44 characters.
func IsValidSolanaAddress(addr string) bool {
	if len(addr) < minSolanaAddressLen || len(addr) > maxSolanaAddressLen {
		return false
	}

	// base58.Decode returns an empty slice when addr contains characters
	// outside the base-58 alphabet.
	return len(base58.Decode(addr)) != 0
}

// DecodeBase58Key decodes a base-58 encoded key and reports whether it has
// the expected byte length.
func DecodeBase58Key(encoded string, wantLen int) ([]byte, bool) {
	decoded := base58.Decode(encoded)
	if len(decoded) != wantLen {
		return nil, false
	}
	return decoded, true
}
