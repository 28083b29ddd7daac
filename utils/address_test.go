package utils

import (
	"strings"
	"testing"
)

func TestIsValidSolanaAddress(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want bool
	}{
		{"mainnet treasury style", "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", true},
		{"system program", "11111111111111111111111111111111", true},
		{"token program", "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", true},
		{"min length", strings.Repeat("A", 32), true},
		{"max length", strings.Repeat("A", 44), true},
		{"empty", "", false},
		{"too short", strings.Repeat("A", 31), false},
		{"too long", strings.Repeat("A", 45), false},
		{"zero digit not in alphabet", strings.Repeat("0", 40), false},
		{"uppercase O not in alphabet", "O" + strings.Repeat("A", 39), false},
		{"ethereum style", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSolanaAddress(tt.addr); got != tt.want {
				t.Errorf("IsValidSolanaAddress(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestDecodeBase58Key(t *testing.T) {
	// 32 '1' characters decode to 32 zero bytes.
	key, ok := DecodeBase58Key(strings.Repeat("1", 32), 32)
	if !ok || len(key) != 32 {
		t.Fatalf("expected a 32-byte key, got ok=%v len=%d", ok, len(key))
	}

	if _, ok := DecodeBase58Key(strings.Repeat("1", 32), 64); ok {
		t.Error("wrong expected length must fail")
	}
	if _, ok := DecodeBase58Key("not base58 0OIl", 11); ok {
		t.Error("non-base58 input must fail")
	}
}
