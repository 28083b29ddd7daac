package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// Commit-reveal fairness: each round publishes SHA-256(serverSeed) when it
// opens and reveals serverSeed after the crash, so players can re-run the
// draw and check the multiplier.

func GenerateServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func SeedHash(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// FairEntropy derives the draw from HMAC-SHA256(serverSeed, clientSeed:nonce).
// Deterministic: the same seeds and nonce always produce the same draw.
type FairEntropy struct {
	ServerSeed string
	ClientSeed string
	Nonce      int
}

func (f FairEntropy) Draw(max int64) (int64, error) {
	if max <= 0 {
		return 0, fmt.Errorf("fair entropy draw: max %d must be positive", max)
	}

	h := hmac.New(sha256.New, []byte(f.ServerSeed))
	fmt.Fprintf(h, "%s:%d", f.ClientSeed, f.Nonce)
	sum := h.Sum(nil)

	// 64 bits of hash reduced modulo max. The bias is ~max/2^64, far below
	// anything observable for table-sized draws.
	v := binary.BigEndian.Uint64(sum[:8])
	return int64(v % uint64(max)), nil
}

// VerifyCrashPoint re-runs the committed draw and compares the outcome. The
// round totals must be the ones published at lock time.
func VerifyCrashPoint(serverSeed, clientSeed string, nonce int, totalAmount decimal.Decimal, totalBetCount int, claimed float64) bool {
	selector := NewSelector(FairEntropy{
		ServerSeed: serverSeed,
		ClientSeed: clientSeed,
		Nonce:      nonce,
	})

	got, err := selector.SelectCrashMultiplier(totalAmount, totalBetCount)
	if err != nil {
		return false
	}
	return got == claimed
}
