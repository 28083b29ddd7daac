package game

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"
)

func TestGenerateServerSeed(t *testing.T) {
	seed, err := GenerateServerSeed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seed) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(seed))
	}
	if _, err := hex.DecodeString(seed); err != nil {
		t.Fatalf("seed is not valid hex: %v", err)
	}

	other, err := GenerateServerSeed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed == other {
		t.Error("two generated seeds must differ")
	}
}

func TestSeedHashCommitment(t *testing.T) {
	seed := "deadbeef"
	sum := sha256.Sum256([]byte(seed))
	want := hex.EncodeToString(sum[:])

	if got := SeedHash(seed); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestFairEntropyDeterministic(t *testing.T) {
	entropy := &FairEntropy{
		ServerSeed: "a3f1c2d4e5b6a7f8",
		ClientSeed: "round-ref-1",
		Nonce:      7,
	}

	first, err := entropy.Draw(200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := entropy.Draw(200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("same seed material must draw the same value: %d vs %d", first, second)
	}
	if first < 0 || first >= 200 {
		t.Errorf("draw out of range: %d", first)
	}

	other := &FairEntropy{ServerSeed: entropy.ServerSeed, ClientSeed: entropy.ClientSeed, Nonce: 8}
	changed, err := other.Draw(200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed == first {
		t.Log("nonce change produced the same draw; possible but suspicious for a fixed vector")
	}
}

func TestVerifyCrashPoint(t *testing.T) {
	entropy := &FairEntropy{ServerSeed: "0011223344556677", ClientSeed: "ref-abc", Nonce: 42}
	amount := decimal.NewFromInt(750)

	crash, err := NewSelector(entropy).SelectCrashMultiplier(amount, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !VerifyCrashPoint(entropy.ServerSeed, entropy.ClientSeed, entropy.Nonce, amount, 3, crash) {
		t.Error("verification of the actual crash point must succeed")
	}
	if VerifyCrashPoint(entropy.ServerSeed, entropy.ClientSeed, entropy.Nonce, amount, 3, 123.45) {
		t.Error("verification of a fabricated crash point must fail")
	}
}
