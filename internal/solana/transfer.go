package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"aviator/internal/models"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
)

const (
	systemProgramID = "11111111111111111111111111111111"
	tokenProgramID  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

	// System program instruction index for a lamport transfer.
	systemTransferIx = 2
	// SPL token program instruction index for a token transfer.
	splTransferIx = 3
)

// Transfer moves amount from the treasury to a destination address and
// returns the transaction signature. SOL goes out as a system transfer,
// USDT as an SPL token transfer from the treasury token account.
func (c *Client) Transfer(ctx context.Context, to string, amount decimal.Decimal, currency string) (string, error) {
	if c.treasuryKey == nil {
		return "", errors.New("treasury key is not configured")
	}
	if !amount.IsPositive() {
		return "", errors.New("transfer amount must be positive")
	}

	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	var message []byte
	switch currency {
	case models.CurrencySOL:
		lamports := amount.Shift(solDecimals).IntPart()
		message, err = c.buildSOLTransfer(blockhash, to, uint64(lamports))
	case models.CurrencyUSDT:
		units := amount.Shift(usdtDecimals).IntPart()
		message, err = c.buildUSDTTransfer(ctx, blockhash, to, uint64(units))
	default:
		return "", fmt.Errorf("unsupported currency %q", currency)
	}
	if err != nil {
		return "", err
	}

	signature := ed25519.Sign(c.treasuryKey, message)

	// Wire format: compact array of signatures followed by the message.
	tx := append(shortvec(1), signature...)
	tx = append(tx, message...)

	var sig string
	params := []interface{}{
		base64.StdEncoding.EncodeToString(tx),
		map[string]string{"encoding": "base64"},
	}
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}

	c.logger.Infof("Broadcast %s %s transfer to %s: %s", amount.String(), currency, to, sig)
	return sig, nil
}

func (c *Client) latestBlockhash(ctx context.Context) ([]byte, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []interface{}{map[string]string{"commitment": "finalized"}}, &result); err != nil {
		return nil, err
	}

	hash := base58.Decode(result.Value.Blockhash)
	if len(hash) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", result.Value.Blockhash)
	}
	return hash, nil
}

// buildSOLTransfer serializes a legacy message with a single system-program
// transfer instruction. Accounts: treasury (writable signer), destination
// (writable), system program (readonly).
func (c *Client) buildSOLTransfer(blockhash []byte, to string, lamports uint64) ([]byte, error) {
	dest := base58.Decode(to)
	if len(dest) != 32 {
		return nil, fmt.Errorf("invalid destination address %q", to)
	}

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIx)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return buildMessage(messageSpec{
		numRequiredSignatures: 1,
		numReadonlyUnsigned:   1,
		accountKeys:           [][]byte{c.treasuryPub, dest, base58.Decode(systemProgramID)},
		blockhash:             blockhash,
		programIDIndex:        2,
		accountIndexes:        []byte{0, 1},
		data:                  data,
	}), nil
}

// buildUSDTTransfer serializes an SPL token transfer from the treasury
// token account to the destination owner's USDT token account. Accounts:
// treasury owner (writable signer, fee payer), source token account
// (writable), destination token account (writable), token program
// (readonly).
func (c *Client) buildUSDTTransfer(ctx context.Context, blockhash []byte, to string, units uint64) ([]byte, error) {
	destTokenAcc, err := c.findTokenAccount(ctx, to)
	if err != nil {
		return nil, err
	}

	source := base58.Decode(c.treasuryUSDTAcc)
	dest := base58.Decode(destTokenAcc)
	if len(source) != 32 || len(dest) != 32 {
		return nil, errors.New("invalid token account address")
	}

	data := make([]byte, 9)
	data[0] = splTransferIx
	binary.LittleEndian.PutUint64(data[1:9], units)

	return buildMessage(messageSpec{
		numRequiredSignatures: 1,
		numReadonlyUnsigned:   1,
		accountKeys:           [][]byte{c.treasuryPub, source, dest, base58.Decode(tokenProgramID)},
		blockhash:             blockhash,
		programIDIndex:        3,
		accountIndexes:        []byte{1, 2, 0},
		data:                  data,
	}), nil
}

// findTokenAccount resolves the destination owner's USDT token account.
// A destination without one fails the transfer outright rather than
// creating accounts on their behalf.
func (c *Client) findTokenAccount(ctx context.Context, owner string) (string, error) {
	var result struct {
		Value []struct {
			Pubkey string `json:"pubkey"`
		} `json:"value"`
	}

	params := []interface{}{
		owner,
		map[string]string{"mint": c.usdtMint},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return "", err
	}
	if len(result.Value) == 0 {
		return "", fmt.Errorf("destination %s has no USDT token account", owner)
	}
	return result.Value[0].Pubkey, nil
}

type messageSpec struct {
	numRequiredSignatures byte
	numReadonlySigned     byte
	numReadonlyUnsigned   byte
	accountKeys           [][]byte
	blockhash             []byte
	programIDIndex        byte
	accountIndexes        []byte
	data                  []byte
}

// buildMessage serializes a legacy Solana message with one instruction.
func buildMessage(spec messageSpec) []byte {
	var msg []byte
	msg = append(msg, spec.numRequiredSignatures, spec.numReadonlySigned, spec.numReadonlyUnsigned)

	msg = append(msg, shortvec(len(spec.accountKeys))...)
	for _, key := range spec.accountKeys {
		msg = append(msg, key...)
	}

	msg = append(msg, spec.blockhash...)

	msg = append(msg, shortvec(1)...)
	msg = append(msg, spec.programIDIndex)
	msg = append(msg, shortvec(len(spec.accountIndexes))...)
	msg = append(msg, spec.accountIndexes...)
	msg = append(msg, shortvec(len(spec.data))...)
	msg = append(msg, spec.data...)

	return msg
}

// shortvec encodes a length in Solana's compact-u16 format.
func shortvec(n int) []byte {
	var out []byte
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}
