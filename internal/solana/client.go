package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"aviator/internal/models"
	"aviator/utils"

	"github.com/shopspring/decimal"
)

const (
	solDecimals  = 9
	usdtDecimals = 6
)

type SignatureInfo struct {
	Signature string
	Slot      uint64
	Failed    bool
}

// Client talks to a Solana node over JSON-RPC and signs treasury transfers
// with the configured ed25519 key.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *utils.Logger
	reqID      atomic.Uint64

	treasuryKey     ed25519.PrivateKey
	treasuryPub     []byte
	usdtMint        string
	treasuryUSDTAcc string
}

func NewClient(url, treasuryPrivateKey, usdtMint, treasuryUSDTAccount string, logger *utils.Logger) (*Client, error) {
	c := &Client{
		url:             url,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		logger:          logger,
		usdtMint:        usdtMint,
		treasuryUSDTAcc: treasuryUSDTAccount,
	}

	if treasuryPrivateKey != "" {
		key, ok := utils.DecodeBase58Key(treasuryPrivateKey, ed25519.PrivateKeySize)
		if !ok {
			return nil, errors.New("treasury private key must be a base-58 encoded 64-byte ed25519 key")
		}
		c.treasuryKey = ed25519.PrivateKey(key)
		c.treasuryPub = key[32:]
	}

	return c, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", []interface{}{map[string]string{"commitment": "confirmed"}}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// GetBalance returns the SOL balance of an address.
func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{address}, &result); err != nil {
		return decimal.Zero, err
	}
	return decimal.New(int64(result.Value), -solDecimals), nil
}

func (c *Client) SignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	var result []struct {
		Signature string      `json:"signature"`
		Slot      uint64      `json:"slot"`
		Err       interface{} `json:"err"`
	}

	params := []interface{}{
		address,
		map[string]interface{}{"limit": limit},
	}
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	infos := make([]SignatureInfo, 0, len(result))
	for _, r := range result {
		infos = append(infos, SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			Failed:    r.Err != nil,
		})
	}
	return infos, nil
}

// DepositAmount extracts how much a confirmed transaction deposited to the
// given address, in SOL or USDT, by diffing the pre/post balances.
func (c *Client) DepositAmount(ctx context.Context, signature, address string) (decimal.Decimal, string, error) {
	var result struct {
		Meta struct {
			PreBalances       []uint64       `json:"preBalances"`
			PostBalances      []uint64       `json:"postBalances"`
			PreTokenBalances  []tokenBalance `json:"preTokenBalances"`
			PostTokenBalances []tokenBalance `json:"postTokenBalances"`
		} `json:"meta"`
		Transaction struct {
			Message struct {
				AccountKeys []struct {
					Pubkey string `json:"pubkey"`
				} `json:"accountKeys"`
			} `json:"message"`
		} `json:"transaction"`
	}

	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return decimal.Zero, "", err
	}

	// USDT first: an SPL deposit moves token balances, the lamport diff is
	// just rent/fee noise.
	if delta := tokenDelta(result.Meta.PreTokenBalances, result.Meta.PostTokenBalances, c.usdtMint, address); delta.IsPositive() {
		return delta, models.CurrencyUSDT, nil
	}

	for i, key := range result.Transaction.Message.AccountKeys {
		if key.Pubkey != address {
			continue
		}
		if i >= len(result.Meta.PreBalances) || i >= len(result.Meta.PostBalances) {
			break
		}
		post := result.Meta.PostBalances[i]
		pre := result.Meta.PreBalances[i]
		if post > pre {
			return decimal.New(int64(post-pre), -solDecimals), models.CurrencySOL, nil
		}
	}

	return decimal.Zero, "", nil
}

type tokenBalance struct {
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals int32  `json:"decimals"`
	} `json:"uiTokenAmount"`
}

func tokenDelta(pre, post []tokenBalance, mint, owner string) decimal.Decimal {
	sum := func(balances []tokenBalance) decimal.Decimal {
		total := decimal.Zero
		for _, b := range balances {
			if b.Mint != mint || b.Owner != owner {
				continue
			}
			if raw, err := decimal.NewFromString(b.UITokenAmount.Amount); err == nil {
				total = total.Add(raw.Shift(-b.UITokenAmount.Decimals))
			}
		}
		return total
	}
	return sum(post).Sub(sum(pre))
}
