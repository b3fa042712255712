package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	maxBatchAccounts = 100
)

// HTTPClient implements Client over HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error. Data carries simulation detail on
// rejected submissions.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport failures retry; RPC-level errors do not.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return domain.Categorize(domain.ErrorCategoryNetwork,
		fmt.Errorf("max retries exceeded: %w", lastErr))
}

// GetTransactionEvent fetches a confirmed transaction with meta, inner
// instructions, and balance sets, flattened into a TransactionEvent.
func (c *HTTPClient) GetTransactionEvent(ctx context.Context, signature string) (*domain.TransactionEvent, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return buildEvent(signature, result)
}

// buildEvent flattens the raw RPC shape: the static key list plus loaded
// lookup-table addresses form one account array, and instruction account
// indices resolve against it.
func buildEvent(signature string, raw *getTransactionResult) (*domain.TransactionEvent, error) {
	if raw.Transaction == nil || raw.Transaction.Message == nil {
		return nil, fmt.Errorf("transaction %s: missing message", signature)
	}
	msg := raw.Transaction.Message

	keys := make([]string, 0, len(msg.AccountKeys))
	keys = append(keys, msg.AccountKeys...)
	numStatic := len(keys)
	numLoadedWritable := 0
	if raw.Meta != nil {
		keys = append(keys, raw.Meta.LoadedAddresses.Writable...)
		keys = append(keys, raw.Meta.LoadedAddresses.Readonly...)
		numLoadedWritable = len(raw.Meta.LoadedAddresses.Writable)
	}

	flags := accountFlags{
		numSigners:          msg.Header.NumRequiredSignatures,
		numReadonlySigned:   msg.Header.NumReadonlySignedAccounts,
		numReadonlyUnsigned: msg.Header.NumReadonlyUnsignedAccounts,
		numStatic:           numStatic,
		numLoadedWritable:   numLoadedWritable,
	}

	ev := &domain.TransactionEvent{
		Signature:   signature,
		Slot:        raw.Slot,
		AccountKeys: keys,
	}
	if raw.BlockTime != nil {
		ev.BlockTime = *raw.BlockTime
	}

	for _, ri := range msg.Instructions {
		instr, err := decodeInstruction(ri, keys, flags)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", signature, err)
		}
		ev.Instructions = append(ev.Instructions, instr)
	}

	if raw.Meta != nil {
		ev.Logs = raw.Meta.LogMessages
		ev.PreBalances = raw.Meta.PreBalances
		ev.PostBalances = raw.Meta.PostBalances

		if len(raw.Meta.InnerInstructions) > 0 {
			ev.InnerInstructions = make(map[int][]domain.Instruction, len(raw.Meta.InnerInstructions))
			for _, group := range raw.Meta.InnerInstructions {
				for _, ri := range group.Instructions {
					instr, err := decodeInstruction(ri, keys, flags)
					if err != nil {
						return nil, fmt.Errorf("transaction %s: %w", signature, err)
					}
					ev.InnerInstructions[group.Index] = append(ev.InnerInstructions[group.Index], instr)
				}
			}
		}

		var err error
		if ev.PreTokenBalances, err = decodeTokenBalances(raw.Meta.PreTokenBalances); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", signature, err)
		}
		if ev.PostTokenBalances, err = decodeTokenBalances(raw.Meta.PostTokenBalances); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", signature, err)
		}
	}

	return ev, nil
}

// accountFlags derives signer/writable roles from the message header.
type accountFlags struct {
	numSigners          int
	numReadonlySigned   int
	numReadonlyUnsigned int
	numStatic           int
	numLoadedWritable   int
}

func (f accountFlags) signer(i int) bool {
	return i < f.numSigners
}

func (f accountFlags) writable(i int) bool {
	switch {
	case i < f.numSigners:
		return i < f.numSigners-f.numReadonlySigned
	case i < f.numStatic:
		return i < f.numStatic-f.numReadonlyUnsigned
	default:
		// Loaded addresses: writable ones precede readonly ones.
		return i-f.numStatic < f.numLoadedWritable
	}
}

func decodeInstruction(ri rawInstruction, keys []string, flags accountFlags) (domain.Instruction, error) {
	if ri.ProgramIDIndex < 0 || ri.ProgramIDIndex >= len(keys) {
		return domain.Instruction{}, fmt.Errorf("program index %d out of range", ri.ProgramIDIndex)
	}

	instr := domain.Instruction{ProgramID: keys[ri.ProgramIDIndex]}

	for _, idx := range ri.Accounts {
		if idx < 0 || idx >= len(keys) {
			return domain.Instruction{}, fmt.Errorf("account index %d out of range", idx)
		}
		instr.Accounts = append(instr.Accounts, domain.AccountMeta{
			Address:    keys[idx],
			IsSigner:   flags.signer(idx),
			IsWritable: flags.writable(idx),
		})
	}

	if ri.Data != "" {
		data, err := base58.Decode(ri.Data)
		if err != nil {
			return domain.Instruction{}, fmt.Errorf("decode instruction data: %w", err)
		}
		instr.Data = data
	}
	return instr, nil
}

func decodeTokenBalances(raw []rawTokenBalance) ([]domain.TokenBalance, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]domain.TokenBalance, len(raw))
	for i, b := range raw {
		amount, err := strconv.ParseUint(b.UITokenAmount.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse token amount %q: %w", b.UITokenAmount.Amount, err)
		}
		out[i] = domain.TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
			Owner:        b.Owner,
			Amount:       amount,
			Decimals:     b.UITokenAmount.Decimals,
		}
	}
	return out, nil
}

// GetLatestBlockhash returns a recent blockhash at confirmed commitment.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	params := []interface{}{
		map[string]string{"commitment": "confirmed"},
	}

	var result struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return Blockhash{}, err
	}
	return Blockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// AccountExists reports whether the account is allocated.
func (c *HTTPClient) AccountExists(ctx context.Context, address string) (bool, error) {
	params := []interface{}{
		address,
		map[string]string{"encoding": "base64", "commitment": "confirmed"},
	}

	var result struct {
		Value *struct {
			Lamports uint64 `json:"lamports"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return false, err
	}
	return result.Value != nil, nil
}

// MultipleAccountsExist batches existence checks through
// getMultipleAccounts. The result maps every requested address.
func (c *HTTPClient) MultipleAccountsExist(ctx context.Context, addresses []string) (map[string]bool, error) {
	out := make(map[string]bool, len(addresses))

	for start := 0; start < len(addresses); start += maxBatchAccounts {
		end := start + maxBatchAccounts
		if end > len(addresses) {
			end = len(addresses)
		}
		batch := addresses[start:end]

		params := []interface{}{
			batch,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		}

		var result struct {
			Value []*struct {
				Lamports uint64 `json:"lamports"`
			} `json:"value"`
		}
		if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
			return nil, err
		}
		if len(result.Value) != len(batch) {
			return nil, fmt.Errorf("getMultipleAccounts returned %d entries for %d addresses",
				len(result.Value), len(batch))
		}
		for i, v := range result.Value {
			out[batch[i]] = v != nil
		}
	}
	return out, nil
}

// SendTransaction submits a signed base64 transaction. Node-side rejections
// come back as rejection-category errors and are never retried.
func (c *HTTPClient) SendTransaction(ctx context.Context, signedTx string) (string, error) {
	params := []interface{}{
		signedTx,
		map[string]interface{}{
			"encoding":            "base64",
			"skipPreflight":       false,
			"preflightCommitment": "confirmed",
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			return "", domain.Categorize(domain.ErrorCategoryRejection, rpcErr)
		}
		return "", err
	}
	return signature, nil
}

// GetSlot returns the current confirmed slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	params := []interface{}{
		map[string]string{"commitment": "confirmed"},
	}
	var result int64
	if err := c.call(ctx, "getSlot", params, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// Raw RPC shapes.

type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err               interface{}            `json:"err"`
	LogMessages       []string               `json:"logMessages"`
	PreBalances       []uint64               `json:"preBalances"`
	PostBalances      []uint64               `json:"postBalances"`
	PreTokenBalances  []rawTokenBalance      `json:"preTokenBalances"`
	PostTokenBalances []rawTokenBalance      `json:"postTokenBalances"`
	InnerInstructions []rawInnerInstructions `json:"innerInstructions"`
	LoadedAddresses   rawLoadedAddresses     `json:"loadedAddresses"`
}

type getTransactionTx struct {
	Message *rawMessage `json:"message"`
}

type rawMessage struct {
	AccountKeys  []string         `json:"accountKeys"`
	Header       rawHeader        `json:"header"`
	Instructions []rawInstruction `json:"instructions"`
}

type rawHeader struct {
	NumRequiredSignatures       int `json:"numRequiredSignatures"`
	NumReadonlySignedAccounts   int `json:"numReadonlySignedAccounts"`
	NumReadonlyUnsignedAccounts int `json:"numReadonlyUnsignedAccounts"`
}

type rawInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"` // base58
}

type rawInnerInstructions struct {
	Index        int              `json:"index"`
	Instructions []rawInstruction `json:"instructions"`
}

type rawLoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

type rawTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals uint8  `json:"decimals"`
	} `json:"uiTokenAmount"`
}
