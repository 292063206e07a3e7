// Package rpcclient is the upstream rollup JSON-RPC client (spec §4.1/
// §6): get_block_by_number, get_script_hash, get_script and
// get_transaction_receipt, wrapped so a transient upstream failure
// retries instead of failing the whole sync loop (spec §7).
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/godwoken/web3-indexer/internal/rollup"
	"github.com/godwoken/web3-indexer/internal/web3"
)

// Client is a thin, cached JSON-RPC client over the rollup node's HTTP
// endpoint. The script cache (account id -> RawScript) is keyed and
// short-circuited the way the teacher's execution engine pool caches
// headers by hash, since the same small set of accounts (block
// producers, frequent senders) repeats across many blocks.
type Client struct {
	url        string
	httpClient *http.Client
	logger     log.Logger

	mu          sync.Mutex
	scriptCache map[uint32]*rollup.RawScript
	idCounter   uint64
}

// New builds a Client against the godwoken RPC endpoint url.
func New(url string, logger log.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:      logger,
		scriptCache: make(map[uint32]*rollup.RawScript),
	}
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
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs one JSON-RPC request, retrying transient failures with
// exponential backoff (spec §7 TransientUpstream policy: retry with
// backoff, never silently drop a block).
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	c.mu.Lock()
	c.idCounter++
	id := c.idCounter
	c.mu.Unlock()

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return decodeErrorf("rpcclient: marshal request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	bctx := backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		resp, err := c.doOnce(ctx, body)
		if err != nil {
			return err // already classified by doOnce; backoff.Permanent wraps non-retriable cases
		}
		if resp.Error != nil {
			return backoff.Permanent(decodeErrorf("rpcclient: %s: rpc error %d: %s", method, resp.Error.Code, resp.Error.Message))
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return backoff.Permanent(decodeErrorf("rpcclient: %s: decode result: %w", method, err))
			}
		}
		return nil
	}, bctx)
}

func (c *Client) doOnce(ctx context.Context, body []byte) (*rpcResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(transientErrorf("rpcclient: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("rpc call failed, will retry", "err", err)
		return nil, transientErrorf("rpcclient: do request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transientErrorf("rpcclient: read response: %w", err)
	}

	if httpResp.StatusCode >= 500 {
		return nil, transientErrorf("rpcclient: server error: status %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(transientErrorf("rpcclient: unexpected status %d: %s", httpResp.StatusCode, respBody))
	}

	var resp rpcResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, backoff.Permanent(decodeErrorf("rpcclient: decode envelope: %w", err))
	}
	return &resp, nil
}

// --- typed getters -------------------------------------------------------

type jsonTx struct {
	Hash      string `json:"hash"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Nonce     string `json:"nonce"`
	Args      string `json:"args"`
	Signature string `json:"signature"`
}

type jsonBlock struct {
	Number          string   `json:"number"`
	Hash            string   `json:"hash"`
	ParentBlockHash string   `json:"parent_block_hash"`
	Timestamp       string   `json:"timestamp"`
	BlockProducerID string   `json:"block_producer_id"`
	Transactions    []jsonTx `json:"transactions"`
	// Raw is the packed RawL2Block molecule bytes, hex-encoded, exactly
	// as get_block_by_number reports them alongside the decoded fields
	// above (spec §4.1's `raw` accessor). blocks.size is its byte
	// length, not anything derived from Transactions.
	Raw string `json:"raw"`
}

// GetBlockByNumber fetches one rollup block, or (nil, nil) if the
// rollup has not produced it yet (spec §4.5 step 1).
func (c *Client) GetBlockByNumber(ctx context.Context, number uint64) (*rollup.RawBlock, error) {
	var raw *jsonBlock
	if err := c.call(ctx, MethodGetBlockByNumber, []interface{}{fmt.Sprintf("0x%x", number)}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return blockFromJSON(raw)
}

func blockFromJSON(raw *jsonBlock) (*rollup.RawBlock, error) {
	number, err := hexUint64(raw.Number)
	if err != nil {
		return nil, decodeErrorf("block.number: %w", err)
	}
	hashB, err := hexBytes(raw.Hash)
	if err != nil || len(hashB) != web3.HashLength {
		return nil, decodeErrorf("block.hash: invalid")
	}
	parentB, err := hexBytes(raw.ParentBlockHash)
	if err != nil || len(parentB) != web3.HashLength {
		return nil, decodeErrorf("block.parent_block_hash: invalid")
	}
	timestamp, err := hexUint64(raw.Timestamp)
	if err != nil {
		return nil, decodeErrorf("block.timestamp: %w", err)
	}
	producerID, err := hexUint64(raw.BlockProducerID)
	if err != nil {
		return nil, decodeErrorf("block.block_producer_id: %w", err)
	}
	rawBytes, err := hexBytes(raw.Raw)
	if err != nil {
		return nil, decodeErrorf("block.raw: %w", err)
	}

	txs := make([]rollup.RawTransaction, 0, len(raw.Transactions))
	for i, jt := range raw.Transactions {
		tx, err := txFromJSON(jt)
		if err != nil {
			return nil, decodeErrorf("block.transactions[%d]: %w", i, err)
		}
		txs = append(txs, *tx)
	}

	return &rollup.RawBlock{
		Number:          number,
		Hash:            web3.BytesToHash(hashB),
		ParentBlockHash: web3.BytesToHash(parentB),
		Timestamp:       timestamp,
		BlockProducerID: uint32(producerID),
		Transactions:    txs,
		Raw:             rawBytes,
	}, nil
}

func txFromJSON(jt jsonTx) (*rollup.RawTransaction, error) {
	hashB, err := hexBytes(jt.Hash)
	if err != nil || len(hashB) != web3.HashLength {
		return nil, decodeErrorf("tx.hash: invalid")
	}
	fromID, err := hexUint64(jt.FromID)
	if err != nil {
		return nil, decodeErrorf("tx.from_id: %w", err)
	}
	toID, err := hexUint64(jt.ToID)
	if err != nil {
		return nil, decodeErrorf("tx.to_id: %w", err)
	}
	nonce, err := hexUint64(jt.Nonce)
	if err != nil {
		return nil, decodeErrorf("tx.nonce: %w", err)
	}
	args, err := hexBytes(jt.Args)
	if err != nil {
		return nil, decodeErrorf("tx.args: %w", err)
	}
	sig, err := hexBytes(jt.Signature)
	if err != nil {
		return nil, decodeErrorf("tx.signature: %w", err)
	}
	return &rollup.RawTransaction{
		Hash:      web3.BytesToHash(hashB),
		FromID:    uint32(fromID),
		ToID:      uint32(toID),
		Nonce:     uint32(nonce),
		Args:      args,
		Signature: sig,
	}, nil
}

type jsonScript struct {
	CodeHash string `json:"code_hash"`
	HashType string `json:"hash_type"`
	Args     string `json:"args"`
}

// GetScriptHash resolves an account id to its script hash.
func (c *Client) GetScriptHash(ctx context.Context, accountID uint32) (web3.Hash, error) {
	var hexHash string
	if err := c.call(ctx, MethodGetScriptHash, []interface{}{fmt.Sprintf("0x%x", accountID)}, &hexHash); err != nil {
		return web3.Hash{}, err
	}
	b, err := hexBytes(hexHash)
	if err != nil || len(b) != web3.HashLength {
		return web3.Hash{}, decodeErrorf("get_script_hash: invalid hash")
	}
	return web3.BytesToHash(b), nil
}

// GetScript resolves a script hash to its script, caching by the
// calling account id so repeated lookups within a block don't re-issue
// RPC calls.
func (c *Client) GetScript(ctx context.Context, accountID uint32, scriptHash web3.Hash) (*rollup.RawScript, error) {
	c.mu.Lock()
	if cached, ok := c.scriptCache[accountID]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	var raw jsonScript
	if err := c.call(ctx, MethodGetScript, []interface{}{fmt.Sprintf("0x%x", scriptHash)}, &raw); err != nil {
		return nil, err
	}
	codeHashB, err := hexBytes(raw.CodeHash)
	if err != nil || len(codeHashB) != web3.HashLength {
		return nil, decodeErrorf("get_script: invalid code_hash")
	}
	args, err := hexBytes(raw.Args)
	if err != nil {
		return nil, decodeErrorf("get_script: invalid args: %w", err)
	}
	var hashType byte
	if raw.HashType == "data" {
		hashType = 0
	} else {
		hashType = 1
	}
	script := &rollup.RawScript{
		CodeHash: web3.BytesToHash(codeHashB),
		HashType: hashType,
		Args:     args,
	}

	c.mu.Lock()
	c.scriptCache[accountID] = script
	c.mu.Unlock()
	return script, nil
}

type jsonLog struct {
	ServiceFlag string `json:"service_flag"`
	Data        string `json:"data"`
}

type jsonReceipt struct {
	TxHash     string    `json:"tx_hash"`
	ReturnData string    `json:"return_data"`
	ExitCode   string    `json:"exit_code"`
	Logs       []jsonLog `json:"logs"`
}

// GetTransactionReceipt fetches a polyjuice transaction's receipt
// (spec §4.3: needed to find the PolyjuiceSystem log).
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash web3.Hash) (*rollup.RawReceipt, error) {
	var raw *jsonReceipt
	if err := c.call(ctx, MethodGetTransactionReceipt, []interface{}{fmt.Sprintf("0x%x", txHash.Bytes())}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, missingReceiptErrorf("no receipt for tx 0x%x", txHash.Bytes())
	}

	hashB, err := hexBytes(raw.TxHash)
	if err != nil || len(hashB) != web3.HashLength {
		return nil, decodeErrorf("receipt.tx_hash: invalid")
	}
	returnData, err := hexBytes(raw.ReturnData)
	if err != nil {
		return nil, decodeErrorf("receipt.return_data: %w", err)
	}
	exitCode, err := hexUint64(raw.ExitCode)
	if err != nil {
		return nil, decodeErrorf("receipt.exit_code: %w", err)
	}

	logs := make([]rollup.RawLogEntry, 0, len(raw.Logs))
	for i, jl := range raw.Logs {
		flag, err := hexUint64(jl.ServiceFlag)
		if err != nil {
			return nil, decodeErrorf("receipt.logs[%d].service_flag: %w", i, err)
		}
		data, err := hexBytes(jl.Data)
		if err != nil {
			return nil, decodeErrorf("receipt.logs[%d].data: %w", i, err)
		}
		logs = append(logs, rollup.RawLogEntry{ServiceFlag: byte(flag), Data: data})
	}

	return &rollup.RawReceipt{
		TxHash:     web3.BytesToHash(hashB),
		ReturnData: returnData,
		ExitCode:   uint8(exitCode),
		Logs:       logs,
	}, nil
}
