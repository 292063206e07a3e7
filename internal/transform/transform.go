// Package transform implements the block transformer (spec §4.3): it
// turns one rollup RawBlock into the Web3Block/Web3Transaction/Web3Log
// rows the persistence layer writes, folding gas and deriving
// Ethereum-compatible hashes along the way. Grounded on the teacher's
// core/blockchain.go, which does the equivalent "iterate transactions,
// fold block-level totals, structured-log per stage" pass over a real
// Ethereum block.
package transform

import (
	"context"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/holiman/uint256"

	"github.com/godwoken/web3-indexer/internal/address"
	"github.com/godwoken/web3-indexer/internal/indexererr"
	"github.com/godwoken/web3-indexer/internal/rollup"
	"github.com/godwoken/web3-indexer/internal/web3"
)

// ReceiptFetcher is the subset of rpcclient.Client the transformer
// needs to resolve a polyjuice transaction's receipt.
type ReceiptFetcher interface {
	GetTransactionReceipt(ctx context.Context, txHash web3.Hash) (*rollup.RawReceipt, error)
}

// Config is the subset of the indexer's static config the transformer
// dispatches on (spec §4.3 step 4).
type Config struct {
	RollupTypeHash          web3.Hash
	PolyjuiceTypeScriptHash web3.Hash
	L2SudtTypeScriptHash    web3.Hash
	CKBSudtAccountID        uint32
	ChainID                 uint64
	// AllowedEOACodeHashes is the set of lock script code hashes treated
	// as a plain externally-owned account (spec §4.3 step 1): normally
	// eth_account_lock_hash, plus tron_account_lock_hash if configured.
	AllowedEOACodeHashes map[web3.Hash]struct{}
}

// Transformer builds Web3 rows from one RawBlock at a time.
type Transformer struct {
	cfg      Config
	resolver *address.Resolver
	receipts ReceiptFetcher
	logger   log.Logger
}

func New(cfg Config, resolver *address.Resolver, receipts ReceiptFetcher, logger log.Logger) *Transformer {
	return &Transformer{cfg: cfg, resolver: resolver, receipts: receipts, logger: logger}
}

// Result is one transformed block, ready for C4 to persist in a single
// transaction (spec §4.4).
type Result struct {
	Block        web3.Block
	Transactions []web3.TransactionWithLogs
}

// Transform applies spec §4.3 to every transaction in raw, in order.
func (t *Transformer) Transform(ctx context.Context, raw *rollup.RawBlock) (*Result, error) {
	t.resolver.NewBlockScope()

	miner, err := t.resolver.ResolveBlockProducer(ctx, raw.BlockProducerID)
	if err != nil {
		return nil, err
	}

	var (
		cumulativeGasUsed uint64
		txIndex           uint32
		results           []web3.TransactionWithLogs
		blockGasUsed      uint64
		blockGasLimit     uint64
	)

	for _, rtx := range raw.Transactions {
		built, skip, err := t.transformTx(ctx, raw, &rtx, txIndex, cumulativeGasUsed)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		if built == nil {
			// sender not a recognized EOA: drop entirely, no index bump (step 1).
			continue
		}
		built.Tx.BlockNumber = raw.Number
		built.Tx.BlockHash = raw.Hash
		for li := range built.Logs {
			built.Logs[li].BlockNumber = raw.Number
			built.Logs[li].BlockHash = raw.Hash
		}

		cumulativeGasUsed = built.Tx.CumulativeGasUsed
		blockGasUsed += built.Tx.GasUsed
		blockGasLimit += built.Tx.GasLimit
		txIndex++
		results = append(results, *built)
	}

	block := web3.Block{
		Number:     raw.Number,
		Hash:       raw.Hash,
		ParentHash: raw.ParentBlockHash,
		GasLimit:   blockGasLimit,
		GasUsed:    blockGasUsed,
		Miner:      miner,
		Size:       uint64(len(raw.Raw)),
		Timestamp:  rollup.PackedBlockTimestampSeconds(raw),
	}

	return &Result{Block: block, Transactions: results}, nil
}

// transformTx runs spec §4.3 steps 1-5 for a single transaction.
// Returns (nil, false, nil) when the sender isn't a recognized EOA
// (dropped, no tx_index bump); (nil, true, nil) when the destination is
// neither polyjuice nor SUDT (skipped, no tx_index bump either, per
// §4.3 step 4's "any other destination").
func (t *Transformer) transformTx(ctx context.Context, raw *rollup.RawBlock, rtx *rollup.RawTransaction, txIndex uint32, priorCumulative uint64) (*web3.TransactionWithLogs, bool, error) {
	senderHash, err := t.resolver.ScriptHash(ctx, rtx.FromID)
	if err != nil {
		return nil, false, err
	}
	senderScript, err := t.resolver.Script(ctx, rtx.FromID, senderHash)
	if err != nil {
		return nil, false, err
	}
	if _, ok := t.cfg.AllowedEOACodeHashes[senderScript.CodeHash]; !ok {
		return nil, false, nil
	}
	if len(senderScript.Args) != 52 || web3.BytesToHash(senderScript.Args[0:32]) != t.cfg.RollupTypeHash {
		return nil, false, decodeErrorf("tx %x: sender script args invalid", rtx.Hash)
	}

	fromAddr, err := t.resolver.Resolve(ctx, rtx.FromID)
	if err != nil && !indexererr.Is(err, indexererr.KindPartialAccountData) {
		return nil, false, err
	}

	var v uint8
	var r, s [32]byte
	if len(rtx.Signature) == 65 {
		copy(r[:], rtx.Signature[0:32])
		copy(s[:], rtx.Signature[32:64])
		v = rtx.Signature[64]
	}

	destHash, err := t.resolver.ScriptHash(ctx, rtx.ToID)
	if err != nil {
		return nil, false, err
	}
	destScript, err := t.resolver.Script(ctx, rtx.ToID, destHash)
	if err != nil {
		return nil, false, err
	}

	switch {
	case destScript.CodeHash == t.cfg.PolyjuiceTypeScriptHash:
		built, err := t.transformPolyjuiceTx(ctx, rtx, destScript, fromAddr, txIndex, priorCumulative, v, r, s)
		return built, false, err
	case rtx.ToID == t.cfg.CKBSudtAccountID && destScript.CodeHash == t.cfg.L2SudtTypeScriptHash:
		built, skip, err := t.transformSudtTx(rtx, fromAddr, txIndex, priorCumulative, v, r, s)
		return built, skip, err
	default:
		return nil, true, nil
	}
}

func (t *Transformer) transformPolyjuiceTx(ctx context.Context, rtx *rollup.RawTransaction, destScript *rollup.RawScript, fromAddr web3.Address, txIndex uint32, priorCumulative uint64, v uint8, r, s [32]byte) (*web3.TransactionWithLogs, error) {
	args, err := rollup.DecodePolyjuiceArgs(rtx.Args)
	if err != nil {
		return nil, err
	}

	receipt, err := t.receipts.GetTransactionReceipt(ctx, rtx.Hash)
	if err != nil {
		return nil, err
	}

	var (
		sysLog      *rollup.LogItem
		foundSystem bool
		web3Logs    []web3.Log
		logIndex    uint32
	)
	for _, entry := range receipt.Logs {
		item, err := rollup.DecodeLogItem(entry.ServiceFlag, entry.Data)
		if err != nil {
			return nil, err
		}
		switch item.ServiceFlag {
		case rollup.ServiceFlagPolyjuiceSystem:
			if foundSystem {
				continue // duplicate PolyjuiceSystem log: drop per spec §4.3 step 4.
			}
			foundSystem = true
			sysLog = item
		case rollup.ServiceFlagPolyjuiceUser:
			web3Logs = append(web3Logs, web3.Log{
				TransactionHash:  rtx.Hash,
				TransactionIndex: txIndex,
				BlockNumber:      0, // filled in by the caller once the block number is known
				Address:          item.UserAddress,
				Data:             item.UserData,
				LogIndex:         logIndex,
				Topics:           item.UserTopics,
			})
			logIndex++
		default:
			// SudtTransfer / SudtPayFee logs emitted alongside a polyjuice
			// call are dropped (spec §4.3 step 4).
		}
	}
	if !foundSystem {
		return nil, indexererr.New(indexererr.KindMissingSystemLog, missingSystemLogf("tx %x: no PolyjuiceSystem log in receipt", rtx.Hash))
	}

	var contractAddr *web3.Address
	if args.IsCreate && sysLog.SystemCreatedAddress != (web3.Address{}) {
		addr := sysLog.SystemCreatedAddress
		contractAddr = &addr
	}

	var toAddr *web3.Address
	chainID := t.cfg.ChainID
	if !args.IsCreate {
		resolvedTo, subChainID, ok := address.PolyjuiceDestination(destScript.Args)
		if ok {
			toAddr = &resolvedTo
			if chainID == 0 {
				chainID = uint64(subChainID)
			}
		}
	}

	cumulative := priorCumulative + sysLog.SystemGasUsed

	tx := web3.Transaction{
		GwTxHash:          rtx.Hash,
		TransactionIndex:  txIndex,
		FromAddress:       fromAddr,
		ToAddress:         toAddr,
		Value:             args.Value,
		Nonce:             rtx.Nonce,
		GasLimit:          args.GasLimit,
		GasPrice:          args.GasPrice,
		Input:             args.Input,
		V:                 v,
		R:                 r,
		S:                 s,
		CumulativeGasUsed: cumulative,
		GasUsed:           sysLog.SystemGasUsed,
		ContractAddress:   contractAddr,
		ExitCode:          uint8(sysLog.SystemStatusCode),
	}
	hash, err := ethTxHash(tx.Nonce, tx.GasPrice, tx.GasLimit, tx.ToAddress, tx.Value, tx.Input, tx.V, tx.R, tx.S)
	if err != nil {
		return nil, err
	}
	tx.EthTxHash = hash

	return &web3.TransactionWithLogs{Tx: tx, Logs: web3Logs}, nil
}

func (t *Transformer) transformSudtTx(rtx *rollup.RawTransaction, fromAddr web3.Address, txIndex uint32, priorCumulative uint64, v uint8, r, s [32]byte) (*web3.TransactionWithLogs, bool, error) {
	args, err := rollup.DecodeSudtArgs(rtx.Args)
	if err != nil {
		return nil, false, err
	}
	if args.Kind == rollup.SudtArgsQuery {
		return nil, true, nil // silently skipped, per spec §4.3 step 4.
	}
	if len(args.ToAddress) != web3.AddressLength {
		return nil, true, nil // skip tx entirely, per spec §4.3 step 4.
	}
	toAddr := web3.BytesToAddress(args.ToAddress)

	fee := args.Fee.Uint64()
	cumulative := priorCumulative + fee

	tx := web3.Transaction{
		GwTxHash:          rtx.Hash,
		TransactionIndex:  txIndex,
		FromAddress:       fromAddr,
		ToAddress:         &toAddr,
		Value:             args.Amount,
		Nonce:             rtx.Nonce,
		GasLimit:          fee,
		GasPrice:          uint256.NewInt(1),
		Input:             nil,
		V:                 v,
		R:                 r,
		S:                 s,
		CumulativeGasUsed: cumulative,
		GasUsed:           fee,
		ContractAddress:   nil,
		ExitCode:          0,
	}
	hash, err := ethTxHash(tx.Nonce, tx.GasPrice, tx.GasLimit, tx.ToAddress, tx.Value, tx.Input, tx.V, tx.R, tx.S)
	if err != nil {
		return nil, false, err
	}
	tx.EthTxHash = hash

	return &web3.TransactionWithLogs{Tx: tx}, false, nil
}
