// Package address implements the rollup account-id to Ethereum-style
// address resolver (spec §4.2), caching per-block the way the teacher's
// core/state/cached_reader2.go wraps a lower-level state reader with a
// short-circuiting cache.
package address

import (
	"context"
	"encoding/binary"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/godwoken/web3-indexer/internal/indexererr"
	"github.com/godwoken/web3-indexer/internal/rollup"
	"github.com/godwoken/web3-indexer/internal/web3"
)

// RPCClient is the subset of rpcclient.Client the resolver needs,
// narrowed so this package doesn't import rpcclient's concrete type
// (mirrors the teacher's narrow-interface-over-a-reader shape).
type RPCClient interface {
	GetScriptHash(ctx context.Context, accountID uint32) (web3.Hash, error)
	GetScript(ctx context.Context, accountID uint32, scriptHash web3.Hash) (*rollup.RawScript, error)
}

// Resolver resolves rollup account ids to the 20-byte addresses the
// Web3 schema expects. It is not safe for concurrent use; one Resolver
// per in-flight block processed by the sync loop.
type Resolver struct {
	rpc    RPCClient
	logger log.Logger

	cache map[uint32]web3.Address
}

// New builds a Resolver. cache is reset by the caller between blocks
// (NewBlockScope) so a reorg can't serve a stale resolution.
func New(rpc RPCClient, logger log.Logger) *Resolver {
	return &Resolver{
		rpc:    rpc,
		logger: logger,
		cache:  make(map[uint32]web3.Address),
	}
}

// NewBlockScope clears the per-block resolution cache. Account scripts
// don't change within a block's processing, but resolving across
// reorg'd blocks with a stale cache could mix data from two chains.
func (r *Resolver) NewBlockScope() {
	r.cache = make(map[uint32]web3.Address)
}

// ScriptHash resolves an account id to its script hash, passing through
// to the underlying RPC client uncached (script hashes are cheap and
// the transformer looks them up once per role per tx anyway).
func (r *Resolver) ScriptHash(ctx context.Context, accountID uint32) (web3.Hash, error) {
	return r.rpc.GetScriptHash(ctx, accountID)
}

// Script resolves a script hash to its RawScript, passing through to the
// underlying RPC client; the resolver's own address cache is not
// consulted.
func (r *Resolver) Script(ctx context.Context, accountID uint32, scriptHash web3.Hash) (*rollup.RawScript, error) {
	return r.rpc.GetScript(ctx, accountID, scriptHash)
}

// Resolve maps an account id to its 20-byte Ethereum-style address
// (spec §4.2): look up the script hash, fetch the script, and take
// args[32:52). If args is shorter than 52 bytes the account has no
// usable eth address; that is reported as PartialAccountData and the
// caller (C3) falls back to the zero address rather than failing the
// whole block.
func (r *Resolver) Resolve(ctx context.Context, accountID uint32) (web3.Address, error) {
	if addr, ok := r.cache[accountID]; ok {
		return addr, nil
	}

	scriptHash, err := r.rpc.GetScriptHash(ctx, accountID)
	if err != nil {
		return web3.Address{}, err
	}
	script, err := r.rpc.GetScript(ctx, accountID, scriptHash)
	if err != nil {
		return web3.Address{}, err
	}

	if len(script.Args) < 52 {
		r.logger.Warn("account script args too short for address, using zero address",
			"account_id", accountID, "args_len", len(script.Args))
		r.cache[accountID] = web3.Address{}
		return web3.Address{}, indexererr.New(indexererr.KindPartialAccountData,
			partialAccountDataf("account %d: script args len %d < 52", accountID, len(script.Args)))
	}

	addr := web3.BytesToAddress(script.Args[32:52])
	r.cache[accountID] = addr
	return addr, nil
}

// ResolveBlockProducer maps the block's producer account id to the
// address stored in blocks.miner (spec §4.2). Only the length-prefixed
// registry address encoding is decoded (see decodeRegistryAddress); a
// bare 20-byte address is not recognized. When the registry address is
// missing or its length is not 20, it falls back to the zero address
// with a warning rather than failing the block.
func (r *Resolver) ResolveBlockProducer(ctx context.Context, producerID uint32) (web3.Address, error) {
	scriptHash, err := r.rpc.GetScriptHash(ctx, producerID)
	if err != nil {
		return web3.Address{}, err
	}
	script, err := r.rpc.GetScript(ctx, producerID, scriptHash)
	if err != nil {
		return web3.Address{}, err
	}

	addrBytes, ok := decodeRegistryAddress(script.Args)
	if !ok {
		r.logger.Warn("block producer registry address missing or wrong length, using zero address",
			"producer_id", producerID)
		return web3.Address{}, nil
	}
	return web3.BytesToAddress(addrBytes), nil
}

// decodeRegistryAddress extracts a 20-byte semantic address from a
// registry-address encoded field: [0,4) registry id, [4,8) address
// length, [8, 8+len) address bytes. Returns ok=false unless the decoded
// length is exactly 20.
func decodeRegistryAddress(args []byte) ([]byte, bool) {
	if len(args) < 8 {
		return nil, false
	}
	addrLen := binary.LittleEndian.Uint32(args[4:8])
	if addrLen != web3.AddressLength || len(args) < 8+int(addrLen) {
		return nil, false
	}
	return args[8 : 8+addrLen], true
}

// PolyjuiceDestination decodes a polyjuice contract's "to" address and
// sub-chain id from its destination script's args (spec §4.2): [32,36)
// sub-chain id (u32 LE), [36,56) to address.
func PolyjuiceDestination(scriptArgs []byte) (addr web3.Address, subChainID uint32, ok bool) {
	if len(scriptArgs) < 56 {
		return web3.Address{}, 0, false
	}
	subChainID = binary.LittleEndian.Uint32(scriptArgs[32:36])
	addr = web3.BytesToAddress(scriptArgs[36:56])
	return addr, subChainID, true
}
