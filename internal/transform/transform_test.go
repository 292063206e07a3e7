package transform

import (
	"context"
	"testing"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/godwoken/web3-indexer/internal/address"
	"github.com/godwoken/web3-indexer/internal/rollup"
	"github.com/godwoken/web3-indexer/internal/web3"
)

const (
	fromID       = 10
	toID         = 20
	producerID   = 1
	ckbSudtID    = 3
	ethLockHash  = 0xAA
	polyjuiceHash = 0xBB
	sudtHash     = 0xCC
	rollupHash   = 0xDD
)

// fakeRPC is an in-memory stand-in for rpcclient.Client, implementing
// every interface transform/address need against it.
type fakeRPC struct {
	scriptHashes map[uint32]web3.Hash
	scripts      map[web3.Hash]*rollup.RawScript
	receipts     map[web3.Hash]*rollup.RawReceipt
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		scriptHashes: make(map[uint32]web3.Hash),
		scripts:      make(map[web3.Hash]*rollup.RawScript),
		receipts:     make(map[web3.Hash]*rollup.RawReceipt),
	}
}

func (f *fakeRPC) GetScriptHash(_ context.Context, accountID uint32) (web3.Hash, error) {
	return f.scriptHashes[accountID], nil
}

func (f *fakeRPC) GetScript(_ context.Context, _ uint32, scriptHash web3.Hash) (*rollup.RawScript, error) {
	return f.scripts[scriptHash], nil
}

func (f *fakeRPC) GetTransactionReceipt(_ context.Context, txHash web3.Hash) (*rollup.RawReceipt, error) {
	return f.receipts[txHash], nil
}

func hashByte(b byte) web3.Hash {
	var h web3.Hash
	h[0] = b
	return h
}

func senderArgs(rollupTypeHash web3.Hash) []byte {
	out := make([]byte, 52)
	copy(out[0:32], rollupTypeHash[:])
	return out
}

func destArgs(subChainID uint32, to web3.Address) []byte {
	out := make([]byte, 56)
	out[32] = byte(subChainID)
	copy(out[36:56], to[:])
	return out
}

func newTestSetup(t *testing.T) (*fakeRPC, *Transformer, web3.Hash) {
	t.Helper()
	rpc := newFakeRPC()
	logger := log.New()

	rollupTypeHash := hashByte(rollupHash)
	ethHash := hashByte(ethLockHash)
	polyHash := hashByte(polyjuiceHash)
	sHash := hashByte(sudtHash)

	senderScriptHash := hashByte(1)
	rpc.scriptHashes[fromID] = senderScriptHash
	rpc.scripts[senderScriptHash] = &rollup.RawScript{
		CodeHash: ethHash,
		Args:     senderArgs(rollupTypeHash),
	}

	producerScriptHash := hashByte(2)
	rpc.scriptHashes[producerID] = producerScriptHash
	producerArgs := make([]byte, 8+20)
	binaryPutU32(producerArgs[4:8], 20)
	copy(producerArgs[8:28], web3.BytesToAddress([]byte{0x99}).Bytes())
	rpc.scripts[producerScriptHash] = &rollup.RawScript{CodeHash: ethHash, Args: producerArgs}

	cfg := Config{
		RollupTypeHash:          rollupTypeHash,
		PolyjuiceTypeScriptHash: polyHash,
		L2SudtTypeScriptHash:    sHash,
		CKBSudtAccountID:        ckbSudtID,
		ChainID:                 1,
		AllowedEOACodeHashes:    map[web3.Hash]struct{}{ethHash: {}},
	}

	resolver := address.New(rpc, logger)
	xform := New(cfg, resolver, rpc, logger)
	return rpc, xform, polyHash
}

func binaryPutU32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func TestTransformPolyjuiceCreate(t *testing.T) {
	rpc, xform, polyHash := newTestSetup(t)

	destScriptHash := hashByte(3)
	rpc.scriptHashes[toID] = destScriptHash
	rpc.scripts[destScriptHash] = &rollup.RawScript{CodeHash: polyHash, Args: make([]byte, 56)}

	txHash := hashByte(0x10)
	args := rollup.EncodePolyjuiceArgs(&rollup.PolyjuiceArgs{
		IsCreate: true,
		GasLimit: 1_000_000,
		GasPrice: uint256.NewInt(1),
		Value:    uint256.NewInt(0),
		Input:    []byte{0x60, 0x60},
	})

	createdAddr := web3.BytesToAddress([]byte{0xCA, 0xFE})
	sysLog := rollup.EncodeLogItem(&rollup.LogItem{
		ServiceFlag:          rollup.ServiceFlagPolyjuiceSystem,
		SystemGasUsed:        50000,
		SystemCreatedAddress: createdAddr,
	})
	rpc.receipts[txHash] = &rollup.RawReceipt{
		TxHash: txHash,
		Logs: []rollup.RawLogEntry{
			{ServiceFlag: rollup.ServiceFlagPolyjuiceSystem, Data: sysLog},
		},
	}

	block := &rollup.RawBlock{
		Number:          1,
		BlockProducerID: producerID,
		Transactions: []rollup.RawTransaction{
			{Hash: txHash, FromID: fromID, ToID: toID, Nonce: 0, Args: args},
		},
		Raw: make([]byte, 128),
	}

	result, err := xform.Transform(context.Background(), block)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	tx := result.Transactions[0].Tx
	require.Equal(t, &createdAddr, tx.ContractAddress)
	require.Nil(t, tx.ToAddress)
	require.Equal(t, uint64(50000), tx.GasUsed)
	require.NotEqual(t, web3.Hash{}, tx.EthTxHash)
	require.Equal(t, uint64(128), result.Block.Size)
}

func TestTransformEmptyBlockSizeIsRawLength(t *testing.T) {
	_, xform, _ := newTestSetup(t)

	block := &rollup.RawBlock{
		Number:          1,
		BlockProducerID: producerID,
		Raw:             make([]byte, 96),
	}

	result, err := xform.Transform(context.Background(), block)
	require.NoError(t, err)
	require.Empty(t, result.Transactions)
	require.Equal(t, uint64(96), result.Block.Size)
}

func TestTransformSkipsNonEOASender(t *testing.T) {
	rpc, xform, _ := newTestSetup(t)

	otherScriptHash := hashByte(99)
	rpc.scriptHashes[fromID] = otherScriptHash
	rpc.scripts[otherScriptHash] = &rollup.RawScript{CodeHash: hashByte(0xEE), Args: nil}

	block := &rollup.RawBlock{
		Number:          1,
		BlockProducerID: producerID,
		Transactions: []rollup.RawTransaction{
			{Hash: hashByte(0x20), FromID: fromID, ToID: toID, Args: make([]byte, 52)},
		},
		Raw: make([]byte, 64),
	}

	result, err := xform.Transform(context.Background(), block)
	require.NoError(t, err)
	require.Empty(t, result.Transactions)
}

func TestTransformSudtTransfer(t *testing.T) {
	rpc, xform, _ := newTestSetup(t)

	destScriptHash := hashByte(4)
	rpc.scriptHashes[ckbSudtID] = destScriptHash
	rpc.scripts[destScriptHash] = &rollup.RawScript{CodeHash: hashByte(sudtHash), Args: nil}

	toAddr := web3.BytesToAddress([]byte{0x55})
	args := rollup.EncodeSudtArgs(&rollup.SudtArgs{
		Kind:      rollup.SudtArgsTransfer,
		ToAddress: toAddr.Bytes(),
		Amount:    uint256.NewInt(100),
		Fee:       uint256.NewInt(1),
	})

	block := &rollup.RawBlock{
		Number:          1,
		BlockProducerID: producerID,
		Transactions: []rollup.RawTransaction{
			{Hash: hashByte(0x30), FromID: fromID, ToID: ckbSudtID, Args: args},
		},
		Raw: make([]byte, 72),
	}

	result, err := xform.Transform(context.Background(), block)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	tx := result.Transactions[0].Tx
	require.Equal(t, &toAddr, tx.ToAddress)
	require.Equal(t, uint64(1), tx.GasUsed)
}
