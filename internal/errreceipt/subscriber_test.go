package errreceipt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/godwoken/web3-indexer/internal/web3"
)

type fakeErrStore struct {
	inserted []*web3.ErrorReceiptRecord
	gcCalls  chan uint64
}

func newFakeErrStore() *fakeErrStore {
	return &fakeErrStore{gcCalls: make(chan uint64, 8)}
}

func (f *fakeErrStore) InsertErrorReceipt(_ context.Context, rec *web3.ErrorReceiptRecord) error {
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeErrStore) GCErrorReceipts(_ context.Context, number uint64) error {
	f.gcCalls <- number
	return nil
}

func notificationEnvelope(t *testing.T, raw jsonErrorTxReceipt) Envelope {
	t.Helper()
	body, err := json.Marshal(raw)
	require.NoError(t, err)
	return Envelope{Result: body}
}

func TestHandleInsertsRecord(t *testing.T) {
	store := newFakeErrStore()
	s := New("ws://unused", store, time.Millisecond, 3, log.New())

	txHash := make([]byte, 32)
	env := notificationEnvelope(t, jsonErrorTxReceipt{
		TxHash:      hexOf(txHash),
		BlockNumber: "0xa",
		ReturnData:  "0x",
		ExitCode:    "0x1",
	})

	require.NoError(t, s.handle(env))
	require.Len(t, store.inserted, 1)
	require.Equal(t, uint64(10), store.inserted[0].BlockNumber)
}

func TestHandleTriggersGCPastLag(t *testing.T) {
	store := newFakeErrStore()
	s := New("ws://unused", store, time.Millisecond, 3, log.New())

	txHash := make([]byte, 32)
	env := notificationEnvelope(t, jsonErrorTxReceipt{
		TxHash:      hexOf(txHash),
		BlockNumber: "0xa", // 10, gcLag=3 -> target 7
		ReturnData:  "0x",
		ExitCode:    "0x1",
	})

	require.NoError(t, s.handle(env))

	select {
	case target := <-store.gcCalls:
		require.Equal(t, uint64(7), target)
	case <-time.After(time.Second):
		t.Fatal("expected GCErrorReceipts to be called")
	}
}

func TestHandleSkipsGCWhenBlockNotIncreased(t *testing.T) {
	store := newFakeErrStore()
	s := New("ws://unused", store, time.Millisecond, 3, log.New())
	s.maxSeen = 100

	txHash := make([]byte, 32)
	env := notificationEnvelope(t, jsonErrorTxReceipt{
		TxHash:      hexOf(txHash),
		BlockNumber: "0xa",
		ReturnData:  "0x",
		ExitCode:    "0x1",
	})

	require.NoError(t, s.handle(env))

	select {
	case <-store.gcCalls:
		t.Fatal("did not expect GC to run for a non-increasing block number")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleRejectsSubscriptionAckShapedPayload(t *testing.T) {
	store := newFakeErrStore()
	s := New("ws://unused", store, time.Millisecond, 3, log.New())

	// A bare subscription-id ack carries a result but not a receipt: it
	// should fail decoding rather than panic, and nothing gets inserted.
	err := s.handle(Envelope{Result: json.RawMessage(`"0xabc123"`)})
	require.Error(t, err)
	require.Empty(t, store.inserted)
}
