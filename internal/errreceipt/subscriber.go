// Package errreceipt is the sync loop's websocket tail (spec §4.5/§4.6):
// it subscribes to the rollup's error-transaction feed, builds an
// ErrorReceiptRecord per notification, and opportunistically garbage
// collects old records. Grounded on the original ws_client.rs (dial +
// subscribe-frame + reconnect-on-error loop) and error_receipt_indexer.rs
// (GC-on-increase scheduling).
package errreceipt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/gorilla/websocket"

	"github.com/godwoken/web3-indexer/internal/indexererr"
	"github.com/godwoken/web3-indexer/internal/web3"
)

// Store is the subset of store.Store the subscriber needs.
type Store interface {
	InsertErrorReceipt(ctx context.Context, rec *web3.ErrorReceiptRecord) error
	GCErrorReceipts(ctx context.Context, number uint64) error
}

// Subscriber dials url, subscribes to the error-transaction feed, and
// persists every notification until Close is called.
type Subscriber struct {
	url              string
	subscribeMethod  string
	store            Store
	logger           log.Logger
	reconnectBackoff time.Duration
	gcLag            uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	maxSeen uint64
}

func New(url string, store Store, reconnectBackoff time.Duration, gcLag uint64, logger log.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		url:              url,
		subscribeMethod:  "gw_subscribe",
		store:            store,
		logger:           logger,
		reconnectBackoff: reconnectBackoff,
		gcLag:            gcLag,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start launches the reconnect loop in the background.
func (s *Subscriber) Start() error {
	s.wg.Add(1)
	go s.run()
	return nil
}

// Close stops the subscriber (io.Closer shape).
func (s *Subscriber) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Subscriber) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.connectAndServe(); err != nil {
			s.logger.Warn("error-receipt subscription dropped, reconnecting", "err", err)
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.reconnectBackoff):
		}
	}
}

func (s *Subscriber) connectAndServe() error {
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		return indexererr.New(indexererr.KindWebSocket, websocketErrorf("dial: %w", err))
	}
	defer conn.Close()

	subscribeReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  s.subscribeMethod,
		"params":  []interface{}{"error_transaction"},
	}
	if err := conn.WriteJSON(subscribeReq); err != nil {
		return indexererr.New(indexererr.KindWebSocket, websocketErrorf("send subscribe: %w", err))
	}

	for {
		select {
		case <-s.ctx.Done():
			return nil
		default:
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return indexererr.New(indexererr.KindWebSocket, websocketErrorf("read: %w", err))
		}
		if err := s.handle(env); err != nil {
			s.logger.Error("failed to handle error-receipt notification", "err", err)
		}
	}
}

func (s *Subscriber) handle(env Envelope) error {
	payload, err := env.Payload()
	if err != nil {
		return err
	}
	if payload == nil {
		return nil // params carried no result body: nothing to store
	}

	var raw jsonErrorTxReceipt
	if err := json.Unmarshal(payload, &raw); err != nil {
		return decodeErrorf("unmarshal error receipt: %w", err)
	}
	rec, err := BuildRecord(&raw)
	if err != nil {
		return err
	}

	if err := s.store.InsertErrorReceipt(s.ctx, rec); err != nil {
		return err
	}

	s.mu.Lock()
	increased := rec.BlockNumber > s.maxSeen
	if increased {
		s.maxSeen = rec.BlockNumber
	}
	s.mu.Unlock()

	if increased && rec.BlockNumber > s.gcLag {
		target := rec.BlockNumber - s.gcLag
		go func() {
			if err := s.store.GCErrorReceipts(context.Background(), target); err != nil {
				s.logger.Warn("error receipt gc failed", "err", err)
			}
		}()
	}
	return nil
}
