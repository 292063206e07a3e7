// Command indexer runs the unidirectional rollup-to-Postgres indexer
// (spec §6): one process, one upstream RPC peer, one database. Wiring
// shape grounded on cmd/snapshots/downgrade/downgrade.go's
// urfave/cli/v2 cli.Command.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/godwoken/web3-indexer/internal/address"
	"github.com/godwoken/web3-indexer/internal/config"
	"github.com/godwoken/web3-indexer/internal/debug"
	"github.com/godwoken/web3-indexer/internal/errreceipt"
	"github.com/godwoken/web3-indexer/internal/rpcclient"
	"github.com/godwoken/web3-indexer/internal/store"
	"github.com/godwoken/web3-indexer/internal/syncer"
	"github.com/godwoken/web3-indexer/internal/transform"
	"github.com/godwoken/web3-indexer/internal/web3"
)

var configFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "path to the indexer TOML config",
	Value: "./indexer-config.toml",
}

var app = &cli.App{
	Name:   "indexer",
	Usage:  "project a Godwoken rollup's block stream into a Web3-shaped Postgres database",
	Flags:  []cli.Flag{configFlag},
	Action: run,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// service bundles every background component started by run so
// internal/debug.ListenSignals can close them all as one unit.
type service struct {
	syncer     *syncer.Syncer
	subscriber *errreceipt.Subscriber
	st         *store.Store
}

func (s *service) Close() error {
	var firstErr error
	if err := s.syncer.Close(); err != nil {
		firstErr = err
	}
	if err := s.subscriber.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.st.Close()
	return firstErr
}

func run(cctx *cli.Context) error {
	logger := log.New("service", "indexer")

	cfg, err := config.Load(cctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	logger.Info("loaded config", "config", cfg.String())

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.PGURL, cfg.DBPoolSize, logger)
	if err != nil {
		return err
	}

	rpc := rpcclient.New(cfg.GodwokenRPCURL, logger)
	resolver := address.New(rpc, logger)

	allowed := map[web3.Hash]struct{}{
		cfg.EthAccountLockHash.Hash(): {},
	}
	if cfg.TronAccountLockHash != nil {
		allowed[cfg.TronAccountLockHash.Hash()] = struct{}{}
	}

	xform := transform.New(transform.Config{
		RollupTypeHash:          cfg.RollupTypeHash.Hash(),
		PolyjuiceTypeScriptHash: cfg.PolyjuiceTypeScriptHash.Hash(),
		L2SudtTypeScriptHash:    cfg.L2SudtTypeScriptHash.Hash(),
		CKBSudtAccountID:        1,
		ChainID:                 cfg.ChainID,
		AllowedEOACodeHashes:    allowed,
	}, resolver, rpc, logger)

	sy := syncer.New(rpc, xform, st, cfg.IdlePollInterval, logger)
	if err := sy.Start(); err != nil {
		return err
	}

	const errorReceiptGCLag = 3
	sub := errreceipt.New(cfg.WSRPCURL, st, cfg.WSReconnectInterval, errorReceiptGCLag, logger)
	if err := sub.Start(); err != nil {
		return err
	}

	svc := &service{syncer: sy, subscriber: sub, st: st}
	debug.ListenSignals(svc, logger)
	return nil
}
