// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/pbaasd/config"
	"gitlab.com/jaxnet/pbaasd/network/rpc"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/node/mergemining"
	"gitlab.com/jaxnet/pbaasd/node/metrics"
	"gitlab.com/jaxnet/pbaasd/node/mmr"
	"gitlab.com/jaxnet/pbaasd/node/notarization"
	"gitlab.com/jaxnet/pbaasd/node/registry"
	"golang.org/x/sync/errgroup"
)

const (
	blocksDBName = "blocks"
	mmrDBName    = "mmr"
	metricsRoute = "/metrics"
)

type nodeController struct {
	cfg    *config.Config
	logger zerolog.Logger

	closers []io.Closer
}

func newNodeController(cfg *config.Config, logger zerolog.Logger) *nodeController {
	return &nodeController{cfg: cfg, logger: logger}
}

// Run starts every component and blocks until ctx is done or one of them
// fails.
func (ctl *nodeController) Run(ctx context.Context) error {
	defer ctl.close()

	state, err := ctl.openChainState()
	if err != nil {
		return err
	}
	backend, err := ctl.backend(state)
	if err != nil {
		return err
	}

	var core *rpc.ServerCore
	if !ctl.cfg.RPC.Disable {
		if _, err := ctl.cfg.RPC.SetupRPCListeners(); err != nil {
			return err
		}
		server := rpc.NewPBaaSRPC(backend, config.Logger(config.LogUnitRPCS))
		core = rpc.NewRPCCore(&ctl.cfg.RPC, &server.Mux)
	}

	var manager *metrics.Manager
	if ctl.cfg.Metrics.Enable {
		if manager, err = ctl.metricsManager(state); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return backend.Coordinator.Run(ctx)
	})
	if core != nil {
		g.Go(func() error {
			return core.StartRPC(ctx)
		})
	}
	if manager != nil {
		g.Go(func() error {
			return manager.Run(ctx)
		})
		g.Go(func() error {
			return manager.Listen(ctx, metricsRoute, uint16(ctl.cfg.Metrics.Port))
		})
	}

	return g.Wait()
}

// openChainState opens the configured storage and loads the chain, connecting
// the genesis block of the network on first start.
func (ctl *nodeController) openChainState() (*chainstore.Memory, error) {
	cfg := ctl.cfg
	storeCfg := chainstore.Config{Params: cfg.ChainParams()}

	if cfg.Storage.MMRDB == config.MMRDBBadger {
		store, err := mmr.OpenBadgerStore(filepath.Join(cfg.DataDir, mmrDBName))
		if err != nil {
			return nil, err
		}
		ctl.closers = append(ctl.closers, store)
		storeCfg.Tree = mmr.NewTree(store)
	}
	if cfg.Storage.ChainDB == config.ChainDBLevel {
		blocks, err := chainstore.OpenLevelStore(filepath.Join(cfg.DataDir, blocksDBName))
		if err != nil {
			return nil, err
		}
		ctl.closers = append(ctl.closers, blocks)
		storeCfg.Blocks = blocks
	}

	state, err := chainstore.New(storeCfg)
	if err != nil {
		return nil, err
	}
	if _, height := state.BestTip(); height < 0 {
		if err := state.ConnectBlock(storeCfg.Params.GenesisBlock); err != nil {
			return nil, errors.Wrap(err, "can't connect genesis block")
		}
		ctl.logger.Info().Stringer("hash", storeCfg.Params.GenesisHash).Msg("Genesis block connected")
	}
	return state, nil
}

func (ctl *nodeController) backend(state *chainstore.Memory) (rpc.Backend, error) {
	cfg := ctl.cfg

	reg, err := registry.New(state, cfg.Storage.RegistryCache)
	if err != nil {
		return rpc.Backend{}, err
	}
	peers, err := cfg.PeerInfos()
	if err != nil {
		return rpc.Backend{}, err
	}

	backend := rpc.Backend{
		Params:   cfg.ChainParams(),
		Registry: reg,
		Notary: notarization.New(notarization.Config{
			State:          state,
			Peers:          notarization.StaticPeers(peers),
			ChainID:        cfg.LocalChainID(),
			StrictPowerTie: cfg.StrictPowerTie,
		}),
		Coordinator: mergemining.New(mergemining.Config{
			Capacity:   cfg.MergeMining.Capacity,
			StaleAfter: cfg.MergeMining.StaleAfter,
			Workers:    cfg.MergeMining.Workers,
			QueueSize:  cfg.MergeMining.QueueSize,
			Submitter:  mergemining.RPCSubmitter{Network: cfg.ChainParams().Name},
		}),
		Blocks: state,
	}

	key, ok, err := cfg.MiningKey()
	if err != nil {
		return rpc.Backend{}, err
	}
	if ok {
		source := &chainstore.TemplateSource{Memory: state, PayTo: key, MergeMining: backend.Coordinator}
		backend.Templates = mergemining.NewTemplateCache(source, state, backend.Coordinator, nil)
	}
	return backend, nil
}

func (ctl *nodeController) metricsManager(state *chainstore.Memory) (*metrics.Manager, error) {
	manager := metrics.NewManager(ctl.cfg.Metrics.Interval, config.Logger(config.LogUnitMTRC))
	if err := manager.Register(notarization.Collectors()...); err != nil {
		return nil, errors.Wrap(err, "can't register notarization metrics")
	}
	if err := manager.Register(mergemining.Collectors()...); err != nil {
		return nil, errors.Wrap(err, "can't register merge mining metrics")
	}
	manager.Add(metrics.ChainMetrics(state, ctl.cfg.ChainName, ctl.cfg.LocalChainID().String(),
		ctl.cfg.ChainParams().Name, manager.Registry(), ctl.logger))
	return manager, nil
}

func (ctl *nodeController) close() {
	for i := len(ctl.closers) - 1; i >= 0; i-- {
		if err := ctl.closers[i].Close(); err != nil {
			ctl.logger.Error().Err(err).Msg("Can't close storage")
		}
	}
	ctl.closers = nil
}
