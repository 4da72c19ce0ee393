// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/config"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

func testConfig(t *testing.T, chainDB, mmrDB string) *config.Config {
	return &config.Config{
		Net:       "regtest",
		ChainName: "LOCAL",
		DataDir:   t.TempDir(),
		Storage: config.StorageConfig{
			ChainDB:       chainDB,
			MMRDB:         mmrDB,
			RegistryCache: 8,
		},
	}
}

func TestOpenChainStateConnectsGenesis(t *testing.T) {
	ctl := newNodeController(testConfig(t, config.ChainDBMemory, config.MMRDBMemory), zerolog.Nop())
	defer ctl.close()

	state, err := ctl.openChainState()
	require.NoError(t, err)

	hash, height := state.BestTip()
	assert.Equal(t, int32(0), height)
	assert.Equal(t, *chaincfg.RegressionNetParams.GenesisHash, hash)
	assert.Empty(t, ctl.closers)
}

func TestOpenChainStateReplaysStoredBlocks(t *testing.T) {
	cfg := testConfig(t, config.ChainDBLevel, config.MMRDBBadger)

	ctl := newNodeController(cfg, zerolog.Nop())
	state, err := ctl.openChainState()
	require.NoError(t, err)
	require.Len(t, ctl.closers, 2)

	source := &chainstore.TemplateSource{Memory: state, PayTo: pbaas.KeyID{0x01}}
	block, height, err := source.NewBlockTemplate()
	require.NoError(t, err)
	require.Equal(t, int32(1), height)
	require.NoError(t, state.ConnectBlock(block))
	ctl.close()

	ctl = newNodeController(cfg, zerolog.Nop())
	defer ctl.close()
	state, err = ctl.openChainState()
	require.NoError(t, err)

	hash, height := state.BestTip()
	assert.Equal(t, int32(1), height)
	assert.Equal(t, block.BlockHash(), hash)
	assert.Equal(t, float64(2), state.Stats()["mmr_leaves"])
}

func TestBackendTemplatesNeedMiningAddress(t *testing.T) {
	cfg := testConfig(t, config.ChainDBMemory, config.MMRDBMemory)
	ctl := newNodeController(cfg, zerolog.Nop())
	state, err := ctl.openChainState()
	require.NoError(t, err)

	backend, err := ctl.backend(state)
	require.NoError(t, err)
	assert.Nil(t, backend.Templates)
	assert.NotNil(t, backend.Coordinator)
	assert.Equal(t, &chaincfg.RegressionNetParams, backend.Params)

	cfg.MiningAddress = "garbage"
	_, err = ctl.backend(state)
	assert.Error(t, err)
}

func TestMetricsManagerRegistersCollectors(t *testing.T) {
	cfg := testConfig(t, config.ChainDBMemory, config.MMRDBMemory)
	ctl := newNodeController(cfg, zerolog.Nop())
	state, err := ctl.openChainState()
	require.NoError(t, err)

	manager, err := ctl.metricsManager(state)
	require.NoError(t, err)
	manager.Read()

	families, err := manager.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["pbaas_chain_height"])
}
