// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import (
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/node/chainstore/chaintest"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

func TestDefineChain(t *testing.T) {
	c := chaintest.New(t)
	c.Mine()
	c.Mine()

	reg, err := New(c.State, 0)
	require.NoError(t, err)

	def := chaintest.Definition("NEWCHAIN")
	def.StartBlock = 0
	res, err := reg.DefineChain(def)
	require.NoError(t, err)

	assert.Equal(t, int32(102), res.Chain.StartBlock)
	assert.Equal(t, int32(2), res.BaseHeight)
	assert.True(t, pbaas.IsChainDefinitionTx(res.Tx))

	err = c.State.View(func(s chainstore.Snapshot) error {
		genesis, err := s.BlockEntryByHeight(0)
		require.NoError(t, err)
		assert.Equal(t, genesis.Hash, res.Base.MMRRoot)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Base.Power(0).Work.Cmp(blockchain.CalcWork(c.Params.PowLimitBits)))
	assert.Equal(t, def.NotarizationReward, res.Base.RewardPerBlock)

	parsed, err := pbaas.ChainDefinitionFromTx(res.Tx)
	require.NoError(t, err)
	assert.Equal(t, def.Name, parsed.Name)
	assert.Equal(t, int32(102), parsed.StartBlock)

	c.Mine(c.Fund(res.Tx))
	found, err := reg.LookupByName("NEWCHAIN")
	require.NoError(t, err)
	assert.Equal(t, def.ChainID(), found.ChainID())

	_, err = reg.DefineChain(chaintest.Definition("NEWCHAIN"))
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrInvalidParameter))
}

func TestDefineChainBilling(t *testing.T) {
	c := chaintest.New(t)
	reg, err := New(c.State, 0)
	require.NoError(t, err)

	short := chaintest.Definition("SHORT")
	short.BillingPeriod = pbaas.MinBillingPeriod - 1
	_, err = reg.DefineChain(short)
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrInvalidParameter))

	cheap := chaintest.Definition("CHEAP")
	cheap.NotarizationReward = pbaas.MinPerBlockNotarization*pbaas.MinBillingPeriod - 1
	_, err = reg.DefineChain(cheap)
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrInvalidParameter))
}
