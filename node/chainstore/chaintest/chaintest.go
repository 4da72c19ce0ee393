// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaintest builds small regtest chains holding chain definitions
// and notarizations for tests.
package chaintest

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

var (
	// MinerKey receives every coinbase.
	MinerKey = pbaas.KeyID{0x6d, 0x69, 0x6e, 0x65, 0x72}

	genesisTime = time.Unix(1600000000, 0)
)

// Chain is a chain state plus the helpers to extend it.
type Chain struct {
	t      testing.TB
	State  *chainstore.Memory
	Params *chaincfg.Params

	funding uint32
}

// New returns a chain holding only its genesis block.
func New(t testing.TB) *Chain {
	state, err := chainstore.New(chainstore.Config{Params: &chaincfg.RegressionNetParams})
	require.NoError(t, err)
	return FromState(t, state)
}

// FromState wraps an existing chain state, mining a genesis block when it is
// empty.
func FromState(t testing.TB, state *chainstore.Memory) *Chain {
	c := &Chain{t: t, State: state, Params: state.Params()}
	if _, height := state.BestTip(); height < 0 {
		c.Mine()
	}
	return c
}

// Height returns the tip height.
func (c *Chain) Height() int32 {
	_, height := c.State.BestTip()
	return height
}

// Mine connects a block holding a coinbase and txs.
func (c *Chain) Mine(txs ...*wire.MsgTx) *wire.MsgBlock {
	tipHash, tipHeight := c.State.BestTip()
	height := tipHeight + 1

	coinbase, err := chainstore.CoinbaseTx(height, 50*1e8, MinerKey)
	require.NoError(c.t, err)

	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   4,
		PrevBlock: tipHash,
		Timestamp: genesisTime.Add(time.Duration(height) * time.Minute),
		Bits:      c.Params.PowLimitBits,
		Nonce:     uint32(height),
	})
	require.NoError(c.t, block.AddTransaction(coinbase))
	for _, tx := range txs {
		require.NoError(c.t, block.AddTransaction(tx))
	}
	block.Header.MerkleRoot = chainstore.MerkleRoot(block.Transactions)

	require.NoError(c.t, c.State.ConnectBlock(block))
	return block
}

// Fund adds an input spending a fresh fake outpoint, making the txid unique.
func (c *Chain) Fund(tx *wire.MsgTx) *wire.MsgTx {
	c.funding++
	prev := chainhash.HashH([]byte{'f', byte(c.funding), byte(c.funding >> 8)})
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, c.funding), nil, nil))
	return tx
}

// Definition returns a valid chain definition for name.
func Definition(name string) *pbaas.ChainDefinition {
	return &pbaas.ChainDefinition{
		Version:            pbaas.ChainDefinitionVersion,
		Name:               name,
		StartBlock:         1,
		BillingPeriod:      pbaas.MinBillingPeriod,
		NotarizationReward: pbaas.MinPerBlockNotarization * pbaas.MinBillingPeriod,
		Eras:               []pbaas.RewardEra{{Reward: 100000000, Halving: 840000}},
	}
}

// DefineChain builds a funded chain definition transaction. Mine it to
// publish the chain.
func (c *Chain) DefineChain(def *pbaas.ChainDefinition) *wire.MsgTx {
	base := &pbaas.Notarization{
		Version:      pbaas.NotarizationVersion,
		ChainID:      def.ChainID(),
		CompactPower: pbaas.NewCompactPower(big.NewInt(1), nil),
		Nodes:        def.Nodes,
	}
	tx, err := pbaas.NewChainDefinitionTx(def, base)
	require.NoError(c.t, err)
	return c.Fund(tx)
}

// Claim describes a notarization to build.
type Claim struct {
	Prev   *wire.MsgTx
	Height int32
	Work   int64
	Cross  chainhash.Hash
	Class  pbaas.EvalCode
}

// Notarize builds a funded notarization transaction extending claim.Prev.
// Input 0 spends the notarization output of claim.Prev.
func (c *Chain) Notarize(chainID pbaas.ChainID, claim Claim) *wire.MsgTx {
	if claim.Class == 0 {
		claim.Class = pbaas.EvalAcceptedNotarization
	}

	prevIndex := uint32(pbaas.NotarizationOutputIndex)
	if pbaas.IsChainDefinitionTx(claim.Prev) {
		prevIndex = pbaas.DefinitionNotarizationIndex
	}
	prevHash := claim.Prev.TxHash()

	n := &pbaas.Notarization{
		Version:            pbaas.NotarizationVersion,
		ChainID:            chainID,
		RewardPerBlock:     1000,
		NotarizationHeight: claim.Height,
		MMRRoot:            chainhash.HashH([]byte{byte(claim.Height), 'm'}),
		CompactPower:       pbaas.NewCompactPower(big.NewInt(claim.Work), nil),
		CrossNotarization:  claim.Cross,
		PrevNotarization:   prevHash,
	}

	tx, err := pbaas.NewNotarizationTx(n, claim.Class)
	require.NoError(c.t, err)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, prevIndex), nil, nil))
	return c.Fund(tx)
}

// Confirm builds a transaction spending the finalization outputs of txs,
// which removes them from the unspent set.
func (c *Chain) Confirm(txs ...*wire.MsgTx) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, prev := range txs {
		index := uint32(pbaas.NotarizationFinalizationIndex)
		if pbaas.IsChainDefinitionTx(prev) {
			index = pbaas.DefinitionFinalizationIndex
		}
		hash := prev.TxHash()
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&hash, index), nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(pbaas.ConditionOutputValue, pbaas.PayToKeyIDScript(MinerKey)))
	return tx
}
