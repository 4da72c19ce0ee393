// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notarization

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/node/chainstore/chaintest"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

var testChainID = pbaas.ChainIDFromName("TESTCHAIN")

func defineTestChain(c *chaintest.Chain) *wire.MsgTx {
	def := c.DefineChain(chaintest.Definition("TESTCHAIN"))
	c.Mine(def)
	return def
}

func newTestNotary(state chainstore.ChainState) *Notary {
	return New(Config{State: state, ChainID: pbaas.ChainIDFromName("LOCAL"), Rand: fixedRand(0)})
}

func TestForksStraightLine(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10})
	c.Mine(n1)
	n2 := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 102, Work: 20})
	c.Mine(n2)
	n3 := c.Notarize(testChainID, chaintest.Claim{Prev: n2, Height: 103, Work: 30})
	c.Mine(n3)
	c.Mine(c.Confirm(def, n1))

	data, err := newTestNotary(c.State).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)

	assert.True(t, data.IsConfirmed())
	assert.Equal(t, 0, data.LastConfirmed)
	require.Len(t, data.Vtx, 3)
	assert.Equal(t, n1.TxHash(), data.Vtx[0].TxID)
	assert.Equal(t, [][]int{{0, 1, 2}}, data.Forks)
	assert.Equal(t, int32(103), data.BestChain)
	assert.Equal(t, 0, data.BestFork)
	assert.False(t, data.PowerTie)
	assertForkLinks(t, data)
}

func TestForksRootedAtDefinition(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10})
	n2 := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 102, Work: 20})
	c.Mine(n1, n2)

	data, err := newTestNotary(c.State).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)

	assert.False(t, data.IsConfirmed())
	assert.Equal(t, -1, data.LastConfirmed)
	assert.Equal(t, [][]chainhash.Hash{{def.TxHash(), n1.TxHash(), n2.TxHash()}}, forkTxIDs(data))
	assert.Equal(t, int32(102), data.BestChain)
	assertForkLinks(t, data)
}

func TestForksTwoChildren(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10})
	c.Mine(n1)
	a := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 102, Work: 20})
	c.Mine(a)
	b := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 110, Work: 30})
	c.Mine(b)
	c.Mine(c.Confirm(def, n1))

	data, err := newTestNotary(c.State).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)

	assert.Equal(t, [][]chainhash.Hash{
		{n1.TxHash(), a.TxHash()},
		{n1.TxHash(), b.TxHash()},
	}, forkTxIDs(data))
	assert.Equal(t, 1, data.BestFork)
	assert.Equal(t, int32(110), data.BestChain)
	assertForkLinks(t, data)
}

func TestForksCopyPrefixIncludingParent(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10})
	n2 := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 102, Work: 20})
	n3 := c.Notarize(testChainID, chaintest.Claim{Prev: n2, Height: 103, Work: 30})
	c.Mine(n1)
	c.Mine(n2)
	c.Mine(n3)
	x := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 104, Work: 40})
	y := c.Notarize(testChainID, chaintest.Claim{Prev: x, Height: 105, Work: 50})
	c.Mine(x, y)

	data, err := newTestNotary(c.State).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)

	assert.Equal(t, [][]chainhash.Hash{
		{def.TxHash(), n1.TxHash(), n2.TxHash(), n3.TxHash()},
		{def.TxHash(), n1.TxHash(), x.TxHash(), y.TxHash()},
	}, forkTxIDs(data))
	assert.Equal(t, 1, data.BestFork)
	assert.Equal(t, int32(105), data.BestChain)
	assertForkLinks(t, data)
}

func TestForksIndependentOfOutputOrder(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10})
	a := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 102, Work: 20})
	b := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 103, Work: 15})
	aa := c.Notarize(testChainID, chaintest.Claim{Prev: a, Height: 104, Work: 25})
	c.Mine(n1, b)
	c.Mine(a, aa)

	want, err := newTestNotary(c.State).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)

	reversed := wrappedState{base: c.State, wrap: func(s chainstore.Snapshot) chainstore.Snapshot {
		return reversedUnspent{s}
	}}
	got, err := newTestNotary(reversed).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)

	assert.Equal(t, forkTxIDs(want), forkTxIDs(got))
	assert.Equal(t, want.BestChain, got.BestChain)
	assert.Equal(t, int32(104), got.BestChain)
	assertForkLinks(t, got)
}

func TestForksPowerTie(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10})
	a := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 102, Work: 20})
	b := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 103, Work: 20})
	c.Mine(n1)
	c.Mine(a)
	c.Mine(b)

	data, err := newTestNotary(c.State).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)
	assert.True(t, data.PowerTie)
	assert.Equal(t, 0, data.BestFork)
	assert.Equal(t, int32(102), data.BestChain)

	strict := New(Config{State: c.State, StrictPowerTie: true})
	_, err = strict.NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrPowerTie))
}

func TestNotarizationDataErrors(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10})
	c.Mine(n1)
	notary := newTestNotary(c.State)

	t.Run("unknown chain", func(t *testing.T) {
		_, err := notary.NotarizationData(pbaas.ChainIDFromName("NOPE"), pbaas.EvalAcceptedNotarization)
		assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrNotFound))
	})

	t.Run("bad class", func(t *testing.T) {
		_, err := notary.NotarizationData(testChainID, pbaas.EvalFinalizeNotarization)
		assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrInvalidParameter))
	})

	t.Run("unreadable transaction", func(t *testing.T) {
		state := wrappedState{base: c.State, wrap: func(s chainstore.Snapshot) chainstore.Snapshot {
			return missingTx{Snapshot: s, txid: n1.TxHash()}
		}}
		_, err := newTestNotary(state).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
		assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrTransactionUnavailable))
	})
}

func TestNotarizationDataNoRoot(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	// never mined, so nothing can resolve it as a confirmed root
	ghost := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 90, Work: 5})
	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: ghost, Height: 101, Work: 10})
	c.Mine(n1)
	c.Mine(c.Confirm(def))

	_, err := newTestNotary(c.State).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrNoRoot))

	// a mined root without a finalization output does not qualify either
	c2 := chaintest.New(t)
	def2 := defineTestChain(c2)
	plain := c2.Fund(wire.NewMsgTx(wire.TxVersion))
	plain.AddTxOut(wire.NewTxOut(1, pbaas.PayToKeyIDScript(chaintest.MinerKey)))
	c2.Mine(plain)
	orphan := c2.Notarize(testChainID, chaintest.Claim{Prev: plain, Height: 101, Work: 10})
	c2.Mine(orphan)
	c2.Mine(c2.Confirm(def2))

	_, err = newTestNotary(c2.State).NotarizationData(testChainID, pbaas.EvalAcceptedNotarization)
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrNoRoot))
}
