// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notarization

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/node/chainstore/chaintest"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

func verifyCross(t *testing.T, c *chaintest.Chain, res *CrossNotarization) {
	t.Helper()

	require.NotNil(t, res)
	require.NoError(t, res.Bundle.Verify(res.Notarization.MMRRoot))
	assert.Equal(t, res.Bundle.OpRetProof, res.Notarization.OpRetProof)
	assert.Equal(t, res.TxID, res.Notarization.PrevNotarization)
	assert.Equal(t, c.Height(), res.ProofHeight)
	assert.Equal(t, res.ProofHeight, res.Notarization.NotarizationHeight)

	require.Len(t, res.Bundle.Objects, 4)
	tx := res.Bundle.Objects[2].(*pbaas.TransactionObject).Tx
	assert.Len(t, tx.TxOut, len(res.Tx.TxOut)-1)

	err := c.State.View(func(s chainstore.Snapshot) error {
		view, err := s.MountainRange(res.ProofHeight)
		require.NoError(t, err)
		root, err := view.Root()
		require.NoError(t, err)
		assert.Equal(t, root.Hash, res.Notarization.MMRRoot)
		assert.Equal(t, 0, root.Weight.Cmp(res.Notarization.Power(0).Work))
		return nil
	})
	require.NoError(t, err)
}

func TestCrossNotarizationBootstrap(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)
	c.Mine()

	notary := newTestNotary(c.State)
	res, err := notary.CrossNotarization(testChainID, nil, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)

	assert.Equal(t, def.TxHash(), res.TxID)
	assert.Equal(t, chainhash.Hash{}, res.CrossTxID)
	assert.Equal(t, int32(1), res.Notarization.PrevHeight)
	assert.Equal(t, pbaas.ChainIDFromName("LOCAL"), res.Notarization.ChainID)
	verifyCross(t, c, res)

	_, err = notary.CrossNotarization(testChainID, nil, pbaas.EvalEarnedNotarization)
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrNotFound))
}

func TestCrossNotarizationNoBootstrapWhenConfirmed(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)
	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10})
	c.Mine(n1)
	n2 := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 102, Work: 20})
	c.Mine(n2)
	c.Mine(c.Confirm(def, n1))

	_, err := newTestNotary(c.State).CrossNotarization(testChainID, nil, pbaas.EvalAcceptedNotarization)
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrNotFound))
}

func TestCrossNotarizationMatch(t *testing.T) {
	c := chaintest.New(t)
	def := defineTestChain(c)

	x1, x2, x3 := chainhash.Hash{0x01}, chainhash.Hash{0x02}, chainhash.Hash{0x03}
	n1 := c.Notarize(testChainID, chaintest.Claim{Prev: def, Height: 101, Work: 10, Cross: x1})
	c.Mine(n1)
	n2 := c.Notarize(testChainID, chaintest.Claim{Prev: n1, Height: 102, Work: 20, Cross: x2})
	filler := wire.NewMsgTx(wire.TxVersion)
	filler.AddTxOut(wire.NewTxOut(5000, []byte{txscript.OP_TRUE}))
	c.Mine(c.Fund(filler), n2)
	n3 := c.Notarize(testChainID, chaintest.Claim{Prev: n2, Height: 103, Work: 30, Cross: x3})
	c.Mine(n3)
	c.Mine()

	notary := newTestNotary(c.State)
	res, err := notary.CrossNotarization(testChainID, []chainhash.Hash{x1, x2}, pbaas.EvalAcceptedNotarization)
	require.NoError(t, err)

	assert.Equal(t, n2.TxHash(), res.TxID)
	assert.Equal(t, x2, res.CrossTxID)
	assert.Equal(t, int32(3), res.Notarization.PrevHeight)
	assert.Equal(t, int64(1000), res.Notarization.RewardPerBlock)
	verifyCross(t, c, res)

	proof := res.Bundle.Objects[3].(*pbaas.ProofObject)
	require.NotNil(t, proof.TxBranch)
	assert.Equal(t, uint32(2), proof.TxBranch.Index)

	_, err = notary.CrossNotarization(testChainID, []chainhash.Hash{{0x77}}, pbaas.EvalAcceptedNotarization)
	assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrNotFound))
}

func TestCrossNotarizationIndexErrors(t *testing.T) {
	c := chaintest.New(t)
	defineTestChain(c)

	tests := []struct {
		name string
		fn   func(entries []chainstore.AddressOutput) []chainstore.AddressOutput
		code pbaas.ErrorCode
	}{
		{
			name: "missing",
			fn:   func([]chainstore.AddressOutput) []chainstore.AddressOutput { return nil },
			code: pbaas.ErrIndexCorruption,
		},
		{
			name: "ambiguous",
			fn: func(entries []chainstore.AddressOutput) []chainstore.AddressOutput {
				return append(entries, entries...)
			},
			code: pbaas.ErrAmbiguousIndexMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := wrappedState{base: c.State, wrap: func(s chainstore.Snapshot) chainstore.Snapshot {
				return indexOverride{Snapshot: s, fn: tt.fn}
			}}
			_, err := newTestNotary(state).CrossNotarization(testChainID, nil, pbaas.EvalAcceptedNotarization)
			assert.True(t, pbaas.IsErrorCode(err, tt.code), "%v", err)
		})
	}
}

func TestSelectNodes(t *testing.T) {
	peers := []PeerInfo{
		{Addr: "10.0.0.1:20111", PaymentAddress: pbaas.KeyID{1}, Handshaked: true},
		{Addr: "10.0.0.2:20111", PaymentAddress: pbaas.KeyID{2}, Handshaked: true, Inbound: true},
		{Addr: "10.0.0.3:20111", PaymentAddress: pbaas.KeyID{3}},
		{Addr: "10.0.0.4:20111", PaymentAddress: pbaas.KeyID{4}, Handshaked: true},
		{Addr: "10.0.0.5:20111", PaymentAddress: pbaas.KeyID{5}, Handshaked: true},
	}

	nodes := SelectNodes(peers, 2, fixedRand(0))
	assert.Equal(t, []pbaas.NodeData{
		{NetworkAddress: "10.0.0.1:20111", PaymentAddress: pbaas.KeyID{1}},
		{NetworkAddress: "10.0.0.4:20111", PaymentAddress: pbaas.KeyID{4}},
	}, nodes)

	nodes = SelectNodes(peers, 2, fixedRand(2))
	assert.Equal(t, []pbaas.NodeData{
		{NetworkAddress: "10.0.0.5:20111", PaymentAddress: pbaas.KeyID{5}},
		{NetworkAddress: "10.0.0.4:20111", PaymentAddress: pbaas.KeyID{4}},
	}, nodes)

	assert.Len(t, SelectNodes(peers[:2], 2, fixedRand(0)), 1)
	assert.Len(t, SelectNodes(peers, 2, NewSecureRand()), 2)

	notary := New(Config{State: chaintest.New(t).State, Peers: StaticPeers(peers)})
	assert.Equal(t, pbaas.MaxNodes, notary.cfg.MaxNodes)
}
