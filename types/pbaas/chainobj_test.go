/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package pbaas

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/types/mmr"
)

// bundleFixture is a three block chain whose middle block holds three
// transactions, the last of them a notarization.
type bundleFixture struct {
	headers []wire.BlockHeader
	txs     []*wire.MsgTx
	root    mmr.Node
}

func newBundleFixture(t *testing.T) *bundleFixture {
	f := &bundleFixture{txs: dummyTxs(2)}

	ntx, err := NewNotarizationTx(&Notarization{
		Version: NotarizationVersion,
		ChainID: ChainIDFromName("TESTCHAIN"),
	}, EvalAcceptedNotarization)
	require.NoError(t, err)
	f.txs = append(f.txs, ntx)

	prev := chainhash.Hash{}
	for i := 0; i < 3; i++ {
		h := wire.BlockHeader{
			Version:   1,
			PrevBlock: prev,
			Timestamp: time.Unix(1600000000+int64(i)*60, 0),
			Bits:      0x207fffff,
			Nonce:     uint32(i),
		}
		if i == 1 {
			branch, err := NewMerkleBranch(f.txs, 0)
			require.NoError(t, err)
			h.MerkleRoot = branch.Root(f.txs[0].TxHash())
		}
		f.headers = append(f.headers, h)
		prev = h.BlockHash()
	}

	l0, l1, l2 := LeafNode(&f.headers[0]), LeafNode(&f.headers[1]), LeafNode(&f.headers[2])
	f.root = mmr.Merge(mmr.Merge(l0, l1), l2)
	return f
}

func (f *bundleFixture) bundle(t *testing.T) *ProofBundle {
	l0, l1, l2 := LeafNode(&f.headers[0]), LeafNode(&f.headers[1]), LeafNode(&f.headers[2])

	tip := f.headers[2]
	ntx := f.txs[2]
	branch, err := NewMerkleBranch(f.txs, 2)
	require.NoError(t, err)
	stripped := StripCommitment(ntx)

	b := new(ProofBundle)
	b.Add(&HeaderObject{Header: tip}, tip.BlockHash())
	b.Add(&ProofObject{
		Header: tip,
		MMR:    mmr.Proof{LeafIndex: 2, Size: 3, Path: []mmr.Node{mmr.Merge(l0, l1)}},
	}, tip.BlockHash())
	b.Add(&TransactionObject{Tx: stripped}, stripped.TxHash())
	b.Add(&ProofObject{
		TxBranch: branch,
		Header:   f.headers[1],
		MMR:      mmr.Proof{LeafIndex: 1, Size: 3, Path: []mmr.Node{l0, l2}},
	}, ntx.TxHash())
	return b
}

func TestProofBundleVerify(t *testing.T) {
	f := newBundleFixture(t)
	b := f.bundle(t)
	require.NoError(t, b.Verify(f.root.Hash))

	var decoded ProofBundle
	require.NoError(t, decoded.Deserialize(bytes.NewReader(b.Bytes())))
	require.Len(t, decoded.Objects, 4)
	assert.Equal(t, b.OpRetProof, decoded.OpRetProof)
	assert.NoError(t, decoded.Verify(f.root.Hash))

	assert.Error(t, b.Verify(chainhash.Hash{0xff}))
}

func TestProofBundleVerifyTampered(t *testing.T) {
	f := newBundleFixture(t)

	t.Run("commitment type", func(t *testing.T) {
		b := f.bundle(t)
		b.OpRetProof[0].Type = ObjectTransaction
		assert.Error(t, b.Verify(f.root.Hash))
	})

	t.Run("transaction hash", func(t *testing.T) {
		b := f.bundle(t)
		b.Objects[2] = &TransactionObject{Tx: f.txs[2]}
		assert.Error(t, b.Verify(f.root.Hash))
	})

	t.Run("proved txid", func(t *testing.T) {
		b := f.bundle(t)
		b.OpRetProof[3].Hash = f.txs[1].TxHash()
		assert.Error(t, b.Verify(f.root.Hash))
	})

	t.Run("mmr path", func(t *testing.T) {
		b := f.bundle(t)
		proof := b.Objects[1].(*ProofObject)
		proof.MMR.Path = proof.MMR.Path[:0]
		assert.Error(t, b.Verify(f.root.Hash))
	})

	t.Run("missing object", func(t *testing.T) {
		b := f.bundle(t)
		b.Objects = b.Objects[:3]
		assert.Error(t, b.Verify(f.root.Hash))
	})
}
