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

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	regtestBits = 0x207fffff
	mainnetBits = 0x1d00ffff
)

func testCoinbase(t *testing.T, root *chainhash.Hash) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), []byte{0x51, 0x51}, nil))
	tx.AddTxOut(wire.NewTxOut(5000, []byte{0x51}))
	if root != nil {
		script, err := MergeMiningScript(*root)
		require.NoError(t, err)
		tx.AddTxOut(wire.NewTxOut(0, script))
	}
	return tx
}

// solvedParent returns a block whose coinbase commits to root and whose hash
// meets regtestBits.
func solvedParent(t *testing.T, root *chainhash.Hash) *wire.MsgBlock {
	block := wire.NewMsgBlock(&wire.BlockHeader{Version: 4, Bits: regtestBits, Timestamp: time.Unix(1600000000, 0)})
	require.NoError(t, block.AddTransaction(testCoinbase(t, root)))
	for _, tx := range dummyTxs(2) {
		require.NoError(t, block.AddTransaction(tx))
	}

	utxs := make([]*btcutil.Tx, len(block.Transactions))
	for i, tx := range block.Transactions {
		utxs[i] = btcutil.NewTx(tx)
	}
	store := blockchain.BuildMerkleTreeStore(utxs, false)
	block.Header.MerkleRoot = *store[len(store)-1]

	for !MeetsTarget(block.BlockHash(), block.Header.Bits) {
		block.Header.Nonce++
	}
	return block
}

func mergedHeaders(bits ...uint32) ([]wire.BlockHeader, []chainhash.Hash) {
	headers := make([]wire.BlockHeader, len(bits))
	hashes := make([]chainhash.Hash, len(bits))
	for i := range bits {
		headers[i] = wire.BlockHeader{
			Version:    4,
			PrevBlock:  chainhash.Hash{byte(i + 1)},
			MerkleRoot: chainhash.Hash{0xaa, byte(i)},
			Bits:       bits[i],
			Timestamp:  time.Unix(1600000100, 0),
		}
		hashes[i] = headers[i].BlockHash()
	}
	return headers, hashes
}

func TestHashMerkleRoot(t *testing.T) {
	assert.Equal(t, chainhash.Hash{}, HashMerkleRoot(nil))

	for n := 1; n <= 9; n++ {
		txs := dummyTxs(n)
		leaves := make([]chainhash.Hash, n)
		for i, tx := range txs {
			leaves[i] = tx.TxHash()
		}
		root := HashMerkleRoot(leaves)

		for i := range leaves {
			branch, err := NewHashBranch(leaves, i)
			require.NoError(t, err)
			assert.Equal(t, root, branch.Root(leaves[i]), "n=%d i=%d", n, i)
		}
	}
}

func TestMergeMiningProof(t *testing.T) {
	headers, hashes := mergedHeaders(regtestBits, regtestBits, regtestBits)
	root := HashMerkleRoot(hashes)
	parent := solvedParent(t, &root)

	got, ok := MergeMiningRoot(parent.Transactions[0])
	require.True(t, ok)
	assert.Equal(t, root, got)

	for i := range headers {
		proof, err := NewMergeMiningProof(parent, hashes, i)
		require.NoError(t, err)
		require.NoError(t, proof.Verify(&headers[i]), "header %d", i)

		// The proven block keeps its own header; the proof of work is the
		// parent's.
		assert.True(t, MeetsTarget(proof.ParentHeader.BlockHash(), headers[i].Bits))

		decoded := new(MergeMiningProof)
		require.NoError(t, decoded.Deserialize(bytes.NewReader(proof.Bytes())))
		require.NoError(t, decoded.Verify(&headers[i]))

		other := headers[(i+1)%len(headers)]
		assert.True(t, IsErrorCode(proof.Verify(&other), ErrInvalidParameter))
	}

	_, err := NewMergeMiningProof(parent, hashes, len(hashes))
	assert.True(t, IsErrorCode(err, ErrInvalidParameter))
}

func TestMergeMiningProofRejects(t *testing.T) {
	headers, hashes := mergedHeaders(regtestBits, mainnetBits)
	root := HashMerkleRoot(hashes)
	parent := solvedParent(t, &root)

	proof, err := NewMergeMiningProof(parent, hashes, 1)
	require.NoError(t, err)
	err = proof.Verify(&headers[1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "above the target")

	uncommitted := solvedParent(t, nil)
	proof, err = NewMergeMiningProof(uncommitted, hashes, 0)
	require.NoError(t, err)
	err = proof.Verify(&headers[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no merge-mining commitment")

	proof, err = NewMergeMiningProof(parent, hashes, 0)
	require.NoError(t, err)
	proof.ParentHeader.MerkleRoot = chainhash.Hash{0x01}
	err = proof.Verify(&headers[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not part of the parent block")
}
