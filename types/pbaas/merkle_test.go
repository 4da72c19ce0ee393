/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package pbaas

import (
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyTxs(n int) []*wire.MsgTx {
	txs := make([]*wire.MsgTx, n)
	for i := range txs {
		tx := wire.NewMsgTx(wire.TxVersion)
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{byte(i)}, uint32(i)), nil, nil))
		tx.AddTxOut(wire.NewTxOut(int64(i), []byte{byte(i)}))
		txs[i] = tx
	}
	return txs
}

func TestMerkleBranch(t *testing.T) {
	for n := 1; n <= 9; n++ {
		txs := dummyTxs(n)
		utxs := make([]*btcutil.Tx, n)
		for i := range txs {
			utxs[i] = btcutil.NewTx(txs[i])
		}
		store := blockchain.BuildMerkleTreeStore(utxs, false)
		root := *store[len(store)-1]

		for i := 0; i < n; i++ {
			branch, err := NewMerkleBranch(txs, i)
			require.NoError(t, err)
			assert.Equal(t, root, branch.Root(txs[i].TxHash()), "n=%d i=%d", n, i)

			if n > 1 {
				other := txs[(i+1)%n].TxHash()
				assert.NotEqual(t, root, branch.Root(other), "n=%d i=%d", n, i)
			}
		}
	}

	_, err := NewMerkleBranch(dummyTxs(2), 2)
	assert.True(t, IsErrorCode(err, ErrInvalidParameter))
}
