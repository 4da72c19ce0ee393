// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// MergeMiningCommitter provides the merkle root of the headers of other
// chains' blocks to mine together with a new template.
type MergeMiningCommitter interface {
	MergeMiningRoot() (chainhash.Hash, bool)
}

// TemplateSource assembles coinbase-only block templates on top of a chain
// state. Transaction selection is left to the mempool owner.
type TemplateSource struct {
	*Memory
	PayTo pbaas.KeyID
	Now   func() time.Time

	// MergeMining, when set, has its root committed by the coinbase.
	MergeMining MergeMiningCommitter
}

// NewBlockTemplate returns an unsolved block extending the tip.
func (t *TemplateSource) NewBlockTemplate() (*wire.MsgBlock, int32, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	height := t.bestHeight() + 1
	header := wire.BlockHeader{
		Version:   4,
		Bits:      t.params.PowLimitBits,
		Timestamp: t.now(),
	}
	if height > 0 {
		tip := t.chain[height-1].entry
		header.PrevBlock = tip.Hash
		if !header.Timestamp.After(tip.Header.Timestamp) {
			header.Timestamp = tip.Header.Timestamp.Add(time.Second)
		}
	}

	coinbase, err := CoinbaseTx(height, blockchain.CalcBlockSubsidy(height, t.params), t.PayTo)
	if err != nil {
		return nil, 0, err
	}
	if t.MergeMining != nil {
		if root, ok := t.MergeMining.MergeMiningRoot(); ok {
			script, err := pbaas.MergeMiningScript(root)
			if err != nil {
				return nil, 0, err
			}
			coinbase.AddTxOut(wire.NewTxOut(0, script))
		}
	}
	block := wire.NewMsgBlock(&header)
	if err = block.AddTransaction(coinbase); err != nil {
		return nil, 0, err
	}
	block.Header.MerkleRoot = MerkleRoot(block.Transactions)
	return block, height, nil
}

func (t *TemplateSource) now() time.Time {
	if t.Now != nil {
		return time.Unix(t.Now().Unix(), 0)
	}
	return time.Unix(time.Now().Unix(), 0)
}

// CoinbaseTx builds a coinbase paying value to payTo with the height pushed
// first in its signature script.
func CoinbaseTx(height int32, value int64, payTo pbaas.KeyID) (*wire.MsgTx, error) {
	sigScript, err := txscript.NewScriptBuilder().
		AddInt64(int64(height)).
		AddData([]byte("/pbaasd/")).
		Script()
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), sigScript, nil))
	tx.AddTxOut(wire.NewTxOut(value, pbaas.PayToKeyIDScript(payTo)))
	return tx, nil
}

// MerkleRoot computes the transaction merkle root of a block.
func MerkleRoot(txs []*wire.MsgTx) chainhash.Hash {
	utxs := make([]*btcutil.Tx, len(txs))
	for i, tx := range txs {
		utxs[i] = btcutil.NewTx(tx)
	}
	store := blockchain.BuildMerkleTreeStore(utxs, false)
	return *store[len(store)-1]
}
