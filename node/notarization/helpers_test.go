// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notarization

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// wrappedState decorates every snapshot of base.
type wrappedState struct {
	base chainstore.ChainState
	wrap func(s chainstore.Snapshot) chainstore.Snapshot
}

func (w wrappedState) View(fn func(s chainstore.Snapshot) error) error {
	return w.base.View(func(s chainstore.Snapshot) error { return fn(w.wrap(s)) })
}

type reversedUnspent struct {
	chainstore.Snapshot
}

func (r reversedUnspent) AddressUnspent(key pbaas.KeyID, minConf int32) ([]chainstore.AddressOutput, error) {
	out, err := r.Snapshot.AddressUnspent(key, minConf)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, err
}

type missingTx struct {
	chainstore.Snapshot
	txid chainhash.Hash
}

func (m missingTx) FetchTransaction(txid chainhash.Hash) (*wire.MsgTx, chainhash.Hash, error) {
	if txid == m.txid {
		return nil, chainhash.Hash{}, pbaas.MakeError(pbaas.ErrNotFound, "gone", nil)
	}
	return m.Snapshot.FetchTransaction(txid)
}

// indexOverride replaces address index results.
type indexOverride struct {
	chainstore.Snapshot
	fn func(entries []chainstore.AddressOutput) []chainstore.AddressOutput
}

func (o indexOverride) AddressIndex(key pbaas.KeyID, start, end int32) ([]chainstore.AddressOutput, error) {
	entries, err := o.Snapshot.AddressIndex(key, start, end)
	return o.fn(entries), err
}

type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

// forkTxIDs renders forks as txid sequences.
func forkTxIDs(data *pbaas.NotarizationData) [][]chainhash.Hash {
	res := make([][]chainhash.Hash, len(data.Forks))
	for i, fork := range data.Forks {
		for _, idx := range fork {
			res[i] = append(res[i], data.Vtx[idx].TxID)
		}
	}
	return res
}

// assertForkLinks checks every fork element extends the one before it.
func assertForkLinks(t *testing.T, data *pbaas.NotarizationData) {
	for f, fork := range data.Forks {
		for i := 1; i < len(fork); i++ {
			prev := data.Vtx[fork[i-1]].TxID
			assert.Equal(t, prev, data.Vtx[fork[i]].Notarization.PrevNotarization, "fork %d pos %d", f, i)
		}
	}
}
