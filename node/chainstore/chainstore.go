// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainstore defines the view of chain state that chain registry,
// notarization and proof building read from, and provides an in-memory
// implementation backed by an optional leveldb block log.
package chainstore

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"gitlab.com/jaxnet/pbaasd/types/mmr"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// ChainState gives consistent read access to the chain. The snapshot passed
// to fn must not be retained after fn returns.
type ChainState interface {
	View(fn func(s Snapshot) error) error
}

// Snapshot is a point-in-time view of the chain and its indexes.
type Snapshot interface {
	// BestHeight is the height of the tip, -1 for an empty chain.
	BestHeight() int32

	// AddressUnspent lists unspent outputs paying to key with at least
	// minConf confirmations.
	AddressUnspent(key pbaas.KeyID, minConf int32) ([]AddressOutput, error)

	// AddressIndex lists every output ever paid to key in blocks
	// start..end inclusive, ordered by height and position.
	AddressIndex(key pbaas.KeyID, start, end int32) ([]AddressOutput, error)

	// FetchTransaction returns a mined transaction and the hash of the
	// block containing it.
	FetchTransaction(txid chainhash.Hash) (*wire.MsgTx, chainhash.Hash, error)

	BlockEntry(hash chainhash.Hash) (*BlockEntry, error)
	BlockEntryByHeight(height int32) (*BlockEntry, error)
	FetchBlock(hash chainhash.Hash) (*wire.MsgBlock, error)

	// MountainRange returns the MMR of the chain fixed at height.
	MountainRange(height int32) (MountainRange, error)
}

// MountainRange is the MMR of the chain as of one height.
type MountainRange interface {
	Height() int32
	Root() (mmr.Node, error)
	Proof(height int32) (*mmr.Proof, error)
}

// AddressOutput is an address index entry.
type AddressOutput struct {
	OutPoint  wire.OutPoint
	Value     int64
	Height    int32
	BlockHash chainhash.Hash

	// TxIndex is the position of the transaction within its block.
	TxIndex int
}

// BlockEntry describes a connected block.
type BlockEntry struct {
	Hash   chainhash.Hash
	Height int32
	Header wire.BlockHeader

	// Work is the work of this block alone.
	Work *big.Int
}
