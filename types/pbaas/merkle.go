// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"io"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const maxBranchLen = 32

// MerkleBranch proves that a transaction is at position Index of a block's
// transaction merkle tree. Hashes are the siblings from the leaf upwards.
type MerkleBranch struct {
	Index  uint32
	Hashes []chainhash.Hash
}

// NewMerkleBranch builds the branch of the transaction at index. The tree
// shape matches blockchain.BuildMerkleTreeStore: a lone node at the end of a
// level is paired with itself.
func NewMerkleBranch(txs []*wire.MsgTx, index int) (*MerkleBranch, error) {
	leaves := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.TxHash()
	}
	return NewHashBranch(leaves, index)
}

// NewHashBranch builds the branch of leaves[index] in the merkle tree of
// leaves.
func NewHashBranch(leaves []chainhash.Hash, index int) (*MerkleBranch, error) {
	if index < 0 || index >= len(leaves) {
		return nil, MakeError(ErrInvalidParameter, "merkle leaf index is out of range", nil)
	}

	level := append([]chainhash.Hash(nil), leaves...)
	branch := &MerkleBranch{Index: uint32(index)}
	pos := index
	for len(level) > 1 {
		sibling := pos ^ 1
		if sibling >= len(level) {
			sibling = pos
		}
		branch.Hashes = append(branch.Hashes, level[sibling])

		level = nextMerkleLevel(level)
		pos >>= 1
	}
	return branch, nil
}

// HashMerkleRoot returns the merkle root of leaves, the zero hash for none.
func HashMerkleRoot(leaves []chainhash.Hash) chainhash.Hash {
	if len(leaves) == 0 {
		return chainhash.Hash{}
	}
	level := leaves
	for len(level) > 1 {
		level = nextMerkleLevel(level)
	}
	return level[0]
}

func nextMerkleLevel(level []chainhash.Hash) []chainhash.Hash {
	next := make([]chainhash.Hash, (len(level)+1)/2)
	for i := range next {
		left := &level[2*i]
		right := left
		if 2*i+1 < len(level) {
			right = &level[2*i+1]
		}
		next[i] = *blockchain.HashMerkleBranches(left, right)
	}
	return next
}

// Root returns the merkle root implied by leaf and the branch.
func (b *MerkleBranch) Root(leaf chainhash.Hash) chainhash.Hash {
	cur := leaf
	index := b.Index
	for i := range b.Hashes {
		sibling := b.Hashes[i]
		if index&1 == 1 {
			cur = *blockchain.HashMerkleBranches(&sibling, &cur)
		} else {
			cur = *blockchain.HashMerkleBranches(&cur, &sibling)
		}
		index >>= 1
	}
	return cur
}

func (b *MerkleBranch) Serialize(w io.Writer) error {
	if err := writeUint32(w, b.Index); err != nil {
		return err
	}
	if err := writeCount(w, len(b.Hashes)); err != nil {
		return err
	}
	for i := range b.Hashes {
		if err := writeHash(w, &b.Hashes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *MerkleBranch) Deserialize(r io.Reader) (err error) {
	if b.Index, err = readUint32(r); err != nil {
		return err
	}
	n, err := readCount(r, maxBranchLen, "merkle branch")
	if err != nil {
		return err
	}
	b.Hashes = make([]chainhash.Hash, n)
	for i := range b.Hashes {
		if err = readHash(r, &b.Hashes[i]); err != nil {
			return err
		}
	}
	return nil
}
