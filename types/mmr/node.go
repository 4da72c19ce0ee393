/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

// Package mmr holds the value types of the Merkle Mountain Range over
// block hashes and block work: nodes, the node merge rule and inclusion
// proofs. The tree itself lives in node/mmr.
package mmr

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/minio/sha256-simd"
)

// Node is a leaf (block hash, block work) or an interior node
// (merged hash, summed work).
type Node struct {
	Hash   chainhash.Hash
	Weight *big.Int
}

// Bytes returns hash || big-endian weight.
func (n Node) Bytes() []byte {
	var wBytes []byte
	if n.Weight != nil {
		wBytes = n.Weight.Bytes()
	}

	v := make([]byte, chainhash.HashSize+len(wBytes))
	copy(v[:chainhash.HashSize], n.Hash[:])
	copy(v[chainhash.HashSize:], wBytes)
	return v
}

func (n Node) weight() *big.Int {
	if n.Weight == nil {
		return new(big.Int)
	}
	return n.Weight
}

// Merge combines two children into their parent:
//
//	parent.hash   = SHA256( concat(left.hash, left.weight, right.hash, right.weight) )
//	parent.weight = left.weight + right.weight
func Merge(left, right Node) Node {
	lv := left.Bytes()
	rv := right.Bytes()

	data := make([]byte, len(lv)+len(rv))
	copy(data[:len(lv)], lv)
	copy(data[len(lv):], rv)

	return Node{
		Hash:   chainhash.Hash(sha256.Sum256(data)),
		Weight: new(big.Int).Add(left.weight(), right.weight()),
	}
}

// Equal compares hash and weight.
func (n Node) Equal(o Node) bool {
	return n.Hash == o.Hash && n.weight().Cmp(o.weight()) == 0
}

// SplitPoint returns the largest power of two strictly below n, the size of
// the left subtree of a tree with n leaves. n must be at least 2.
func SplitPoint(n uint64) uint64 {
	k := uint64(1)
	for k<<1 < n {
		k <<= 1
	}
	return k
}
