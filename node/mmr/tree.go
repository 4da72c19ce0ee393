/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package mmr

import (
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/types/mmr"
)

var ErrHeightOutOfRange = errors.New("height is beyond the mountain range")

type subtree struct {
	start uint64
	size  uint64
}

// Tree is an append-only Merkle Mountain Range backed by a leaf Store.
type Tree struct {
	mtx   sync.Mutex
	store Store
	nodes map[subtree]mmr.Node
}

func NewTree(store Store) *Tree {
	return &Tree{store: store, nodes: make(map[subtree]mmr.Node)}
}

// Append adds the leaf of the next block and returns its height.
func (t *Tree) Append(hash chainhash.Hash, weight *big.Int) (int32, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	height := int32(t.store.Len())
	if err := t.store.Append(mmr.Node{Hash: hash, Weight: new(big.Int).Set(weight)}); err != nil {
		return 0, errors.Wrapf(err, "can't append leaf %d", height)
	}
	return height, nil
}

// Len returns the number of leaves.
func (t *Tree) Len() uint64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.store.Len()
}

// Leaf returns the leaf at index.
func (t *Tree) Leaf(index uint64) (mmr.Node, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.store.Leaf(index)
}

// Root returns the root of the first size leaves.
func (t *Tree) Root(size uint64) (mmr.Node, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if size == 0 || size > t.store.Len() {
		return mmr.Node{}, ErrHeightOutOfRange
	}
	return t.subtreeRoot(0, size)
}

// Proof returns the inclusion proof of leaf in the tree of the first size
// leaves.
func (t *Tree) Proof(leaf, size uint64) (*mmr.Proof, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if size == 0 || size > t.store.Len() || leaf >= size {
		return nil, ErrHeightOutOfRange
	}

	path, err := t.path(leaf, 0, size)
	if err != nil {
		return nil, err
	}
	return &mmr.Proof{LeafIndex: leaf, Size: size, Path: path}, nil
}

// path lists the siblings of leaf m in the subtree [start, start+n), deepest
// first.
func (t *Tree) path(m, start, n uint64) ([]mmr.Node, error) {
	if n == 1 {
		return nil, nil
	}

	k := mmr.SplitPoint(n)
	var (
		path    []mmr.Node
		sibling mmr.Node
		err     error
	)
	if m < k {
		if path, err = t.path(m, start, k); err != nil {
			return nil, err
		}
		sibling, err = t.subtreeRoot(start+k, n-k)
	} else {
		if path, err = t.path(m-k, start+k, n-k); err != nil {
			return nil, err
		}
		sibling, err = t.subtreeRoot(start, k)
	}
	if err != nil {
		return nil, err
	}
	return append(path, sibling), nil
}

func (t *Tree) subtreeRoot(start, size uint64) (mmr.Node, error) {
	if size == 1 {
		return t.store.Leaf(start)
	}

	key := subtree{start: start, size: size}
	perfect := size&(size-1) == 0
	if perfect {
		if node, ok := t.nodes[key]; ok {
			return node, nil
		}
	}

	k := mmr.SplitPoint(size)
	left, err := t.subtreeRoot(start, k)
	if err != nil {
		return mmr.Node{}, err
	}
	right, err := t.subtreeRoot(start+k, size-k)
	if err != nil {
		return mmr.Node{}, err
	}

	node := mmr.Merge(left, right)
	if perfect {
		t.nodes[key] = node
	}
	return node, nil
}

// View fixes the tree at height; later appends are invisible to it.
func (t *Tree) View(height int32) (*View, error) {
	if height < 0 || uint64(height) >= t.Len() {
		return nil, ErrHeightOutOfRange
	}
	return &View{tree: t, size: uint64(height) + 1}, nil
}

// View is the mountain range as it was at a given height.
type View struct {
	tree *Tree
	size uint64
}

func (v *View) Height() int32 { return int32(v.size - 1) }

// Root covers every block up to the view height.
func (v *View) Root() (mmr.Node, error) {
	return v.tree.Root(v.size)
}

// Proof proves the block at height against Root.
func (v *View) Proof(height int32) (*mmr.Proof, error) {
	if height < 0 {
		return nil, ErrHeightOutOfRange
	}
	return v.tree.Proof(uint64(height), v.size)
}
