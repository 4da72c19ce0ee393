/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

// Package mmr maintains the Merkle Mountain Range of a chain: one leaf per
// block, appended as blocks connect, with roots and inclusion proofs
// available for every past height.
//
// A leaf holds the block hash and the block work:
//
//	block = { hash; weight }
//
// Two children are merged by hashing their concatenated values and summing
// their weights (see types/mmr.Merge):
//
//	   root = block1 + block2
//	where:
//	   bv1 = concat(block1.hash, block1.weight)
//	   bv2 = concat(block2.hash, block2.weight)
//	   root.hash   = SHA256( concat(bv1, bv2) )
//	   root.weight = block1.weight+block2.weight
//
// The root at height h covers blocks 0..h. Its left subtree holds the
// largest power of two of leaves that is smaller than h+1, so subtrees of
// complete powers of two never change once built and are cached.
//
// Tree Topology:
//
// For 1 leaf:
//
//	0: root = block1
//
// For 2 leaves:
//
//	1:      root = node12 = block1 + block2
//	       /       \
//	0:   block1   block2
//
// For 3 leaves:
//
//	2:          root = node12 + block3
//	             /      \
//	1:       node12      \
//	        /     \       \
//	0:   block1  block2   block3
//
// For 4 leaves:
//
//	2:            root = node12 + node34
//	              /           \
//	1:        node12         node34
//	         /     \        /      \
//	0:   block1  block2   block3   block4
//
// For 5 leaves:
//
//	3:                    root = node12_34 + block5
//	                        /       \
//	2:              node12_34         \
//	               /         \          \
//	1:        node12         node34       \
//	         /     \        /      \        \
//	0:   block1  block2   block3   block4   block5
//
// For 6 leaves:
//
//	3:                     root = node12_34 + node56
//	                        /              \
//	2:               node12_34               \
//	               /         \                 \
//	1:        node12         node34            node56
//	         /     \        /      \          /      \
//	0:   block1  block2   block3   block4   block5  block6
//
// For 7 leaves:
//
//	3:                      root = node12_34 + node56_7
//	                        /                        \
//	2:               node12_34                      node56_7
//	               /         \                      /       \
//	1:        node12         node34            node56        \
//	         /     \        /      \          /      \        \
//	0:   block1  block2   block3  block4   block5  block6   block7
//
// For 8 leaves:
//
//	3:                      root = node12_34 + node56_78
//	                        /                        \
//	2:              node12_34                         node56_78
//	               /         \                      /          \
//	1:        node12         node34            node56           node78
//	         /     \        /      \          /      \         /     \
//	0:   block1  block2   block3  block4   block5  block6   block7  block8
package mmr
