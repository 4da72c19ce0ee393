/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package mmr

import (
	"encoding/binary"
	"errors"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrProofTooShort = errors.New("mmr proof path is too short")
	ErrProofTooLong  = errors.New("mmr proof path is too long")
	ErrLeafOutOfTree = errors.New("leaf index is outside of the tree")
)

const maxPathLen = 64

// Proof is the audit path of one leaf of a tree with Size leaves. Path runs
// from the leaf's sibling up to the child of the root.
type Proof struct {
	LeafIndex uint64
	Size      uint64
	Path      []Node
}

// Root recomputes the root committed by the proof for leaf.
func (p *Proof) Root(leaf Node) (Node, error) {
	if p.LeafIndex >= p.Size {
		return Node{}, ErrLeafOutOfTree
	}

	fn, sn := p.LeafIndex, p.Size-1
	r := leaf
	for _, sibling := range p.Path {
		if sn == 0 {
			return Node{}, ErrProofTooLong
		}
		if fn&1 == 1 || fn == sn {
			r = Merge(sibling, r)
			for fn&1 == 0 && fn != 0 {
				fn >>= 1
				sn >>= 1
			}
		} else {
			r = Merge(r, sibling)
		}
		fn >>= 1
		sn >>= 1
	}
	if sn != 0 {
		return Node{}, ErrProofTooShort
	}
	return r, nil
}

// Verify reports whether leaf is included under root.
func (p *Proof) Verify(leaf Node, root chainhash.Hash) bool {
	r, err := p.Root(leaf)
	return err == nil && r.Hash == root
}

func (p *Proof) Serialize(w io.Writer) error {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], p.LeafIndex)
	binary.LittleEndian.PutUint64(buf[8:], p.Size)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, 0, uint64(len(p.Path))); err != nil {
		return err
	}
	for _, node := range p.Path {
		if err := wire.WriteVarBytes(w, 0, node.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Proof) Deserialize(r io.Reader) error {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	p.LeafIndex = binary.LittleEndian.Uint64(buf[:8])
	p.Size = binary.LittleEndian.Uint64(buf[8:])

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return err
	}
	if count > maxPathLen {
		return ErrProofTooLong
	}

	p.Path = make([]Node, count)
	for i := range p.Path {
		v, err := wire.ReadVarBytes(r, 0, chainhash.HashSize+64, "mmr node")
		if err != nil {
			return err
		}
		if p.Path[i], err = NodeFromBytes(v); err != nil {
			return err
		}
	}
	return nil
}

// NodeFromBytes is the inverse of Node.Bytes.
func NodeFromBytes(v []byte) (Node, error) {
	if len(v) < chainhash.HashSize {
		return Node{}, errors.New("mmr node value is too short")
	}

	var n Node
	copy(n.Hash[:], v[:chainhash.HashSize])
	n.Weight = new(big.Int).SetBytes(v[chainhash.HashSize:])
	return n, nil
}
