// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/types/mmr"
)

// ObjectType tags the kind of a chain object in a proof bundle.
type ObjectType uint16

const (
	ObjectInvalid ObjectType = iota
	ObjectHeader
	ObjectProof
	ObjectTransaction
)

const maxBundleObjects = 16

func (t ObjectType) String() string {
	switch t {
	case ObjectHeader:
		return "header"
	case ObjectProof:
		return "proof"
	case ObjectTransaction:
		return "transaction"
	default:
		return "invalid"
	}
}

// OpRetRef commits to one object of a bundle by type and hash.
type OpRetRef struct {
	Type ObjectType
	Hash chainhash.Hash
}

// OpRetProof lists the commitments of a bundle's objects in order.
type OpRetProof []OpRetRef

func (o OpRetProof) Serialize(w io.Writer) error {
	if err := writeCount(w, len(o)); err != nil {
		return err
	}
	for i := range o {
		var t [2]byte
		le.PutUint16(t[:], uint16(o[i].Type))
		if _, err := w.Write(t[:]); err != nil {
			return err
		}
		if err := writeHash(w, &o[i].Hash); err != nil {
			return err
		}
	}
	return nil
}

func (o *OpRetProof) Deserialize(r io.Reader) error {
	n, err := readCount(r, maxBundleObjects, "op-return proof")
	if err != nil {
		return err
	}
	refs := make(OpRetProof, n)
	for i := range refs {
		var t [2]byte
		if _, err = io.ReadFull(r, t[:]); err != nil {
			return err
		}
		refs[i].Type = ObjectType(le.Uint16(t[:]))
		if err = readHash(r, &refs[i].Hash); err != nil {
			return err
		}
	}
	*o = refs
	return nil
}

// ChainObject is one element of a ProofBundle.
type ChainObject interface {
	ObjectType() ObjectType
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
}

// HeaderObject carries a block header.
type HeaderObject struct {
	Header wire.BlockHeader
}

func (*HeaderObject) ObjectType() ObjectType          { return ObjectHeader }
func (h *HeaderObject) Serialize(w io.Writer) error   { return h.Header.Serialize(w) }
func (h *HeaderObject) Deserialize(r io.Reader) error { return h.Header.Deserialize(r) }

// TransactionObject carries a transaction, usually with its commitment
// output stripped.
type TransactionObject struct {
	Tx *wire.MsgTx
}

func (*TransactionObject) ObjectType() ObjectType        { return ObjectTransaction }
func (t *TransactionObject) Serialize(w io.Writer) error { return t.Tx.Serialize(w) }
func (t *TransactionObject) Deserialize(r io.Reader) error {
	t.Tx = new(wire.MsgTx)
	return t.Tx.Deserialize(r)
}

// ProofObject proves that a block, or a transaction of a block when TxBranch
// is set, is part of the MMR of a chain. Header is the header of the block
// the MMR leaf commits to.
type ProofObject struct {
	TxBranch *MerkleBranch
	Header   wire.BlockHeader
	MMR      mmr.Proof
}

func (*ProofObject) ObjectType() ObjectType { return ObjectProof }

func (p *ProofObject) Serialize(w io.Writer) error {
	var flags [1]byte
	if p.TxBranch != nil {
		flags[0] = 1
	}
	if _, err := w.Write(flags[:]); err != nil {
		return err
	}
	if p.TxBranch != nil {
		if err := p.TxBranch.Serialize(w); err != nil {
			return err
		}
	}
	if err := p.Header.Serialize(w); err != nil {
		return err
	}
	return p.MMR.Serialize(w)
}

func (p *ProofObject) Deserialize(r io.Reader) error {
	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return err
	}
	p.TxBranch = nil
	if flags[0]&1 == 1 {
		p.TxBranch = new(MerkleBranch)
		if err := p.TxBranch.Deserialize(r); err != nil {
			return err
		}
	}
	if err := p.Header.Deserialize(r); err != nil {
		return err
	}
	return p.MMR.Deserialize(r)
}

// LeafNode returns the MMR leaf committed for a block header.
func LeafNode(header *wire.BlockHeader) mmr.Node {
	return mmr.Node{Hash: header.BlockHash(), Weight: blockchain.CalcWork(header.Bits)}
}

// Verify checks that subject (a block hash, or a txid when TxBranch is set)
// is included under the MMR root.
func (p *ProofObject) Verify(subject, root chainhash.Hash) error {
	if p.TxBranch != nil {
		if merkleRoot := p.TxBranch.Root(subject); merkleRoot != p.Header.MerkleRoot {
			return MakeError(ErrInvalidParameter,
				fmt.Sprintf("transaction %s is not in block %s", subject, p.Header.BlockHash()), nil)
		}
	} else if hash := p.Header.BlockHash(); hash != subject {
		return MakeError(ErrInvalidParameter,
			fmt.Sprintf("proof is for block %s, not %s", hash, subject), nil)
	}

	if !p.MMR.Verify(LeafNode(&p.Header), root) {
		return MakeError(ErrInvalidParameter, "mmr proof does not match root "+root.String(), nil)
	}
	return nil
}

func newChainObject(t ObjectType) (ChainObject, error) {
	switch t {
	case ObjectHeader:
		return new(HeaderObject), nil
	case ObjectProof:
		return new(ProofObject), nil
	case ObjectTransaction:
		return new(TransactionObject), nil
	}
	return nil, MakeError(ErrInvalidParameter, fmt.Sprintf("unknown chain object type %d", t), nil)
}

// ProofBundle is the ordered list of chain objects sent to the other chain
// together with the commitments to those objects.
type ProofBundle struct {
	Objects    []ChainObject
	OpRetProof OpRetProof
}

// Add appends obj and its commitment.
func (b *ProofBundle) Add(obj ChainObject, hash chainhash.Hash) {
	b.Objects = append(b.Objects, obj)
	b.OpRetProof = append(b.OpRetProof, OpRetRef{Type: obj.ObjectType(), Hash: hash})
}

func (b *ProofBundle) Serialize(w io.Writer) error {
	if err := writeCount(w, len(b.Objects)); err != nil {
		return err
	}
	for _, obj := range b.Objects {
		var buf bytes.Buffer
		if err := obj.Serialize(&buf); err != nil {
			return err
		}

		var t [2]byte
		le.PutUint16(t[:], uint16(obj.ObjectType()))
		if _, err := w.Write(t[:]); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, pver, buf.Bytes()); err != nil {
			return err
		}
	}
	return b.OpRetProof.Serialize(w)
}

func (b *ProofBundle) Deserialize(r io.Reader) error {
	n, err := readCount(r, maxBundleObjects, "chain object")
	if err != nil {
		return err
	}

	b.Objects = make([]ChainObject, 0, n)
	for i := 0; i < n; i++ {
		var t [2]byte
		if _, err = io.ReadFull(r, t[:]); err != nil {
			return err
		}
		obj, err := newChainObject(ObjectType(le.Uint16(t[:])))
		if err != nil {
			return err
		}
		payload, err := wire.ReadVarBytes(r, pver, maxVarBytes, "chain object")
		if err != nil {
			return err
		}
		if err = obj.Deserialize(bytes.NewReader(payload)); err != nil {
			return errors.Wrapf(err, "can't decode chain object %d", i)
		}
		b.Objects = append(b.Objects, obj)
	}
	return b.OpRetProof.Deserialize(r)
}

func (b *ProofBundle) Bytes() []byte {
	var buf bytes.Buffer
	_ = b.Serialize(&buf)
	return buf.Bytes()
}

// Verify checks the bundle without external state: every object matches its
// commitment and every proof object verifies against root.
func (b *ProofBundle) Verify(root chainhash.Hash) error {
	if len(b.Objects) != len(b.OpRetProof) {
		return MakeError(ErrInvalidParameter, "object and commitment counts differ", nil)
	}

	for i, obj := range b.Objects {
		ref := b.OpRetProof[i]
		if obj.ObjectType() != ref.Type {
			return MakeError(ErrInvalidParameter,
				fmt.Sprintf("object %d is a %s, committed as %s", i, obj.ObjectType(), ref.Type), nil)
		}

		switch o := obj.(type) {
		case *HeaderObject:
			if o.Header.BlockHash() != ref.Hash {
				return MakeError(ErrInvalidParameter, fmt.Sprintf("header %d hash mismatch", i), nil)
			}
		case *TransactionObject:
			if o.Tx == nil || o.Tx.TxHash() != ref.Hash {
				return MakeError(ErrInvalidParameter, fmt.Sprintf("transaction %d hash mismatch", i), nil)
			}
		case *ProofObject:
			if err := o.Verify(ref.Hash, root); err != nil {
				return errors.Wrapf(err, "proof %d", i)
			}
		}
	}
	return nil
}
