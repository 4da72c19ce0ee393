// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MeetsTarget reports whether hash is at or below the target encoded in bits.
func MeetsTarget(hash chainhash.Hash, bits uint32) bool {
	target := blockchain.CompactToBig(bits)
	return target.Sign() > 0 && blockchain.HashToBig(&hash).Cmp(target) <= 0
}

// MergeMiningScript builds the coinbase output committing to root, the merkle
// root of the header hashes of the blocks mined together with the local one.
func MergeMiningScript(root chainhash.Hash) ([]byte, error) {
	return CommitmentScript(TagMergeMining, root[:])
}

// MergeMiningRoot returns the merge-mining root committed by coinbase.
func MergeMiningRoot(coinbase *wire.MsgTx) (chainhash.Hash, bool) {
	var root chainhash.Hash
	payload, ok := FindCommitment(coinbase, TagMergeMining)
	if !ok || len(payload) != chainhash.HashSize {
		return root, false
	}
	copy(root[:], payload)
	return root, true
}

// MergeMiningProof carries the proof of work of a block solved through the
// header of a parent block of another chain.
//
// The parent coinbase commits to the merkle root of the merge-mined header
// hashes; CoinbaseBranch links the coinbase to ParentHeader.MerkleRoot and
// HeaderBranch links the merge-mined header to the committed root.
type MergeMiningProof struct {
	ParentHeader   wire.BlockHeader
	Coinbase       *wire.MsgTx
	CoinbaseBranch MerkleBranch
	HeaderBranch   MerkleBranch
}

// NewMergeMiningProof proves headers[index] through the solved parent block
// whose coinbase commits to the merkle root of headers.
func NewMergeMiningProof(parent *wire.MsgBlock, headers []chainhash.Hash, index int) (*MergeMiningProof, error) {
	if len(parent.Transactions) == 0 {
		return nil, MakeError(ErrInvalidParameter, "parent block has no coinbase", nil)
	}
	coinbaseBranch, err := NewMerkleBranch(parent.Transactions, 0)
	if err != nil {
		return nil, err
	}
	headerBranch, err := NewHashBranch(headers, index)
	if err != nil {
		return nil, err
	}

	return &MergeMiningProof{
		ParentHeader:   parent.Header,
		Coinbase:       parent.Transactions[0].Copy(),
		CoinbaseBranch: *coinbaseBranch,
		HeaderBranch:   *headerBranch,
	}, nil
}

// Verify checks that the proof commits to header and that the parent proof
// of work meets the target of header.
func (p *MergeMiningProof) Verify(header *wire.BlockHeader) error {
	if p.Coinbase == nil || !blockchain.IsCoinBaseTx(p.Coinbase) {
		return MakeError(ErrInvalidParameter, "merge-mining proof carries no coinbase", nil)
	}
	if p.CoinbaseBranch.Index != 0 || p.CoinbaseBranch.Root(p.Coinbase.TxHash()) != p.ParentHeader.MerkleRoot {
		return MakeError(ErrInvalidParameter, "coinbase is not part of the parent block", nil)
	}

	root, ok := MergeMiningRoot(p.Coinbase)
	if !ok {
		return MakeError(ErrInvalidParameter, "coinbase has no merge-mining commitment", nil)
	}
	if p.HeaderBranch.Root(header.BlockHash()) != root {
		return MakeError(ErrInvalidParameter, "header is not committed by the parent coinbase", nil)
	}

	if !MeetsTarget(p.ParentHeader.BlockHash(), header.Bits) {
		return MakeError(ErrInvalidParameter, "parent proof of work is above the target", nil)
	}
	return nil
}

func (p *MergeMiningProof) Serialize(w io.Writer) error {
	if err := p.ParentHeader.Serialize(w); err != nil {
		return err
	}
	if err := p.Coinbase.Serialize(w); err != nil {
		return err
	}
	if err := p.CoinbaseBranch.Serialize(w); err != nil {
		return err
	}
	return p.HeaderBranch.Serialize(w)
}

func (p *MergeMiningProof) Deserialize(r io.Reader) error {
	if err := p.ParentHeader.Deserialize(r); err != nil {
		return err
	}
	p.Coinbase = new(wire.MsgTx)
	if err := p.Coinbase.Deserialize(r); err != nil {
		return err
	}
	if err := p.CoinbaseBranch.Deserialize(r); err != nil {
		return err
	}
	return p.HeaderBranch.Deserialize(r)
}

func (p *MergeMiningProof) Bytes() []byte {
	var buf bytes.Buffer
	_ = p.Serialize(&buf)
	return buf.Bytes()
}
