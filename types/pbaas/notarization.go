// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

const NotarizationVersion = 1

// Notarization is a claim that a chain had the given height, MMR root and
// accumulated power. PrevNotarization links it to the notarization (or chain
// definition transaction) it extends.
type Notarization struct {
	Version            uint32
	ChainID            ChainID
	RewardPerBlock     int64
	NotarizationHeight int32
	MMRRoot            chainhash.Hash
	CompactPower       CompactPower

	// CrossNotarization is the matching notarization made on the other
	// chain, zero when unknown.
	CrossNotarization chainhash.Hash
	CrossHeight       int32

	PrevNotarization chainhash.Hash
	PrevHeight       int32

	OpRetProof OpRetProof
	Nodes      []NodeData
}

func (n *Notarization) IsValid() bool {
	return n.Version != 0 && !n.ChainID.IsZero()
}

// Power expands the notarization's compact power for the fork at forkIndex.
func (n *Notarization) Power(forkIndex int) ChainPower {
	return ExpandCompactPower(n.CompactPower, forkIndex)
}

func (n *Notarization) Serialize(w io.Writer) error {
	if err := writeUint32(w, n.Version); err != nil {
		return err
	}
	if _, err := w.Write(n.ChainID[:]); err != nil {
		return err
	}
	if err := writeInt64(w, n.RewardPerBlock); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(n.NotarizationHeight)); err != nil {
		return err
	}
	if err := writeHash(w, &n.MMRRoot); err != nil {
		return err
	}
	if _, err := w.Write(n.CompactPower[:]); err != nil {
		return err
	}
	if err := writeHash(w, &n.CrossNotarization); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(n.CrossHeight)); err != nil {
		return err
	}
	if err := writeHash(w, &n.PrevNotarization); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(n.PrevHeight)); err != nil {
		return err
	}
	if err := n.OpRetProof.Serialize(w); err != nil {
		return err
	}

	if err := writeCount(w, len(n.Nodes)); err != nil {
		return err
	}
	for i := range n.Nodes {
		if err := n.Nodes[i].encode(w); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notarization) Deserialize(r io.Reader) (err error) {
	var u uint32
	if n.Version, err = readUint32(r); err != nil {
		return err
	}
	if _, err = io.ReadFull(r, n.ChainID[:]); err != nil {
		return err
	}
	if n.RewardPerBlock, err = readInt64(r); err != nil {
		return err
	}
	if u, err = readUint32(r); err != nil {
		return err
	}
	n.NotarizationHeight = int32(u)
	if err = readHash(r, &n.MMRRoot); err != nil {
		return err
	}
	if _, err = io.ReadFull(r, n.CompactPower[:]); err != nil {
		return err
	}
	if err = readHash(r, &n.CrossNotarization); err != nil {
		return err
	}
	if u, err = readUint32(r); err != nil {
		return err
	}
	n.CrossHeight = int32(u)
	if err = readHash(r, &n.PrevNotarization); err != nil {
		return err
	}
	if u, err = readUint32(r); err != nil {
		return err
	}
	n.PrevHeight = int32(u)
	if err = n.OpRetProof.Deserialize(r); err != nil {
		return err
	}

	count, err := readCount(r, MaxNodes, "node")
	if err != nil {
		return err
	}
	n.Nodes = make([]NodeData, count)
	for i := range n.Nodes {
		if err = n.Nodes[i].decode(r); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notarization) Bytes() []byte {
	var buf bytes.Buffer
	_ = n.Serialize(&buf)
	return buf.Bytes()
}

// NotarizationFromTx extracts the notarization committed by tx. Chain
// definition transactions carry the chain's base notarization and are
// accepted as well.
func NotarizationFromTx(tx *wire.MsgTx) (*Notarization, error) {
	payload, ok := FindCommitment(tx, TagNotarization)
	if !ok {
		return nil, MakeError(ErrNotFound, "transaction has no notarization commitment", nil)
	}

	n := new(Notarization)
	if err := n.Deserialize(bytes.NewReader(payload)); err != nil {
		return nil, errors.Wrap(err, "can't decode notarization")
	}
	if !n.IsValid() {
		return nil, MakeError(ErrInvalidParameter, "invalid notarization", nil)
	}
	return n, nil
}

// NotarizationEntry is a notarization with the transaction carrying it and
// the height of the block containing that transaction.
type NotarizationEntry struct {
	TxID         chainhash.Hash
	BlockHeight  int32
	Notarization *Notarization
}

// NotarizationData is the fork structure of the unspent notarizations of one
// chain. Forks hold indexes into Vtx; Vtx is ordered by block height.
type NotarizationData struct {
	Version uint32
	Class   EvalCode
	Vtx     []NotarizationEntry
	Forks   [][]int

	// LastConfirmed is the index of the confirmed root, or -1 when only the
	// chain definition is known.
	LastConfirmed int

	// BestChain is the notarized height at the tip of the most powerful
	// fork and BestFork is that fork's index.
	BestChain int32
	BestFork  int

	// PowerTie is set when another fork matched the best fork's power.
	PowerTie bool
}

// IsConfirmed reports whether a confirmed notarization roots the forks.
func (d *NotarizationData) IsConfirmed() bool {
	return d.LastConfirmed >= 0
}

// Tip returns the last entry of the fork at index i.
func (d *NotarizationData) Tip(fork int) *NotarizationEntry {
	f := d.Forks[fork]
	return &d.Vtx[f[len(f)-1]]
}
