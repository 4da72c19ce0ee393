// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

const (
	ChainDefinitionVersion = 1

	// MaxNameLen is the longest chain name accepted, in bytes.
	MaxNameLen = 63

	// MaxNodes is the number of bootstrap nodes carried by chain
	// definitions and notarizations.
	MaxNodes = 2

	maxEras = 3

	// MinBillingPeriod is the shortest notarization billing period, in
	// blocks.
	MinBillingPeriod = 960

	// MinPerBlockNotarization is the smallest notarization reward per
	// block of billing period, in satoshis.
	MinPerBlockNotarization = 1000000 / 100

	// DefaultStartOffset is the number of blocks between defining a chain
	// and its start block when none is given.
	DefaultStartOffset = 100
)

// NodeData is a bootstrap hint: where a node can be reached and where it
// wants to be paid.
type NodeData struct {
	NetworkAddress string
	PaymentAddress KeyID
}

func (n *NodeData) encode(w io.Writer) error {
	if err := wire.WriteVarString(w, pver, n.NetworkAddress); err != nil {
		return err
	}
	_, err := w.Write(n.PaymentAddress[:])
	return err
}

func (n *NodeData) decode(r io.Reader) error {
	addr, err := wire.ReadVarString(r, pver)
	if err != nil {
		return err
	}
	n.NetworkAddress = addr
	_, err = io.ReadFull(r, n.PaymentAddress[:])
	return err
}

// RewardEra is one era of the block reward schedule.
type RewardEra struct {
	Reward  int64
	Decay   int64
	Halving int32
	EraEnd  int32
	Options int32
}

// ChainDefinition is the immutable description of a PBaaS chain published by
// a definition transaction.
type ChainDefinition struct {
	Version            uint32
	Name               string
	Address            KeyID
	Premine            int64
	Convertible        int64
	LaunchFee          int64
	StartBlock         int32
	EndBlock           int32
	BillingPeriod      int32
	NotarizationReward int64
	Eras               []RewardEra
	Nodes              []NodeData
}

// ChainID returns the identifier derived from the definition's name.
func (d *ChainDefinition) ChainID() ChainID {
	return ChainIDFromName(d.Name)
}

// IsExpired reports whether the chain has a nonzero end block that lies
// below height.
func (d *ChainDefinition) IsExpired(height int32) bool {
	return d.EndBlock != 0 && d.EndBlock < height
}

// Validate checks the fields a chain definition must satisfy to be accepted.
func (d *ChainDefinition) Validate() error {
	switch {
	case d.Version == 0:
		return MakeError(ErrInvalidParameter, "chain definition version is zero", nil)
	case d.Name == "":
		return MakeError(ErrInvalidParameter, "chain name is empty", nil)
	case len(d.Name) > MaxNameLen:
		return MakeError(ErrInvalidParameter, "chain name is longer than 63 bytes", nil)
	case len(d.Eras) == 0 || len(d.Eras) > maxEras:
		return MakeError(ErrInvalidParameter, "chain definition must have 1 to 3 reward eras", nil)
	case len(d.Nodes) > MaxNodes:
		return MakeError(ErrInvalidParameter, "too many bootstrap nodes", nil)
	case d.EndBlock != 0 && d.EndBlock < d.StartBlock:
		return MakeError(ErrInvalidParameter, "end block precedes start block", nil)
	}
	return nil
}

// ValidateBilling checks the notarization billing parameters required of a
// newly defined chain.
func (d *ChainDefinition) ValidateBilling() error {
	if d.BillingPeriod < MinBillingPeriod {
		return MakeError(ErrInvalidParameter, "billing period is below the minimum of 960 blocks", nil)
	}
	if d.NotarizationReward/int64(d.BillingPeriod) < MinPerBlockNotarization {
		return MakeError(ErrInvalidParameter, "notarization reward per block is below the minimum", nil)
	}
	return nil
}

func (d *ChainDefinition) Serialize(w io.Writer) error {
	if err := writeUint32(w, d.Version); err != nil {
		return err
	}
	if err := wire.WriteVarString(w, pver, d.Name); err != nil {
		return err
	}
	if _, err := w.Write(d.Address[:]); err != nil {
		return err
	}
	for _, v := range []int64{d.Premine, d.Convertible, d.LaunchFee} {
		if err := writeInt64(w, v); err != nil {
			return err
		}
	}
	for _, v := range []int32{d.StartBlock, d.EndBlock, d.BillingPeriod} {
		if err := writeUint32(w, uint32(v)); err != nil {
			return err
		}
	}
	if err := writeInt64(w, d.NotarizationReward); err != nil {
		return err
	}

	if err := writeCount(w, len(d.Eras)); err != nil {
		return err
	}
	for _, era := range d.Eras {
		if err := writeInt64(w, era.Reward); err != nil {
			return err
		}
		if err := writeInt64(w, era.Decay); err != nil {
			return err
		}
		for _, v := range []int32{era.Halving, era.EraEnd, era.Options} {
			if err := writeUint32(w, uint32(v)); err != nil {
				return err
			}
		}
	}

	if err := writeCount(w, len(d.Nodes)); err != nil {
		return err
	}
	for i := range d.Nodes {
		if err := d.Nodes[i].encode(w); err != nil {
			return err
		}
	}
	return nil
}

func (d *ChainDefinition) Deserialize(r io.Reader) (err error) {
	if d.Version, err = readUint32(r); err != nil {
		return err
	}
	if d.Name, err = wire.ReadVarString(r, pver); err != nil {
		return err
	}
	if len(d.Name) > MaxNameLen {
		return MakeError(ErrInvalidParameter, "chain name is longer than 63 bytes", nil)
	}
	if _, err = io.ReadFull(r, d.Address[:]); err != nil {
		return err
	}
	for _, v := range []*int64{&d.Premine, &d.Convertible, &d.LaunchFee} {
		if *v, err = readInt64(r); err != nil {
			return err
		}
	}
	for _, v := range []*int32{&d.StartBlock, &d.EndBlock, &d.BillingPeriod} {
		var u uint32
		if u, err = readUint32(r); err != nil {
			return err
		}
		*v = int32(u)
	}
	if d.NotarizationReward, err = readInt64(r); err != nil {
		return err
	}

	n, err := readCount(r, maxEras, "era")
	if err != nil {
		return err
	}
	d.Eras = make([]RewardEra, n)
	for i := range d.Eras {
		era := &d.Eras[i]
		if era.Reward, err = readInt64(r); err != nil {
			return err
		}
		if era.Decay, err = readInt64(r); err != nil {
			return err
		}
		for _, v := range []*int32{&era.Halving, &era.EraEnd, &era.Options} {
			var u uint32
			if u, err = readUint32(r); err != nil {
				return err
			}
			*v = int32(u)
		}
	}

	if n, err = readCount(r, MaxNodes, "node"); err != nil {
		return err
	}
	d.Nodes = make([]NodeData, n)
	for i := range d.Nodes {
		if err = d.Nodes[i].decode(r); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the serialized definition.
func (d *ChainDefinition) Bytes() []byte {
	var buf bytes.Buffer
	_ = d.Serialize(&buf)
	return buf.Bytes()
}

// ChainDefinitionFromTx extracts and validates the chain definition committed
// by tx. It fails for any transaction that is not a chain definition.
func ChainDefinitionFromTx(tx *wire.MsgTx) (*ChainDefinition, error) {
	payload, ok := FindCommitment(tx, TagChainDefinition)
	if !ok {
		return nil, MakeError(ErrNotFound, "transaction has no chain definition commitment", nil)
	}

	def := new(ChainDefinition)
	if err := def.Deserialize(bytes.NewReader(payload)); err != nil {
		return nil, errors.Wrap(err, "can't decode chain definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
