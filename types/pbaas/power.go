// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"encoding/hex"
	"math/big"
)

// CompactPower packs accumulated stake (high 128 bits) and accumulated work
// (low 128 bits) into 32 big-endian bytes.
type CompactPower [32]byte

func (c CompactPower) String() string { return hex.EncodeToString(c[:]) }

// ChainPower is the expanded form of CompactPower together with the index of
// the fork whose tip carries it.
type ChainPower struct {
	Work      *big.Int
	Stake     *big.Int
	ForkIndex int
}

// MaxCompactValue is the largest work or stake a CompactPower half holds.
var MaxCompactValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// NewCompactPower packs work and stake. Values wider than 128 bits saturate
// at MaxCompactValue, so a packed power never orders below a smaller one.
func NewCompactPower(work, stake *big.Int) CompactPower {
	var c CompactPower
	putUint128(c[:16], stake)
	putUint128(c[16:], work)
	return c
}

// Saturates reports whether v does not fit into a CompactPower half.
func Saturates(v *big.Int) bool {
	return v != nil && v.Cmp(MaxCompactValue) > 0
}

func putUint128(dst []byte, v *big.Int) {
	if v == nil || v.Sign() <= 0 {
		return
	}
	if Saturates(v) {
		for i := range dst {
			dst[i] = 0xff
		}
		return
	}
	b := v.Bytes()
	copy(dst[16-len(b):], b)
}

// ExpandCompactPower unpacks c and tags it with forkIndex.
func ExpandCompactPower(c CompactPower, forkIndex int) ChainPower {
	return ChainPower{
		Work:      new(big.Int).SetBytes(c[16:]),
		Stake:     new(big.Int).SetBytes(c[:16]),
		ForkIndex: forkIndex,
	}
}

// Compact packs the power back, dropping the fork index.
func (p ChainPower) Compact() CompactPower {
	return NewCompactPower(p.Work, p.Stake)
}

// Magnitude is the comparable size of the power: work plus stake.
func (p ChainPower) Magnitude() *big.Int {
	m := new(big.Int)
	if p.Work != nil {
		m.Add(m, p.Work)
	}
	if p.Stake != nil {
		m.Add(m, p.Stake)
	}
	return m
}

// ComparePower orders a and b by magnitude. For equal magnitudes the power of
// the lower fork index is the greater one, so selecting the maximum is
// deterministic. It returns -1, 0 or +1 like big.Int.Cmp; 0 only when both
// the magnitude and the fork index are equal.
func ComparePower(a, b ChainPower) int {
	if c := a.Magnitude().Cmp(b.Magnitude()); c != 0 {
		return c
	}
	switch {
	case a.ForkIndex < b.ForkIndex:
		return 1
	case a.ForkIndex > b.ForkIndex:
		return -1
	}
	return 0
}

// SamePower reports whether a and b have equal magnitude regardless of fork
// index.
func SamePower(a, b ChainPower) bool {
	return a.Magnitude().Cmp(b.Magnitude()) == 0
}
