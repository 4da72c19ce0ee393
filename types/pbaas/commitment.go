// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// CommitmentTag marks what kind of object an OP_RETURN commitment carries.
type CommitmentTag [4]byte

var (
	TagChainDefinition = CommitmentTag{'P', 'B', 'C', 'D'}
	TagNotarization    = CommitmentTag{'P', 'B', 'N', 'T'}
	TagMergeMining     = CommitmentTag{'P', 'B', 'M', 'M'}
)

// CommitmentScript builds `OP_RETURN <tag> <payload...>`. Payloads that do not
// fit into a single push are split into pushes of equal size.
func CommitmentScript(tag CommitmentTag, payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, MakeError(ErrInvalidParameter, "commitment payload is too short", nil)
	}

	builder := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(tag[:])

	chunks := (len(payload) + txscript.MaxScriptElementSize - 1) / txscript.MaxScriptElementSize
	size := (len(payload) + chunks - 1) / chunks
	for start := 0; start < len(payload); start += size {
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		builder.AddData(payload[start:end])
	}
	return builder.Script()
}

// ParseCommitment returns the tag and payload of a commitment script.
func ParseCommitment(script []byte) (CommitmentTag, []byte, bool) {
	var tag CommitmentTag
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return tag, nil, false
	}
	pushes, err := txscript.PushedData(script)
	if err != nil || len(pushes) < 2 || len(pushes[0]) != len(tag) {
		return tag, nil, false
	}
	copy(tag[:], pushes[0])
	return tag, bytes.Join(pushes[1:], nil), true
}

// FindCommitment returns the payload of the last output of tx committing to
// an object with the given tag.
func FindCommitment(tx *wire.MsgTx, tag CommitmentTag) ([]byte, bool) {
	for i := len(tx.TxOut) - 1; i >= 0; i-- {
		t, payload, ok := ParseCommitment(tx.TxOut[i].PkScript)
		if ok && t == tag {
			return payload, true
		}
	}
	return nil, false
}

// StripCommitment returns a copy of tx without its trailing OP_RETURN output.
// The receiving chain rebuilds that output from the notarization it derives.
func StripCommitment(tx *wire.MsgTx) *wire.MsgTx {
	stripped := tx.Copy()
	n := len(stripped.TxOut)
	if n > 0 {
		script := stripped.TxOut[n-1].PkScript
		if len(script) > 0 && script[0] == txscript.OP_RETURN {
			stripped.TxOut = stripped.TxOut[:n-1]
		}
	}
	return stripped
}
