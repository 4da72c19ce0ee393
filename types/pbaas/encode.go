// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// pver is passed to the wire var-length helpers; the encoding of
	// pbaas objects does not depend on the protocol version.
	pver = 0

	maxVarBytes = 1 << 20
)

var le = binary.LittleEndian

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	le.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return le.Uint32(b[:]), nil
}

func writeInt64(w io.Writer, v int64) error {
	var b [8]byte
	le.PutUint64(b[:], uint64(v))
	_, err := w.Write(b[:])
	return err
}

func readInt64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(le.Uint64(b[:])), nil
}

func writeHash(w io.Writer, h *chainhash.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader, h *chainhash.Hash) error {
	_, err := io.ReadFull(r, h[:])
	return err
}

func writeCount(w io.Writer, n int) error {
	return wire.WriteVarInt(w, pver, uint64(n))
}

func readCount(r io.Reader, max int, field string) (int, error) {
	n, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return 0, err
	}
	if n > uint64(max) {
		return 0, MakeError(ErrInvalidParameter, field+" count exceeds limit", nil)
	}
	return int(n), nil
}
