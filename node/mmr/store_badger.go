/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package mmr

import (
	"encoding/binary"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/pbaasd/types/mmr"
)

var (
	sizeKey    = []byte{0x00}
	leafPrefix = byte(0x01)
)

func leafKey(index uint64) []byte {
	key := make([]byte, 9)
	key[0] = leafPrefix
	binary.BigEndian.PutUint64(key[1:], index)
	return key
}

// BadgerStore keeps leaves in a badger database.
type BadgerStore struct {
	db   *badger.DB
	size uint64
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = badgerLogger{log}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "can't open mmr database")
	}

	store := &BadgerStore{db: db}
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sizeKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		store.size = binary.BigEndian.Uint64(v)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "can't read mmr size")
	}

	log.Debug().Uint64("leaves", store.size).Str("path", path).Msg("mmr store opened")
	return store, nil
}

func (b *BadgerStore) Append(leaf mmr.Node) error {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], b.size+1)

	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(leafKey(b.size), leaf.Bytes()); err != nil {
			return err
		}
		return txn.Set(sizeKey, size[:])
	})
	if err != nil {
		return err
	}
	b.size++
	return nil
}

func (b *BadgerStore) Leaf(index uint64) (node mmr.Node, err error) {
	if index >= b.size {
		return node, ErrHeightOutOfRange
	}
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(leafKey(index))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		node, err = mmr.NodeFromBytes(v)
		return err
	})
	return node, err
}

func (b *BadgerStore) Len() uint64 { return b.size }

func (b *BadgerStore) Close() error { return b.db.Close() }

type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Error().Msgf(f, v...) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warn().Msgf(f, v...) }
func (b badgerLogger) Infof(f string, v ...interface{})    { b.l.Debug().Msgf(f, v...) }
func (b badgerLogger) Debugf(f string, v ...interface{})   { b.l.Trace().Msgf(f, v...) }
