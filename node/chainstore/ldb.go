// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/goleveldb/leveldb"
	ldberrors "github.com/btcsuite/goleveldb/leveldb/errors"
	"github.com/btcsuite/goleveldb/leveldb/util"
	"github.com/pkg/errors"
)

var blockPrefix = []byte("blk")

func blockKey(height int32) []byte {
	key := make([]byte, len(blockPrefix)+4)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint32(key[len(blockPrefix):], uint32(height))
	return key
}

// LevelStore keeps serialized blocks by height in leveldb.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens or creates the block database at path, recovering it
// when leveldb reports corruption.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
		log.Warn().Err(err).Str("path", path).Msg("block database corruption detected")
		db, err = leveldb.RecoverFile(path, nil)
		if err == nil {
			log.Warn().Str("path", path).Msg("block database recovered")
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "can't open block database")
	}
	return &LevelStore{db: db}, nil
}

func (s *LevelStore) PutBlock(height int32, block *wire.MsgBlock) error {
	var buf bytes.Buffer
	buf.Grow(block.SerializeSize())
	if err := block.Serialize(&buf); err != nil {
		return err
	}
	return s.db.Put(blockKey(height), buf.Bytes(), nil)
}

// DeleteBlock removes the block stored at height.
func (s *LevelStore) DeleteBlock(height int32) error {
	return s.db.Delete(blockKey(height), nil)
}

// ForEachBlock calls fn for every stored block in height order.
func (s *LevelStore) ForEachBlock(fn func(height int32, block *wire.MsgBlock) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer iter.Release()

	expected := int32(0)
	for iter.Next() {
		height := int32(binary.BigEndian.Uint32(iter.Key()[len(blockPrefix):]))
		if height != expected {
			return errors.Errorf("block %d is missing from the database", expected)
		}

		block := new(wire.MsgBlock)
		if err := block.Deserialize(bytes.NewReader(iter.Value())); err != nil {
			return errors.Wrapf(err, "can't decode block %d", height)
		}
		if err := fn(height, block); err != nil {
			return err
		}
		expected++
	}
	return iter.Error()
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}
