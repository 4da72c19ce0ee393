/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package mmr

import (
	"sync"

	"gitlab.com/jaxnet/pbaasd/types/mmr"
)

// Store keeps the leaves of a Tree in append order.
type Store interface {
	Append(leaf mmr.Node) error
	Leaf(index uint64) (mmr.Node, error)
	Len() uint64
	Close() error
}

type MemoryStore struct {
	mtx    sync.RWMutex
	leaves []mmr.Node
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(leaf mmr.Node) error {
	m.mtx.Lock()
	m.leaves = append(m.leaves, leaf)
	m.mtx.Unlock()
	return nil
}

func (m *MemoryStore) Leaf(index uint64) (mmr.Node, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if index >= uint64(len(m.leaves)) {
		return mmr.Node{}, ErrHeightOutOfRange
	}
	return m.leaves[index], nil
}

func (m *MemoryStore) Len() uint64 {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return uint64(len(m.leaves))
}

func (m *MemoryStore) Close() error { return nil }
