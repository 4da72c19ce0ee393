// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package registry resolves PBaaS chain definitions from the unspent outputs
// of the chain definition contract address.
package registry

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

const DefaultCacheSize = 64

// Registry reads chain definitions. Every scan runs inside a single
// snapshot of the chain state.
type Registry struct {
	state chainstore.ChainState
	cache *lru.Cache
}

func New(state chainstore.ChainState, cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "can't create definition cache")
	}
	return &Registry{state: state, cache: cache}, nil
}

// LookupByName returns the earliest published definition named name.
func (r *Registry) LookupByName(name string) (*pbaas.ChainDefinition, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	var found *pbaas.ChainDefinition
	err := r.state.View(func(s chainstore.Snapshot) error {
		return scanDefinitions(s, func(def *pbaas.ChainDefinition) bool {
			if def.Name == name {
				found = def
				return false
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, pbaas.MakeError(pbaas.ErrNotFound, "chain "+name+" is not defined", nil)
	}
	return found, nil
}

// Resolve is LookupByName with the result cached by chain ID. Definitions
// never change once published.
func (r *Registry) Resolve(name string) (*pbaas.ChainDefinition, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if def, ok := r.cache.Get(pbaas.ChainIDFromName(name)); ok {
		return def.(*pbaas.ChainDefinition), nil
	}

	def, err := r.LookupByName(name)
	if err != nil {
		return nil, err
	}
	r.cache.Add(def.ChainID(), def)
	log.Debug().Str("chain", name).Stringer("id", def.ChainID()).Msg("chain definition cached")
	return def, nil
}

// ListAll returns every published definition. Unless includeExpired is set,
// definitions whose end block is below the current height are dropped.
func (r *Registry) ListAll(includeExpired bool) ([]*pbaas.ChainDefinition, error) {
	var defs []*pbaas.ChainDefinition
	err := r.state.View(func(s chainstore.Snapshot) error {
		height := s.BestHeight()
		return scanDefinitions(s, func(def *pbaas.ChainDefinition) bool {
			if includeExpired || !def.IsExpired(height) {
				defs = append(defs, def)
			}
			return true
		})
	})
	return defs, err
}

// ValidateName checks a chain name before any state is read.
func ValidateName(name string) error {
	if name == "" || len(name) > pbaas.MaxNameLen {
		return pbaas.MakeError(pbaas.ErrInvalidParameter,
			"chain name must be 1 to 63 bytes", nil)
	}
	return nil
}

// scanDefinitions calls fn with every valid definition held at the contract
// address, oldest first, until fn returns false.
func scanDefinitions(s chainstore.Snapshot, fn func(def *pbaas.ChainDefinition) bool) error {
	outputs, err := s.AddressUnspent(pbaas.DefinitionKeyID(), 1)
	if err != nil {
		return errors.Wrap(err, "can't read definition outputs")
	}

	for _, out := range outputs {
		tx, _, err := s.FetchTransaction(out.OutPoint.Hash)
		if err != nil {
			return pbaas.MakeError(pbaas.ErrTransactionUnavailable,
				"can't load chain definition "+out.OutPoint.Hash.String(), err)
		}
		def, err := pbaas.ChainDefinitionFromTx(tx)
		if err != nil {
			log.Debug().Err(err).Stringer("tx", out.OutPoint.Hash).Msg("skip output without chain definition")
			continue
		}
		if !fn(def) {
			return nil
		}
	}
	return nil
}
