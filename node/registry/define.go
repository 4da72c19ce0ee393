// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// Definition is an unsigned chain definition transaction and the objects it
// publishes.
type Definition struct {
	Tx         *wire.MsgTx
	Chain      *pbaas.ChainDefinition
	Base       *pbaas.Notarization
	BaseHeight int32
}

// DefineChain builds the transaction publishing def. The base notarization
// commits to the local genesis block: the MMR root over block 0 and the
// genesis work. A zero start block becomes the current height plus
// DefaultStartOffset. Funding and signing are left to the caller.
func (r *Registry) DefineChain(def *pbaas.ChainDefinition) (*Definition, error) {
	if def.Version == 0 {
		def.Version = pbaas.ChainDefinitionVersion
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := def.ValidateBilling(); err != nil {
		return nil, err
	}

	var res *Definition
	err := r.state.View(func(s chainstore.Snapshot) error {
		taken := false
		err := scanDefinitions(s, func(known *pbaas.ChainDefinition) bool {
			taken = known.Name == def.Name
			return !taken
		})
		if err != nil {
			return err
		}
		if taken {
			return pbaas.MakeError(pbaas.ErrInvalidParameter, "chain "+def.Name+" is already defined", nil)
		}

		height := s.BestHeight()
		if def.StartBlock == 0 {
			def.StartBlock = height + pbaas.DefaultStartOffset
		}

		genesis, err := s.BlockEntryByHeight(0)
		if err != nil {
			return errors.Wrap(err, "can't load genesis block")
		}
		view, err := s.MountainRange(0)
		if err != nil {
			return errors.Wrap(err, "can't open mountain range")
		}
		root, err := view.Root()
		if err != nil {
			return errors.Wrap(err, "can't compute genesis mountain range root")
		}

		base := &pbaas.Notarization{
			Version:        pbaas.NotarizationVersion,
			ChainID:        def.ChainID(),
			RewardPerBlock: def.NotarizationReward,
			MMRRoot:        root.Hash,
			CompactPower:   pbaas.NewCompactPower(genesis.Work, nil),
			Nodes:          def.Nodes,
		}
		tx, err := pbaas.NewChainDefinitionTx(def, base)
		if err != nil {
			return err
		}

		res = &Definition{Tx: tx, Chain: def, Base: base, BaseHeight: height}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("chain", def.Name).Stringer("id", def.ChainID()).
		Stringer("tx", res.Tx.TxHash()).Msg("chain definition built")
	return res, nil
}
