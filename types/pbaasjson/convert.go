// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaasjson

import (
	"github.com/btcsuite/btcd/chaincfg"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

func address(k pbaas.KeyID, params *chaincfg.Params) string {
	if k == (pbaas.KeyID{}) {
		return ""
	}
	addr, err := k.Address(params)
	if err != nil {
		return k.String()
	}
	return addr.EncodeAddress()
}

func nodes(list []pbaas.NodeData, params *chaincfg.Params) []NodeData {
	res := make([]NodeData, len(list))
	for i, n := range list {
		res[i] = NodeData{NetworkAddress: n.NetworkAddress, PaymentAddress: address(n.PaymentAddress, params)}
	}
	return res
}

func NewChainDefinition(def *pbaas.ChainDefinition, params *chaincfg.Params) ChainDefinition {
	res := ChainDefinition{
		Version:            def.Version,
		Name:               def.Name,
		ChainID:            def.ChainID().String(),
		Address:            address(def.Address, params),
		Premine:            def.Premine,
		Convertible:        def.Convertible,
		LaunchFee:          def.LaunchFee,
		StartBlock:         def.StartBlock,
		EndBlock:           def.EndBlock,
		BillingPeriod:      def.BillingPeriod,
		NotarizationReward: def.NotarizationReward,
		Eras:               make([]RewardEra, len(def.Eras)),
		Nodes:              nodes(def.Nodes, params),
	}
	for i, era := range def.Eras {
		res.Eras[i] = RewardEra(era)
	}
	return res
}

// ToDefinition decodes the definechain argument. Addresses must belong to
// params.
func (c *ChainDefinition) ToDefinition(params *chaincfg.Params) (*pbaas.ChainDefinition, error) {
	def := &pbaas.ChainDefinition{
		Version:            c.Version,
		Name:               c.Name,
		Premine:            c.Premine,
		Convertible:        c.Convertible,
		LaunchFee:          c.LaunchFee,
		StartBlock:         c.StartBlock,
		EndBlock:           c.EndBlock,
		BillingPeriod:      c.BillingPeriod,
		NotarizationReward: c.NotarizationReward,
	}

	var err error
	if c.Address != "" {
		if def.Address, err = pbaas.KeyIDFromAddress(c.Address, params); err != nil {
			return nil, err
		}
	}
	for _, era := range c.Eras {
		def.Eras = append(def.Eras, pbaas.RewardEra(era))
	}
	for _, n := range c.Nodes {
		node := pbaas.NodeData{NetworkAddress: n.NetworkAddress}
		if n.PaymentAddress != "" {
			if node.PaymentAddress, err = pbaas.KeyIDFromAddress(n.PaymentAddress, params); err != nil {
				return nil, err
			}
		}
		def.Nodes = append(def.Nodes, node)
	}
	return def, nil
}

func NewNotarization(n *pbaas.Notarization, params *chaincfg.Params) Notarization {
	power := pbaas.ExpandCompactPower(n.CompactPower, 0)
	res := Notarization{
		Version:            n.Version,
		ChainID:            n.ChainID.String(),
		RewardPerBlock:     n.RewardPerBlock,
		NotarizationHeight: n.NotarizationHeight,
		MMRRoot:            n.MMRRoot.String(),
		CompactPower:       n.CompactPower.String(),
		Work:               power.Work.String(),
		Stake:              power.Stake.String(),
		CrossNotarization:  n.CrossNotarization.String(),
		CrossHeight:        n.CrossHeight,
		PrevNotarization:   n.PrevNotarization.String(),
		PrevHeight:         n.PrevHeight,
		OpRetProof:         make([]OpRetRef, len(n.OpRetProof)),
		Nodes:              nodes(n.Nodes, params),
	}
	for i, ref := range n.OpRetProof {
		res.OpRetProof[i] = OpRetRef{Type: ref.Type.String(), Hash: ref.Hash.String()}
	}
	return res
}

func NewNotarizationData(data *pbaas.NotarizationData, params *chaincfg.Params) NotarizationData {
	res := NotarizationData{
		Version:       data.Version,
		Class:         data.Class.String(),
		Notarizations: make([]NotarizationEntry, len(data.Vtx)),
		Forks:         data.Forks,
		LastConfirmed: data.LastConfirmed,
		BestChain:     data.BestChain,
		BestFork:      data.BestFork,
		PowerTie:      data.PowerTie,
	}
	for i, e := range data.Vtx {
		res.Notarizations[i] = NotarizationEntry{
			TxID:         e.TxID.String(),
			BlockHeight:  e.BlockHeight,
			Notarization: NewNotarization(e.Notarization, params),
		}
	}
	return res
}
