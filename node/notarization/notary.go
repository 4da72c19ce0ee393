// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package notarization computes the notarization forks of PBaaS chains and
// builds the cross-chain proofs sent to them.
package notarization

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	mapset "github.com/deckarep/golang-set"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// Config configures a Notary.
type Config struct {
	State chainstore.ChainState
	Peers PeerSource
	Rand  Rand

	// ChainID is the chain this node runs; new notarizations describe it.
	ChainID pbaas.ChainID

	// MaxNodes caps the bootstrap hints added to a notarization.
	MaxNodes int

	// StrictPowerTie fails with ErrPowerTie instead of picking the lower
	// fork index when two forks have equal power.
	StrictPowerTie bool
}

// Notary answers notarization queries against the chain state.
type Notary struct {
	cfg Config
}

func New(cfg Config) *Notary {
	if cfg.Rand == nil {
		cfg.Rand = NewSecureRand()
	}
	if cfg.Peers == nil {
		cfg.Peers = StaticPeers(nil)
	}
	if cfg.MaxNodes <= 0 || cfg.MaxNodes > pbaas.MaxNodes {
		cfg.MaxNodes = pbaas.MaxNodes
	}
	return &Notary{cfg: cfg}
}

// NotarizationData returns the fork structure of the notarizations of
// chainID. A chain without notarizations yields ErrNotFound.
func (n *Notary) NotarizationData(chainID pbaas.ChainID, class pbaas.EvalCode) (*pbaas.NotarizationData, error) {
	if err := validateQuery(chainID, class); err != nil {
		return nil, err
	}

	var data *pbaas.NotarizationData
	err := n.cfg.State.View(func(s chainstore.Snapshot) (err error) {
		data, err = buildNotarizationData(s, chainID, class, n.cfg.StrictPowerTie)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// CrossNotarization is a matched notarization with the proof of it and the
// new notarization extending it, ready to be completed and broadcast.
type CrossNotarization struct {
	// CrossTxID is the other chain's notarization the match refers to.
	CrossTxID chainhash.Hash
	TxID      chainhash.Hash
	Tx        *wire.MsgTx

	ProofHeight  int32
	Notarization *pbaas.Notarization
	Bundle       *pbaas.ProofBundle
}

// CrossNotarization finds the latest notarization of chainID whose cross
// notarization is in known and proves it. Without known txids the first
// accepted notarization of an unconfirmed chain matches its definition.
// No match yields ErrNotFound.
func (n *Notary) CrossNotarization(chainID pbaas.ChainID, known []chainhash.Hash,
	class pbaas.EvalCode) (*CrossNotarization, error) {
	if err := validateQuery(chainID, class); err != nil {
		return nil, err
	}

	knownSet := mapset.NewThreadUnsafeSet()
	for _, txid := range known {
		knownSet.Add(txid)
	}
	peers := n.cfg.Peers.ConnectedPeers()

	var res *CrossNotarization
	err := n.cfg.State.View(func(s chainstore.Snapshot) error {
		data, err := buildNotarizationData(s, chainID, class, n.cfg.StrictPowerTie)
		if err != nil {
			return err
		}

		match := findMatch(data, knownSet, class)
		if match < 0 {
			return pbaas.MakeError(pbaas.ErrNotFound, "no notarization matches the known cross notarizations", nil)
		}
		res, err = n.buildCrossNotarization(s, chainID, &data.Vtx[match], peers)
		return err
	})
	if err != nil {
		outcome := "error"
		if pbaas.IsErrorCode(err, pbaas.ErrNotFound) {
			outcome = "not_found"
		}
		crossProofs.WithLabelValues(outcome).Inc()
		return nil, err
	}

	crossProofs.WithLabelValues("ok").Inc()
	return res, nil
}

func findMatch(data *pbaas.NotarizationData, known mapset.Set, class pbaas.EvalCode) int {
	if known.Cardinality() == 0 {
		if class == pbaas.EvalAcceptedNotarization && !data.IsConfirmed() && len(data.Forks) > 0 {
			return 0
		}
		return -1
	}

	for i := len(data.Vtx) - 1; i >= 0; i-- {
		cross := data.Vtx[i].Notarization.CrossNotarization
		if cross != (chainhash.Hash{}) && known.Contains(cross) {
			return i
		}
	}
	return -1
}

func validateQuery(chainID pbaas.ChainID, class pbaas.EvalCode) error {
	if chainID.IsZero() {
		return pbaas.MakeError(pbaas.ErrInvalidParameter, "chain id is zero", nil)
	}
	if !class.IsNotarizationClass() {
		return pbaas.MakeError(pbaas.ErrInvalidParameter, "not a notarization class: "+class.String(), nil)
	}
	return nil
}
