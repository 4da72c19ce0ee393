// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// ConditionOutputValue is the amount locked in every condition output.
const ConditionOutputValue = 10000

const (
	// Output positions of a chain definition transaction.
	DefinitionOutputIndex       = 0
	DefinitionNotarizationIndex = 1
	DefinitionFinalizationIndex = 2

	// Output positions of a notarization transaction.
	NotarizationOutputIndex       = 0
	NotarizationFinalizationIndex = 1
)

// NewChainDefinitionTx builds the unsigned transaction that publishes def
// together with the chain's base notarization. Inputs paying for the
// outputs are added by the caller.
func NewChainDefinitionTx(def *ChainDefinition, base *Notarization) (*wire.MsgTx, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	chainID := def.ChainID()
	if base.ChainID != chainID {
		return nil, MakeError(ErrInvalidParameter, "base notarization is for another chain", nil)
	}

	defScript, err := CommitmentScript(TagChainDefinition, def.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "can't build definition commitment")
	}
	ntzScript, err := CommitmentScript(TagNotarization, base.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "can't build notarization commitment")
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(ConditionOutputValue, PayToKeyIDScript(DefinitionKeyID())))
	tx.AddTxOut(wire.NewTxOut(ConditionOutputValue,
		PayToKeyIDScript(ConditionID(chainID, EvalAcceptedNotarization))))
	tx.AddTxOut(wire.NewTxOut(ConditionOutputValue, PayToKeyIDScript(FinalizationKeyID(chainID))))
	tx.AddTxOut(wire.NewTxOut(0, defScript))
	tx.AddTxOut(wire.NewTxOut(0, ntzScript))
	return tx, nil
}

// NewNotarizationTx builds the unsigned transaction carrying n as a
// notarization of the given class. The trailing output commits to n.
func NewNotarizationTx(n *Notarization, class EvalCode) (*wire.MsgTx, error) {
	if !class.IsNotarizationClass() {
		return nil, MakeError(ErrInvalidParameter, "not a notarization class: "+class.String(), nil)
	}
	if !n.IsValid() {
		return nil, MakeError(ErrInvalidParameter, "invalid notarization", nil)
	}

	script, err := CommitmentScript(TagNotarization, n.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "can't build notarization commitment")
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(ConditionOutputValue, PayToKeyIDScript(ConditionID(n.ChainID, class))))
	tx.AddTxOut(wire.NewTxOut(ConditionOutputValue, PayToKeyIDScript(FinalizationKeyID(n.ChainID))))
	tx.AddTxOut(wire.NewTxOut(0, script))
	return tx, nil
}

// IsChainDefinitionTx reports whether tx carries a valid chain definition.
func IsChainDefinitionTx(tx *wire.MsgTx) bool {
	_, err := ChainDefinitionFromTx(tx)
	return err == nil
}
