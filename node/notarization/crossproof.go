// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notarization

import (
	"fmt"

	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// buildCrossNotarization proves the matched notarization against the MMR at
// the current tip and drafts the notarization that extends it. The bundle
// holds, in order: the tip header, the proof of the tip, the matched
// transaction without its commitment output and the proof of that
// transaction.
func (n *Notary) buildCrossNotarization(s chainstore.Snapshot, chainID pbaas.ChainID,
	match *pbaas.NotarizationEntry, peers []PeerInfo) (*CrossNotarization, error) {
	proofHeight := s.BestHeight()
	view, err := s.MountainRange(proofHeight)
	if err != nil {
		return nil, errors.Wrap(err, "can't open mountain range")
	}
	root, err := view.Root()
	if err != nil {
		return nil, errors.Wrap(err, "can't compute mountain range root")
	}

	tip, err := s.BlockEntryByHeight(proofHeight)
	if err != nil {
		return nil, errors.Wrap(err, "can't load tip")
	}
	tipProof, err := view.Proof(proofHeight)
	if err != nil {
		return nil, errors.Wrap(err, "can't prove tip")
	}

	tx, blockHash, err := s.FetchTransaction(match.TxID)
	if err != nil {
		return nil, pbaas.MakeError(pbaas.ErrTransactionUnavailable,
			"can't load notarization "+match.TxID.String(), err)
	}
	block, err := s.BlockEntry(blockHash)
	if err != nil {
		return nil, pbaas.MakeError(pbaas.ErrTransactionUnavailable,
			"can't load block of notarization "+match.TxID.String(), err)
	}

	txIndex, err := locateFinalization(s, chainID, match, block.Height)
	if err != nil {
		return nil, err
	}
	msgBlock, err := s.FetchBlock(blockHash)
	if err != nil {
		return nil, pbaas.MakeError(pbaas.ErrTransactionUnavailable, "can't load block "+blockHash.String(), err)
	}
	if txIndex >= len(msgBlock.Transactions) || msgBlock.Transactions[txIndex].TxHash() != match.TxID {
		return nil, pbaas.MakeError(pbaas.ErrIndexCorruption,
			fmt.Sprintf("address index puts %s at position %d of block %s", match.TxID, txIndex, blockHash), nil)
	}
	branch, err := pbaas.NewMerkleBranch(msgBlock.Transactions, txIndex)
	if err != nil {
		return nil, err
	}
	txProof, err := view.Proof(block.Height)
	if err != nil {
		return nil, errors.Wrap(err, "can't prove notarization block")
	}

	stripped := pbaas.StripCommitment(tx)

	bundle := new(pbaas.ProofBundle)
	bundle.Add(&pbaas.HeaderObject{Header: tip.Header}, tip.Hash)
	bundle.Add(&pbaas.ProofObject{Header: tip.Header, MMR: *tipProof}, tip.Hash)
	bundle.Add(&pbaas.TransactionObject{Tx: stripped}, stripped.TxHash())
	bundle.Add(&pbaas.ProofObject{TxBranch: branch, Header: block.Header, MMR: *txProof}, match.TxID)

	if pbaas.Saturates(root.Weight) {
		log.Warn().Stringer("chain", chainID).Int32("proof_height", proofHeight).
			Str("work", root.Weight.String()).Msg("chain work exceeds compact power, saturated")
	}

	ntz := &pbaas.Notarization{
		Version:            pbaas.NotarizationVersion,
		ChainID:            n.cfg.ChainID,
		RewardPerBlock:     match.Notarization.RewardPerBlock,
		NotarizationHeight: proofHeight,
		MMRRoot:            root.Hash,
		CompactPower:       pbaas.NewCompactPower(root.Weight, nil),
		PrevNotarization:   match.TxID,
		PrevHeight:         block.Height,
		OpRetProof:         bundle.OpRetProof,
		Nodes:              SelectNodes(peers, n.cfg.MaxNodes, n.cfg.Rand),
	}

	log.Debug().Stringer("chain", chainID).Stringer("match", match.TxID).
		Int32("proof_height", proofHeight).Stringer("mmr_root", root.Hash).
		Msg("cross notarization built")

	return &CrossNotarization{
		CrossTxID:    match.Notarization.CrossNotarization,
		TxID:         match.TxID,
		Tx:           tx,
		ProofHeight:  proofHeight,
		Notarization: ntz,
		Bundle:       bundle,
	}, nil
}

// locateFinalization finds the position of the matched transaction in its
// block through the finalization address index. Exactly one entry must match.
func locateFinalization(s chainstore.Snapshot, chainID pbaas.ChainID,
	match *pbaas.NotarizationEntry, height int32) (int, error) {
	entries, err := s.AddressIndex(pbaas.FinalizationKeyID(chainID), height, height)
	if err != nil {
		return 0, errors.Wrap(err, "can't read finalization index")
	}

	txIndex, hits := -1, 0
	for _, e := range entries {
		if e.OutPoint.Hash == match.TxID {
			txIndex = e.TxIndex
			hits++
		}
	}

	switch {
	case hits == 0:
		return 0, pbaas.MakeError(pbaas.ErrIndexCorruption,
			fmt.Sprintf("notarization %s not found in the address index at height %d", match.TxID, height), nil)
	case hits > 1:
		return 0, pbaas.MakeError(pbaas.ErrAmbiguousIndexMatch,
			fmt.Sprintf("notarization %s has %d finalization entries at height %d", match.TxID, hits, height), nil)
	}
	return txIndex, nil
}
