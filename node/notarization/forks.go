// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notarization

import (
	"bytes"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

const notarizationDataVersion = 1

type candidate struct {
	pbaas.NotarizationEntry
	txIndex      int
	isDefinition bool
}

func (c *candidate) parent() chainhash.Hash {
	return c.Notarization.PrevNotarization
}

type forkPos struct {
	fork int
	pos  int
}

// buildNotarizationData computes the forks of the unspent notarizations of
// chainID from a single snapshot.
func buildNotarizationData(s chainstore.Snapshot, chainID pbaas.ChainID, class pbaas.EvalCode,
	strictTies bool) (*pbaas.NotarizationData, error) {
	start := time.Now()
	defer func() { forkBuildSeconds.Observe(time.Since(start).Seconds()) }()

	finalKey := pbaas.FinalizationKeyID(chainID)
	outputs, err := s.AddressUnspent(finalKey, 1)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, pbaas.MakeError(pbaas.ErrNotFound, "no notarizations for chain "+chainID.String(), nil)
	}

	cands, err := loadCandidates(s, chainID, outputs)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, pbaas.MakeError(pbaas.ErrNotFound, "no valid notarizations for chain "+chainID.String(), nil)
	}
	cands = canonicalOrder(cands)

	data := &pbaas.NotarizationData{
		Version:       notarizationDataVersion,
		Class:         class,
		LastConfirmed: -1,
	}

	hasDefinition := false
	for i := range cands {
		hasDefinition = hasDefinition || cands[i].isDefinition
	}
	if !hasDefinition {
		root, err := resolveRoot(s, finalKey, cands[0].parent())
		if err != nil {
			return nil, err
		}
		data.Vtx = append(data.Vtx, *root)
		data.LastConfirmed = 0
	}
	for i := range cands {
		data.Vtx = append(data.Vtx, cands[i].NotarizationEntry)
	}

	data.Forks = buildForks(data.Vtx)
	if err = selectBest(data, strictTies); err != nil {
		return nil, err
	}
	return data, nil
}

func loadCandidates(s chainstore.Snapshot, chainID pbaas.ChainID,
	outputs []chainstore.AddressOutput) ([]candidate, error) {
	seen := make(map[chainhash.Hash]struct{}, len(outputs))
	cands := make([]candidate, 0, len(outputs))

	for _, out := range outputs {
		txid := out.OutPoint.Hash
		if _, ok := seen[txid]; ok {
			continue
		}
		seen[txid] = struct{}{}

		tx, blockHash, err := s.FetchTransaction(txid)
		if err != nil {
			return nil, pbaas.MakeError(pbaas.ErrTransactionUnavailable,
				"can't load notarization "+txid.String(), err)
		}
		block, err := s.BlockEntry(blockHash)
		if err != nil {
			return nil, pbaas.MakeError(pbaas.ErrTransactionUnavailable,
				"can't load block of notarization "+txid.String(), err)
		}

		ntz, err := pbaas.NotarizationFromTx(tx)
		if err != nil || ntz.ChainID != chainID {
			log.Debug().Err(err).Stringer("tx", txid).Msg("skip finalization output without notarization")
			continue
		}

		isDefinition := false
		if def, err := pbaas.ChainDefinitionFromTx(tx); err == nil && def.ChainID() == chainID {
			isDefinition = true
		}

		cands = append(cands, candidate{
			NotarizationEntry: pbaas.NotarizationEntry{
				TxID:         txid,
				BlockHeight:  block.Height,
				Notarization: ntz,
			},
			txIndex:      out.TxIndex,
			isDefinition: isDefinition,
		})
	}
	return cands, nil
}

// canonicalOrder sorts by block height and position in block. Within one
// height a parent always precedes its children, whatever the input order.
func canonicalOrder(cands []candidate) []candidate {
	sort.Slice(cands, func(i, j int) bool {
		a, b := &cands[i], &cands[j]
		if a.BlockHeight != b.BlockHeight {
			return a.BlockHeight < b.BlockHeight
		}
		if a.txIndex != b.txIndex {
			return a.txIndex < b.txIndex
		}
		return bytes.Compare(a.TxID[:], b.TxID[:]) < 0
	})

	ordered := make([]candidate, 0, len(cands))
	for start := 0; start < len(cands); {
		end := start
		for end < len(cands) && cands[end].BlockHeight == cands[start].BlockHeight {
			end++
		}
		ordered = append(ordered, parentsFirst(cands[start:end])...)
		start = end
	}
	return ordered
}

func parentsFirst(group []candidate) []candidate {
	if len(group) < 2 {
		return group
	}

	inGroup := make(map[chainhash.Hash]bool, len(group))
	for i := range group {
		inGroup[group[i].TxID] = true
	}

	done := make(map[chainhash.Hash]bool, len(group))
	out := make([]candidate, 0, len(group))
	for len(out) < len(group) {
		progressed := false
		for i := range group {
			c := &group[i]
			if done[c.TxID] {
				continue
			}
			if p := c.parent(); inGroup[p] && !done[p] {
				continue
			}
			out = append(out, *c)
			done[c.TxID] = true
			progressed = true
		}
		if !progressed {
			// unreachable for hash-linked records; keep the sorted order
			for i := range group {
				if !done[group[i].TxID] {
					out = append(out, group[i])
				}
			}
			break
		}
	}
	return out
}

// resolveRoot loads the confirmed notarization the earliest unspent one
// extends. It must have a finalization output in its own block.
func resolveRoot(s chainstore.Snapshot, finalKey pbaas.KeyID, rootID chainhash.Hash) (*pbaas.NotarizationEntry, error) {
	noRoot := func(reason string, err error) error {
		return pbaas.MakeError(pbaas.ErrNoRoot, "confirmed root "+rootID.String()+" "+reason, err)
	}

	tx, blockHash, err := s.FetchTransaction(rootID)
	if err != nil {
		return nil, noRoot("is not available", err)
	}
	block, err := s.BlockEntry(blockHash)
	if err != nil {
		return nil, noRoot("has no block", err)
	}

	entries, err := s.AddressIndex(finalKey, block.Height, block.Height)
	if err != nil {
		return nil, noRoot("can't be looked up in the address index", err)
	}
	found := false
	for _, e := range entries {
		if e.OutPoint.Hash == rootID {
			found = true
			break
		}
	}
	if !found {
		return nil, noRoot("has no finalization output", nil)
	}

	ntz, err := pbaas.NotarizationFromTx(tx)
	if err != nil {
		return nil, noRoot("is not a notarization", err)
	}
	return &pbaas.NotarizationEntry{TxID: rootID, BlockHeight: block.Height, Notarization: ntz}, nil
}

// buildForks partitions vtx into forks. An entry extending the tip of a fork
// is appended to it; an entry extending an inner element starts a new fork
// holding a copy of the prefix up to and including its parent; an entry
// with an unknown parent starts a fork of its own.
func buildForks(vtx []pbaas.NotarizationEntry) [][]int {
	var forks [][]int
	where := make(map[chainhash.Hash]forkPos, len(vtx))

	for i := range vtx {
		parent, ok := where[vtx[i].Notarization.PrevNotarization]
		switch {
		case !ok:
			forks = append(forks, []int{i})
			where[vtx[i].TxID] = forkPos{fork: len(forks) - 1, pos: 0}

		case parent.pos == len(forks[parent.fork])-1:
			forks[parent.fork] = append(forks[parent.fork], i)
			where[vtx[i].TxID] = forkPos{fork: parent.fork, pos: parent.pos + 1}

		default:
			fork := make([]int, parent.pos+2)
			copy(fork, forks[parent.fork][:parent.pos+1])
			fork[parent.pos+1] = i
			forks = append(forks, fork)
			where[vtx[i].TxID] = forkPos{fork: len(forks) - 1, pos: parent.pos + 1}
		}
	}
	return forks
}

func selectBest(data *pbaas.NotarizationData, strictTies bool) error {
	best := 0
	bestPower := data.Tip(0).Notarization.Power(0)
	for i := 1; i < len(data.Forks); i++ {
		power := data.Tip(i).Notarization.Power(i)
		if pbaas.ComparePower(power, bestPower) > 0 {
			best, bestPower = i, power
		}
	}

	for i := range data.Forks {
		if i != best && pbaas.SamePower(data.Tip(i).Notarization.Power(i), bestPower) {
			data.PowerTie = true
			log.Warn().Int("best_fork", best).Int("fork", i).
				Str("power", bestPower.Magnitude().String()).
				Msg("notarization forks have equal power")
			if strictTies {
				return pbaas.MakeError(pbaas.ErrPowerTie, "notarization forks have equal power", nil)
			}
			break
		}
	}

	data.BestFork = best
	data.BestChain = data.Tip(best).Notarization.NotarizationHeight
	return nil
}
