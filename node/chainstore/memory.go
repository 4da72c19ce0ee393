// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/node/mmr"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

var (
	ErrDuplicateBlock = errors.New("duplicate block")
	ErrOrphanBlock    = errors.New("block does not extend the best chain")
	ErrBadMerkleRoot  = errors.New("block merkle root does not match its transactions")
	ErrDuplicateTx    = errors.New("transaction already mined")
)

type txLocation struct {
	height int32
	index  int
}

type blockRecord struct {
	entry BlockEntry
	block *wire.MsgBlock
}

// Config configures a Memory chain state.
type Config struct {
	Params *chaincfg.Params

	// Tree receives one leaf per block. A tree on an empty memory store is
	// used when nil.
	Tree *mmr.Tree

	// Blocks persists connected blocks; they are replayed by New.
	Blocks *LevelStore
}

// Memory is a chain state held in memory. Writers (ConnectBlock) take the
// write lock; View holds the read lock for the duration of the callback.
type Memory struct {
	mtx    sync.RWMutex
	params *chaincfg.Params
	tree   *mmr.Tree
	blocks *LevelStore

	chain   []*blockRecord
	byHash  map[chainhash.Hash]int32
	txs     map[chainhash.Hash]txLocation
	outputs map[wire.OutPoint]pbaas.KeyID
	unspent map[pbaas.KeyID]map[wire.OutPoint]AddressOutput
	history map[pbaas.KeyID][]AddressOutput

	txUpdated uint64
}

// New creates the chain state and replays the persisted blocks.
func New(cfg Config) (*Memory, error) {
	if cfg.Params == nil {
		cfg.Params = &chaincfg.RegressionNetParams
	}
	if cfg.Tree == nil {
		cfg.Tree = mmr.NewTree(mmr.NewMemoryStore())
	}

	m := &Memory{
		params:  cfg.Params,
		tree:    cfg.Tree,
		byHash:  make(map[chainhash.Hash]int32),
		txs:     make(map[chainhash.Hash]txLocation),
		outputs: make(map[wire.OutPoint]pbaas.KeyID),
		unspent: make(map[pbaas.KeyID]map[wire.OutPoint]AddressOutput),
		history: make(map[pbaas.KeyID][]AddressOutput),
	}

	if cfg.Blocks != nil {
		err := cfg.Blocks.ForEachBlock(func(height int32, block *wire.MsgBlock) error {
			return m.connect(block)
		})
		if err != nil {
			return nil, errors.Wrap(err, "can't replay stored blocks")
		}
		m.blocks = cfg.Blocks
		log.Info().Int32("height", m.bestHeight()).Msg("chain state loaded")
	}
	return m, nil
}

// Params returns the network parameters of the chain.
func (m *Memory) Params() *chaincfg.Params { return m.params }

// View runs fn under the read lock.
func (m *Memory) View(fn func(s Snapshot) error) error {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return fn(snapshot{m})
}

// BestTip returns the hash and height of the tip.
func (m *Memory) BestTip() (chainhash.Hash, int32) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if len(m.chain) == 0 {
		return chainhash.Hash{}, -1
	}
	tip := m.chain[len(m.chain)-1]
	return tip.entry.Hash, tip.entry.Height
}

// TransactionsUpdated counts changes to the set of mined transactions.
func (m *Memory) TransactionsUpdated() uint64 {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.txUpdated
}

// Stats reports gauges of the chain state, keyed by metric name.
func (m *Memory) Stats() map[string]float64 {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return map[string]float64{
		"height":               float64(m.bestHeight()),
		"transactions":         float64(len(m.txs)),
		"transactions_updated": float64(m.txUpdated),
		"indexed_addresses":    float64(len(m.history)),
		"mmr_leaves":           float64(m.tree.Len()),
	}
}

// ConnectBlock appends block to the chain and indexes it.
func (m *Memory) ConnectBlock(block *wire.MsgBlock) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if err := m.checkBlock(block); err != nil {
		return err
	}
	height := int32(len(m.chain))
	if err := m.checkLeaf(height, block.BlockHash()); err != nil {
		return err
	}
	if m.blocks == nil {
		return m.connect(block)
	}

	if err := m.blocks.PutBlock(height, block); err != nil {
		return errors.Wrap(err, "can't persist block")
	}
	if err := m.connect(block); err != nil {
		if delErr := m.blocks.DeleteBlock(height); delErr != nil {
			log.Error().Err(delErr).Int32("height", height).Msg("can't drop block that failed to connect")
		}
		return err
	}
	return nil
}

// checkLeaf verifies that a leaf the tree already holds for height belongs
// to the block being connected.
func (m *Memory) checkLeaf(height int32, hash chainhash.Hash) error {
	if uint64(height) >= m.tree.Len() {
		return nil
	}
	leaf, err := m.tree.Leaf(uint64(height))
	if err != nil {
		return err
	}
	if leaf.Hash != hash {
		return fmt.Errorf("mmr leaf %d is %s, block is %s", height, leaf.Hash, hash)
	}
	return nil
}

func (m *Memory) checkBlock(block *wire.MsgBlock) error {
	hash := block.BlockHash()
	if _, ok := m.byHash[hash]; ok {
		return ErrDuplicateBlock
	}
	if len(m.chain) > 0 && block.Header.PrevBlock != m.chain[len(m.chain)-1].entry.Hash {
		return ErrOrphanBlock
	}
	if len(block.Transactions) == 0 {
		return ErrBadMerkleRoot
	}

	txs := make([]*btcutil.Tx, len(block.Transactions))
	for i, tx := range block.Transactions {
		txs[i] = btcutil.NewTx(tx)
		if _, ok := m.txs[tx.TxHash()]; ok {
			return ErrDuplicateTx
		}
	}
	store := blockchain.BuildMerkleTreeStore(txs, false)
	if *store[len(store)-1] != block.Header.MerkleRoot {
		return ErrBadMerkleRoot
	}
	return nil
}

func (m *Memory) connect(block *wire.MsgBlock) error {
	hash := block.BlockHash()
	height := int32(len(m.chain))
	work := blockchain.CalcWork(block.Header.Bits)

	if uint64(height) < m.tree.Len() {
		if err := m.checkLeaf(height, hash); err != nil {
			return err
		}
	} else if _, err := m.tree.Append(hash, work); err != nil {
		return err
	}

	m.chain = append(m.chain, &blockRecord{
		entry: BlockEntry{Hash: hash, Height: height, Header: block.Header, Work: work},
		block: block,
	})
	m.byHash[hash] = height

	for txIndex, tx := range block.Transactions {
		txid := tx.TxHash()
		m.txs[txid] = txLocation{height: height, index: txIndex}

		if !blockchain.IsCoinBaseTx(tx) {
			for _, in := range tx.TxIn {
				m.spend(in.PreviousOutPoint)
			}
		}

		for vout, out := range tx.TxOut {
			key, ok := m.extractKey(out.PkScript)
			if !ok {
				continue
			}
			entry := AddressOutput{
				OutPoint:  wire.OutPoint{Hash: txid, Index: uint32(vout)},
				Value:     out.Value,
				Height:    height,
				BlockHash: hash,
				TxIndex:   txIndex,
			}
			m.outputs[entry.OutPoint] = key
			m.history[key] = append(m.history[key], entry)
			if m.unspent[key] == nil {
				m.unspent[key] = make(map[wire.OutPoint]AddressOutput)
			}
			m.unspent[key][entry.OutPoint] = entry
		}
	}
	m.txUpdated++

	log.Debug().Int32("height", height).Stringer("hash", hash).
		Int("txs", len(block.Transactions)).Msg("block connected")
	return nil
}

func (m *Memory) spend(op wire.OutPoint) {
	key, ok := m.outputs[op]
	if !ok {
		return
	}
	delete(m.unspent[key], op)
}

// extractKey returns the key of P2PKH outputs; other scripts are not indexed.
func (m *Memory) extractKey(script []byte) (pbaas.KeyID, bool) {
	class, addrs, _, err := txscript.ExtractPkScriptAddrs(script, m.params)
	if err != nil || class != txscript.PubKeyHashTy || len(addrs) != 1 {
		return pbaas.KeyID{}, false
	}
	pkh, ok := addrs[0].(*btcutil.AddressPubKeyHash)
	if !ok {
		return pbaas.KeyID{}, false
	}
	return pbaas.KeyID(*pkh.Hash160()), true
}

func (m *Memory) bestHeight() int32 { return int32(len(m.chain)) - 1 }

// snapshot reads Memory without locking; View holds the lock.
type snapshot struct {
	m *Memory
}

func (s snapshot) BestHeight() int32 { return s.m.bestHeight() }

func (s snapshot) AddressUnspent(key pbaas.KeyID, minConf int32) ([]AddressOutput, error) {
	best := s.m.bestHeight()
	var res []AddressOutput
	for _, entry := range s.m.unspent[key] {
		if best-entry.Height+1 >= minConf {
			res = append(res, entry)
		}
	}
	sortOutputs(res)
	return res, nil
}

func (s snapshot) AddressIndex(key pbaas.KeyID, start, end int32) ([]AddressOutput, error) {
	if end < start {
		return nil, pbaas.MakeError(pbaas.ErrInvalidParameter, "end height precedes start height", nil)
	}
	history := s.m.history[key]
	from := sort.Search(len(history), func(i int) bool { return history[i].Height >= start })

	var res []AddressOutput
	for _, entry := range history[from:] {
		if entry.Height > end {
			break
		}
		res = append(res, entry)
	}
	return res, nil
}

func (s snapshot) FetchTransaction(txid chainhash.Hash) (*wire.MsgTx, chainhash.Hash, error) {
	loc, ok := s.m.txs[txid]
	if !ok {
		return nil, chainhash.Hash{}, pbaas.MakeError(pbaas.ErrNotFound, "no transaction "+txid.String(), nil)
	}
	rec := s.m.chain[loc.height]
	return rec.block.Transactions[loc.index], rec.entry.Hash, nil
}

func (s snapshot) BlockEntry(hash chainhash.Hash) (*BlockEntry, error) {
	height, ok := s.m.byHash[hash]
	if !ok {
		return nil, pbaas.MakeError(pbaas.ErrNotFound, "no block "+hash.String(), nil)
	}
	entry := s.m.chain[height].entry
	return &entry, nil
}

func (s snapshot) BlockEntryByHeight(height int32) (*BlockEntry, error) {
	if height < 0 || height > s.m.bestHeight() {
		return nil, pbaas.MakeError(pbaas.ErrNotFound, fmt.Sprintf("no block at height %d", height), nil)
	}
	entry := s.m.chain[height].entry
	return &entry, nil
}

func (s snapshot) FetchBlock(hash chainhash.Hash) (*wire.MsgBlock, error) {
	height, ok := s.m.byHash[hash]
	if !ok {
		return nil, pbaas.MakeError(pbaas.ErrNotFound, "no block "+hash.String(), nil)
	}
	return s.m.chain[height].block, nil
}

func (s snapshot) MountainRange(height int32) (MountainRange, error) {
	if height < 0 || height > s.m.bestHeight() {
		return nil, pbaas.MakeError(pbaas.ErrInvalidParameter, fmt.Sprintf("no mountain range at height %d", height), nil)
	}
	view, err := s.m.tree.View(height)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func sortOutputs(entries []AddressOutput) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Height != b.Height {
			return a.Height < b.Height
		}
		if a.TxIndex != b.TxIndex {
			return a.TxIndex < b.TxIndex
		}
		return a.OutPoint.Index < b.OutPoint.Index
	})
}
