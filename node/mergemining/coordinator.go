// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mergemining keeps the blocks of other chains mined together with
// the local chain and submits them once the shared proof of work meets
// their targets.
package mergemining

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/facebookgo/clock"
	lru "github.com/hashicorp/golang-lru"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCapacity   = 8
	DefaultStaleAfter = 60000 * time.Second
	DefaultWorkers    = 2
	DefaultQueueSize  = 32

	// commitmentCacheSize bounds the candidate sets remembered for the
	// templates handed out to miners.
	commitmentCacheSize = 64
)

// ErrBlocksFull is returned by Admit when the table is full and the
// candidate does not beat the lowest ROI held.
var ErrBlocksFull = errors.New("blocksfull")

// Submitter delivers a merged block and the proof of work found for it to
// the RPC server of its chain.
type Submitter interface {
	Submit(ctx context.Context, endpoint Endpoint, block *wire.MsgBlock, proof *pbaas.MergeMiningProof) error
}

type Config struct {
	Capacity   int
	StaleAfter time.Duration
	Workers    int
	QueueSize  int

	Submitter Submitter
	Clock     clock.Clock
}

type submission struct {
	chainID  pbaas.ChainID
	name     string
	endpoint Endpoint
	block    *wire.MsgBlock
	proof    *pbaas.MergeMiningProof
}

// commitment is a candidate set committed by a local template, in the order
// of the committed header hashes.
type commitment struct {
	candidates []*Candidate
	headers    []chainhash.Hash
}

// Coordinator holds at most Capacity candidates, one per chain.
type Coordinator struct {
	cfg Config

	mtx        sync.Mutex
	candidates map[pbaas.ChainID]*Candidate
	version    uint64

	commitments *lru.Cache
	queue       chan submission
}

func New(cfg Config) *Coordinator {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	// lru.New fails only for a non-positive size.
	commitments, _ := lru.New(commitmentCacheSize)
	return &Coordinator{
		cfg:         cfg,
		candidates:  make(map[pbaas.ChainID]*Candidate, cfg.Capacity),
		commitments: commitments,
		queue:       make(chan submission, cfg.QueueSize),
	}
}

// Admit adds c after dropping stale candidates. A candidate of a chain
// already held replaces it. When the table is full c must have a strictly
// greater ROI than the lowest held, which it then evicts; otherwise
// ErrBlocksFull is returned and the table is left as it was.
func (co *Coordinator) Admit(c *Candidate) error {
	now := co.cfg.Clock.Now()

	co.mtx.Lock()
	defer co.mtx.Unlock()
	co.pruneLocked(now)

	c.Added = now
	if prev, ok := co.candidates[c.ChainID]; ok {
		co.candidates[c.ChainID] = c
		co.version++
		candidateEvents.WithLabelValues("replaced").Inc()
		candidateCount.Set(float64(len(co.candidates)))
		log.Info().Str("chain", c.Name).Str("prev_roi", prev.ROI.String()).
			Str("roi", c.ROI.String()).Msg("merge-mine candidate replaced")
		return nil
	}

	if len(co.candidates) >= co.cfg.Capacity {
		lowest := co.lowestLocked()
		if c.ROI.Cmp(lowest.ROI) <= 0 {
			candidateEvents.WithLabelValues("rejected").Inc()
			log.Debug().Str("chain", c.Name).Str("roi", c.ROI.String()).
				Str("lowest_roi", lowest.ROI.String()).Msg("merge-mine candidate rejected")
			return ErrBlocksFull
		}

		delete(co.candidates, lowest.ChainID)
		candidateEvents.WithLabelValues("evicted").Inc()
		log.Info().Str("chain", lowest.Name).Str("by", c.Name).Msg("merge-mine candidate evicted")
	}

	co.candidates[c.ChainID] = c
	co.version++
	candidateEvents.WithLabelValues("admitted").Inc()
	candidateCount.Set(float64(len(co.candidates)))
	log.Info().Str("chain", c.Name).Str("endpoint", c.Endpoint.Address()).
		Int("held", len(co.candidates)).Msg("merge-mine candidate admitted")
	return nil
}

// lowestLocked returns the candidate with the lowest ROI, the oldest one
// among equals.
func (co *Coordinator) lowestLocked() *Candidate {
	var lowest *Candidate
	for _, c := range co.candidates {
		if lowest == nil {
			lowest = c
			continue
		}
		switch cmp := c.ROI.Cmp(lowest.ROI); {
		case cmp < 0:
			lowest = c
		case cmp == 0 && (c.Added.Before(lowest.Added) ||
			c.Added.Equal(lowest.Added) && bytes.Compare(c.ChainID[:], lowest.ChainID[:]) < 0):
			lowest = c
		}
	}
	return lowest
}

// Prune drops candidates older than StaleAfter and reports how many went.
func (co *Coordinator) Prune() int {
	now := co.cfg.Clock.Now()

	co.mtx.Lock()
	defer co.mtx.Unlock()
	return co.pruneLocked(now)
}

func (co *Coordinator) pruneLocked(now time.Time) int {
	oldest := now.Add(-co.cfg.StaleAfter)

	var pruned int
	for id, c := range co.candidates {
		if c.Added.Before(oldest) {
			delete(co.candidates, id)
			pruned++
			log.Debug().Str("chain", c.Name).Time("added", c.Added).Msg("stale merge-mine candidate pruned")
		}
	}
	if pruned > 0 {
		co.version++
		candidateEvents.WithLabelValues("pruned").Add(float64(pruned))
		candidateCount.Set(float64(len(co.candidates)))
	}
	return pruned
}

// Candidates returns the held candidates, highest ROI first.
func (co *Coordinator) Candidates() []*Candidate {
	co.mtx.Lock()
	list := make([]*Candidate, 0, len(co.candidates))
	for _, c := range co.candidates {
		list = append(list, c)
	}
	co.mtx.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if cmp := list[i].ROI.Cmp(list[j].ROI); cmp != 0 {
			return cmp > 0
		}
		return bytes.Compare(list[i].ChainID[:], list[j].ChainID[:]) < 0
	})
	return list
}

// Version changes whenever the set of held candidates does.
func (co *Coordinator) Version() uint64 {
	co.mtx.Lock()
	defer co.mtx.Unlock()
	return co.version
}

// MergeMiningRoot commits the held candidates to a new local template. It
// returns the merkle root of their header hashes, highest ROI first, and
// remembers the set so that ProcessSolution can prove each member.
func (co *Coordinator) MergeMiningRoot() (chainhash.Hash, bool) {
	list := co.Candidates()
	if len(list) == 0 {
		return chainhash.Hash{}, false
	}

	committed := &commitment{candidates: list, headers: make([]chainhash.Hash, len(list))}
	for i, c := range list {
		committed.headers[i] = c.Block.BlockHash()
	}
	root := pbaas.HashMerkleRoot(committed.headers)
	co.commitments.Add(root, committed)
	return root, true
}

// ProcessSolution offers the proof of work of a solved local block to the
// candidates its coinbase commits to. Nothing happens unless the block hash
// meets the block's own target. Each committed candidate still held whose
// target is met leaves the table and is queued together with a
// merge-mining proof. It returns the chains queued. A full queue drops the
// submission; local mining never waits on it.
func (co *Coordinator) ProcessSolution(block *wire.MsgBlock) []pbaas.ChainID {
	powHash := block.BlockHash()
	if len(block.Transactions) == 0 || !pbaas.MeetsTarget(powHash, block.Header.Bits) {
		return nil
	}
	root, ok := pbaas.MergeMiningRoot(block.Transactions[0])
	if !ok {
		return nil
	}
	value, ok := co.commitments.Get(root)
	if !ok {
		log.Debug().Stringer("root", root).Stringer("block", powHash).Msg("unknown merge-mining commitment")
		return nil
	}
	committed := value.(*commitment)

	hashNum := blockchain.HashToBig(&powHash)
	var queued []pbaas.ChainID
	for i, c := range committed.candidates {
		if hashNum.Cmp(c.Target) > 0 {
			continue
		}

		proof, err := pbaas.NewMergeMiningProof(block, committed.headers, i)
		if err == nil {
			err = proof.Verify(&c.Block.Header)
		}
		if err != nil {
			log.Error().Err(err).Str("chain", c.Name).Msg("can't prove merged block")
			continue
		}
		if !co.take(c) {
			continue
		}

		s := submission{chainID: c.ChainID, name: c.Name, endpoint: c.Endpoint, block: c.Block, proof: proof}
		select {
		case co.queue <- s:
			queued = append(queued, c.ChainID)
			log.Info().Str("chain", c.Name).Stringer("pow_hash", powHash).Msg("merged block solved")
		default:
			submissions.WithLabelValues("dropped").Inc()
			log.Error().Str("chain", c.Name).Msg("submission queue is full, merged block dropped")
		}
	}
	return queued
}

// take removes c from the table unless it has been replaced or dropped.
func (co *Coordinator) take(c *Candidate) bool {
	co.mtx.Lock()
	defer co.mtx.Unlock()

	held, ok := co.candidates[c.ChainID]
	if !ok || held != c {
		return false
	}
	delete(co.candidates, c.ChainID)
	co.version++
	candidateCount.Set(float64(len(co.candidates)))
	return true
}

// Run delivers queued blocks on Workers goroutines until ctx is done.
func (co *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < co.cfg.Workers; i++ {
		g.Go(func() error {
			co.worker(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (co *Coordinator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-co.queue:
			co.submit(ctx, s)
		}
	}
}

func (co *Coordinator) submit(ctx context.Context, s submission) {
	if co.cfg.Submitter == nil {
		submissions.WithLabelValues("failed").Inc()
		log.Error().Str("chain", s.name).Msg("no submitter configured")
		return
	}

	hash := s.block.BlockHash()
	if err := co.cfg.Submitter.Submit(ctx, s.endpoint, s.block, s.proof); err != nil {
		submissions.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("chain", s.name).Str("endpoint", s.endpoint.Address()).
			Stringer("block", hash).Msg("can't submit merged block")
		return
	}

	submissions.WithLabelValues("submitted").Inc()
	log.Info().Str("chain", s.name).Stringer("block", hash).Msg("merged block submitted")
}
