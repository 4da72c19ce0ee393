// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mergemining

import (
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/facebookgo/clock"
)

// TemplateRefresh is how long a template survives transaction updates when
// the tip does not move.
const TemplateRefresh = 5 * time.Second

// TemplateSource builds a new block on top of the tip.
type TemplateSource interface {
	NewBlockTemplate() (*wire.MsgBlock, int32, error)
}

// ChainTip reports the state a template depends on.
type ChainTip interface {
	BestTip() (chainhash.Hash, int32)
	TransactionsUpdated() uint64
}

// CandidateSet reports changes of the merge-mine candidates committed by
// templates. *Coordinator implements it.
type CandidateSet interface {
	Version() uint64
}

// Template is a block to mine with the identifier long-polling clients wait
// on.
type Template struct {
	Block      *wire.MsgBlock
	Height     int32
	LongPollID string
	Created    time.Time
}

// TemplateCache keeps the last template of a chain.
type TemplateCache struct {
	source     TemplateSource
	tip        ChainTip
	candidates CandidateSet
	clock      clock.Clock

	mtx        sync.Mutex
	current    *Template
	prevTip    chainhash.Hash
	txUpdated  uint64
	mmrVersion uint64
}

// NewTemplateCache creates a cache over source. candidates may be nil when
// templates commit to no merge-mined blocks.
func NewTemplateCache(source TemplateSource, tip ChainTip, candidates CandidateSet, clk clock.Clock) *TemplateCache {
	if clk == nil {
		clk = clock.New()
	}
	return &TemplateCache{source: source, tip: tip, candidates: candidates, clock: clk}
}

// Get returns the cached template, rebuilding it when the tip or the
// merge-mine candidates changed, or when transactions changed and the
// template is older than TemplateRefresh.
func (c *TemplateCache) Get() (*Template, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	tipHash, _ := c.tip.BestTip()
	updated := c.tip.TransactionsUpdated()
	now := c.clock.Now()
	var version uint64
	if c.candidates != nil {
		version = c.candidates.Version()
	}

	if c.current != nil && c.prevTip == tipHash && c.mmrVersion == version &&
		(updated == c.txUpdated || now.Sub(c.current.Created) <= TemplateRefresh) {
		return c.current, nil
	}

	block, height, err := c.source.NewBlockTemplate()
	if err != nil {
		return nil, err
	}

	c.current = &Template{
		Block:      block,
		Height:     height,
		LongPollID: tipHash.String() + strconv.FormatUint(updated, 10),
		Created:    now,
	}
	c.prevTip = tipHash
	c.txUpdated = updated
	c.mmrVersion = version

	log.Debug().Int32("height", height).Str("longpollid", c.current.LongPollID).Msg("block template rebuilt")
	return c.current, nil
}
