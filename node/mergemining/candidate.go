// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mergemining

import (
	"math/big"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// Endpoint is the RPC server of a merge-mined chain.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"-"`
	Pass string `json:"-"`
}

// NewEndpoint splits userpass ("user:password") and checks that every part
// is present.
func NewEndpoint(host string, port int, userpass string) (Endpoint, error) {
	user, pass, ok := strings.Cut(userpass, ":")
	switch {
	case host == "":
		return Endpoint{}, pbaas.MakeError(pbaas.ErrInvalidParameter, "rpc host is empty", nil)
	case port <= 0 || port > 65535:
		return Endpoint{}, pbaas.MakeError(pbaas.ErrInvalidParameter, "rpc port out of range: "+strconv.Itoa(port), nil)
	case userpass == "":
		return Endpoint{}, pbaas.MakeError(pbaas.ErrInvalidParameter, "rpc credentials are empty", nil)
	}
	if !ok {
		user, pass = userpass, ""
	}
	return Endpoint{Host: host, Port: port, User: user, Pass: pass}, nil
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Candidate is an unsolved block of another chain waiting for a proof of
// work found by the local miner.
type Candidate struct {
	ChainID  pbaas.ChainID
	Name     string
	Endpoint Endpoint
	Block    *wire.MsgBlock

	// Target is the expanded difficulty target of Block.
	Target *big.Int
	// ROI estimates the reward per unit of work: coinbase value times the
	// target. Both sides of every comparison share the 2^256 scale, so it
	// is left out.
	ROI *big.Int

	Added time.Time
}

// NewCandidate wraps block for the chain defined by def.
func NewCandidate(def *pbaas.ChainDefinition, endpoint Endpoint, block *wire.MsgBlock) *Candidate {
	target := blockchain.CompactToBig(block.Header.Bits)
	return &Candidate{
		ChainID:  def.ChainID(),
		Name:     def.Name,
		Endpoint: endpoint,
		Block:    block,
		Target:   target,
		ROI:      EstimateROI(block, target),
	}
}

// EstimateROI returns coinbase value times target.
func EstimateROI(block *wire.MsgBlock, target *big.Int) *big.Int {
	var reward int64
	if len(block.Transactions) > 0 {
		for _, out := range block.Transactions[0].TxOut {
			reward += out.Value
		}
	}
	if reward <= 0 || target.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Mul(big.NewInt(reward), target)
}
