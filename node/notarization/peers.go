// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notarization

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"

	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// PeerInfo describes a connected peer.
type PeerInfo struct {
	Addr           string
	PaymentAddress pbaas.KeyID
	Inbound        bool
	Handshaked     bool
}

// PeerSource lists the currently connected peers.
type PeerSource interface {
	ConnectedPeers() []PeerInfo
}

// StaticPeers is a fixed peer list.
type StaticPeers []PeerInfo

func (s StaticPeers) ConnectedPeers() []PeerInfo { return s }

// Rand picks random indexes.
type Rand interface {
	Intn(n int) int
}

// NewSecureRand returns a Rand drawing from crypto/rand.
func NewSecureRand() Rand {
	return rand.New(cryptoSource{})
}

type cryptoSource struct{}

func (cryptoSource) Int63() int64 { return int64(cryptoSource{}.Uint64() & (1<<63 - 1)) }

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return binary.LittleEndian.Uint64(b[:])
}

func (cryptoSource) Seed(int64) {}

// SelectNodes returns up to max bootstrap hints from outbound peers that
// completed the handshake. When more qualify, a uniform random subset is
// drawn without replacement.
func SelectNodes(peers []PeerInfo, max int, rnd Rand) []pbaas.NodeData {
	eligible := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		if p.Handshaked && !p.Inbound {
			eligible = append(eligible, p)
		}
	}

	if len(eligible) > max {
		for i := 0; i < max; i++ {
			j := i + rnd.Intn(len(eligible)-i)
			eligible[i], eligible[j] = eligible[j], eligible[i]
		}
		eligible = eligible[:max]
	}

	nodes := make([]pbaas.NodeData, len(eligible))
	for i, p := range eligible {
		nodes[i] = pbaas.NodeData{NetworkAddress: p.Addr, PaymentAddress: p.PaymentAddress}
	}
	return nodes
}
