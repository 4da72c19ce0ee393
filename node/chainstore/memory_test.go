// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore_test

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/node/chainstore/chaintest"
	nodemmr "gitlab.com/jaxnet/pbaasd/node/mmr"
	"gitlab.com/jaxnet/pbaasd/types/mmr"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

func TestMemoryIndexes(t *testing.T) {
	c := chaintest.New(t)
	def := c.DefineChain(chaintest.Definition("TESTCHAIN"))
	c.Mine(def)
	chainID := pbaas.ChainIDFromName("TESTCHAIN")
	finalKey := pbaas.FinalizationKeyID(chainID)

	n1 := c.Notarize(chainID, chaintest.Claim{Prev: def, Height: 10, Work: 10})
	c.Mine(n1)
	c.Mine(c.Confirm(def))

	err := c.State.View(func(s chainstore.Snapshot) error {
		assert.Equal(t, int32(3), s.BestHeight())

		unspent, err := s.AddressUnspent(finalKey, 1)
		require.NoError(t, err)
		require.Len(t, unspent, 1)
		assert.Equal(t, n1.TxHash(), unspent[0].OutPoint.Hash)
		assert.Equal(t, int32(2), unspent[0].Height)
		assert.Equal(t, 1, unspent[0].TxIndex)

		unspent, err = s.AddressUnspent(finalKey, 3)
		require.NoError(t, err)
		assert.Empty(t, unspent)

		history, err := s.AddressIndex(finalKey, 0, 3)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, def.TxHash(), history[0].OutPoint.Hash)
		assert.Equal(t, uint32(pbaas.DefinitionFinalizationIndex), history[0].OutPoint.Index)

		history, err = s.AddressIndex(finalKey, 2, 2)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, n1.TxHash(), history[0].OutPoint.Hash)

		defs, err := s.AddressUnspent(pbaas.DefinitionKeyID(), 1)
		require.NoError(t, err)
		assert.Len(t, defs, 1)

		tx, blockHash, err := s.FetchTransaction(n1.TxHash())
		require.NoError(t, err)
		assert.Equal(t, n1.TxHash(), tx.TxHash())
		entry, err := s.BlockEntry(blockHash)
		require.NoError(t, err)
		assert.Equal(t, int32(2), entry.Height)

		_, _, err = s.FetchTransaction(chainhash.Hash{1})
		assert.True(t, pbaas.IsErrorCode(err, pbaas.ErrNotFound))

		view, err := s.MountainRange(3)
		require.NoError(t, err)
		root, err := view.Root()
		require.NoError(t, err)
		proof, err := view.Proof(2)
		require.NoError(t, err)
		assert.True(t, proof.Verify(pbaas.LeafNode(&entry.Header), root.Hash))

		_, err = s.MountainRange(4)
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryConnectErrors(t *testing.T) {
	c := chaintest.New(t)
	block := c.Mine()

	assert.Equal(t, chainstore.ErrDuplicateBlock, c.State.ConnectBlock(block))

	orphan := *block
	orphan.Header.PrevBlock = chainhash.Hash{9}
	orphan.Header.Nonce++
	assert.Equal(t, chainstore.ErrOrphanBlock, c.State.ConnectBlock(&orphan))

	tip, _ := c.State.BestTip()
	bad := wire.NewMsgBlock(&wire.BlockHeader{PrevBlock: tip, Bits: c.Params.PowLimitBits})
	coinbase, err := chainstore.CoinbaseTx(2, 1, chaintest.MinerKey)
	require.NoError(t, err)
	require.NoError(t, bad.AddTransaction(coinbase))
	assert.Equal(t, chainstore.ErrBadMerkleRoot, c.State.ConnectBlock(bad))
}

func TestLevelStoreReplay(t *testing.T) {
	dir := t.TempDir()

	blocks, err := chainstore.OpenLevelStore(dir)
	require.NoError(t, err)
	state, err := chainstore.New(chainstore.Config{Params: &chaincfg.RegressionNetParams, Blocks: blocks})
	require.NoError(t, err)

	c := chaintest.FromState(t, state)
	def := c.DefineChain(chaintest.Definition("TESTCHAIN"))
	c.Mine(def)
	c.Mine()
	wantTip, wantHeight := state.BestTip()
	require.NoError(t, blocks.Close())

	blocks, err = chainstore.OpenLevelStore(dir)
	require.NoError(t, err)
	defer blocks.Close()
	state, err = chainstore.New(chainstore.Config{Params: &chaincfg.RegressionNetParams, Blocks: blocks})
	require.NoError(t, err)

	tip, height := state.BestTip()
	assert.Equal(t, wantTip, tip)
	assert.Equal(t, wantHeight, height)

	err = state.View(func(s chainstore.Snapshot) error {
		_, _, err := s.FetchTransaction(def.TxHash())
		return err
	})
	assert.NoError(t, err)
}

func TestTemplateSource(t *testing.T) {
	c := chaintest.New(t)
	source := &chainstore.TemplateSource{Memory: c.State, PayTo: chaintest.MinerKey}

	block, height, err := source.NewBlockTemplate()
	require.NoError(t, err)
	assert.Equal(t, int32(1), height)

	tip, _ := c.State.BestTip()
	assert.Equal(t, tip, block.Header.PrevBlock)
	require.NoError(t, c.State.ConnectBlock(block))
	assert.Equal(t, int32(1), c.Height())
}

type staticCommitter chainhash.Hash

func (c staticCommitter) MergeMiningRoot() (chainhash.Hash, bool) { return chainhash.Hash(c), true }

func TestTemplateSourceCommitsMergeMiningRoot(t *testing.T) {
	c := chaintest.New(t)
	root := chainhash.Hash{0x0b, 0x0e}
	source := &chainstore.TemplateSource{Memory: c.State, PayTo: chaintest.MinerKey, MergeMining: staticCommitter(root)}

	block, _, err := source.NewBlockTemplate()
	require.NoError(t, err)
	got, ok := pbaas.MergeMiningRoot(block.Transactions[0])
	require.True(t, ok)
	assert.Equal(t, root, got)
	require.NoError(t, c.State.ConnectBlock(block))
}

type failingLeafStore struct {
	nodemmr.Store
	fail bool
}

func (s *failingLeafStore) Append(leaf mmr.Node) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Append(leaf)
}

func storedHeights(t *testing.T, blocks *chainstore.LevelStore) []int32 {
	var heights []int32
	require.NoError(t, blocks.ForEachBlock(func(height int32, _ *wire.MsgBlock) error {
		heights = append(heights, height)
		return nil
	}))
	return heights
}

func TestConnectBlockFailureLeavesStoreClean(t *testing.T) {
	blocks, err := chainstore.OpenLevelStore(t.TempDir())
	require.NoError(t, err)
	defer blocks.Close()

	leaves := &failingLeafStore{Store: nodemmr.NewMemoryStore()}
	state, err := chainstore.New(chainstore.Config{Tree: nodemmr.NewTree(leaves), Blocks: blocks})
	require.NoError(t, err)
	require.NoError(t, state.ConnectBlock(chaincfg.RegressionNetParams.GenesisBlock))

	source := &chainstore.TemplateSource{Memory: state, PayTo: chaintest.MinerKey}
	block, _, err := source.NewBlockTemplate()
	require.NoError(t, err)

	leaves.fail = true
	require.Error(t, state.ConnectBlock(block))
	assert.Equal(t, []int32{0}, storedHeights(t, blocks))

	// The stored chain still replays.
	replayed, err := chainstore.New(chainstore.Config{Blocks: blocks})
	require.NoError(t, err)
	_, height := replayed.BestTip()
	assert.Equal(t, int32(0), height)

	leaves.fail = false
	require.NoError(t, state.ConnectBlock(block))
	assert.Equal(t, []int32{0, 1}, storedHeights(t, blocks))
}

func TestConnectBlockLeafMismatchIsNotStored(t *testing.T) {
	blocks, err := chainstore.OpenLevelStore(t.TempDir())
	require.NoError(t, err)
	defer blocks.Close()

	leaves := nodemmr.NewMemoryStore()
	require.NoError(t, leaves.Append(mmr.Node{Hash: chainhash.Hash{0x01}, Weight: big.NewInt(2)}))

	state, err := chainstore.New(chainstore.Config{Tree: nodemmr.NewTree(leaves), Blocks: blocks})
	require.NoError(t, err)

	err = state.ConnectBlock(chaincfg.RegressionNetParams.GenesisBlock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mmr leaf 0")
	assert.Empty(t, storedHeights(t, blocks))
}
