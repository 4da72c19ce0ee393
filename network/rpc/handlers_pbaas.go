// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/node/mergemining"
	"gitlab.com/jaxnet/pbaasd/node/notarization"
	"gitlab.com/jaxnet/pbaasd/node/registry"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
	"gitlab.com/jaxnet/pbaasd/types/pbaasjson"
)

// BlockProcessor accepts blocks of the local chain.
type BlockProcessor interface {
	ConnectBlock(block *wire.MsgBlock) error
}

// Backend is the node state served by PBaaSRPC. Templates may be nil when
// no mining address is configured.
type Backend struct {
	Params       *chaincfg.Params
	Registry     *registry.Registry
	Notary       *notarization.Notary
	Coordinator  *mergemining.Coordinator
	Templates    *mergemining.TemplateCache
	Blocks       BlockProcessor
	DefaultClass pbaas.EvalCode
}

// PBaaSRPC serves the chain registry, notarization and merge-mining
// methods.
type PBaaSRPC struct {
	Mux
	backend Backend
}

func NewPBaaSRPC(backend Backend, logger zerolog.Logger) *PBaaSRPC {
	if backend.DefaultClass == 0 {
		backend.DefaultClass = pbaas.EvalAcceptedNotarization
	}
	server := &PBaaSRPC{
		Mux:     NewRPCMux(logger),
		backend: backend,
	}
	server.SetCommands(server.ComposeHandlers())
	return server
}

func (server *PBaaSRPC) ComposeHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"getchaindefinition":     server.handleGetChainDefinition,
		"getdefinedchains":       server.handleGetDefinedChains,
		"getnotarizationdata":    server.handleGetNotarizationData,
		"getcrossnotarization":   server.handleGetCrossNotarization,
		"definechain":            server.handleDefineChain,
		"addmergedblock":         server.handleAddMergedBlock,
		"submitmergedblock":      server.handleSubmitMergedBlock,
		"getmergedblocktemplate": server.handleGetMergedBlockTemplate,
		"getmergedblocks":        server.handleGetMergedBlocks,
	}
}

// handleGetChainDefinition implements the getchaindefinition command. An
// unknown chain yields null.
func (server *PBaaSRPC) handleGetChainDefinition(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(1, 1); err != nil {
		return nil, err
	}
	name, err := ctx.string(0)
	if err != nil {
		return nil, err
	}

	def, err := server.backend.Registry.LookupByName(name)
	if pbaas.IsErrorCode(err, pbaas.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, server.toRPCError(err, "getchaindefinition")
	}
	return pbaasjson.NewChainDefinition(def, server.backend.Params), nil
}

func (server *PBaaSRPC) handleGetDefinedChains(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(0, 1); err != nil {
		return nil, err
	}
	includeExpired, err := ctx.optBool(0, false)
	if err != nil {
		return nil, err
	}

	defs, err := server.backend.Registry.ListAll(includeExpired)
	if err != nil {
		return nil, server.toRPCError(err, "getdefinedchains")
	}
	res := make([]pbaasjson.ChainDefinition, len(defs))
	for i, def := range defs {
		res[i] = pbaasjson.NewChainDefinition(def, server.backend.Params)
	}
	return res, nil
}

func (server *PBaaSRPC) notarizationClass(ctx CmdCtx, i int) (pbaas.EvalCode, error) {
	accepted, err := ctx.optBool(i, server.backend.DefaultClass == pbaas.EvalAcceptedNotarization)
	if err != nil {
		return 0, err
	}
	if accepted {
		return pbaas.EvalAcceptedNotarization, nil
	}
	return pbaas.EvalEarnedNotarization, nil
}

// handleGetNotarizationData implements the getnotarizationdata command. A
// chain without notarizations yields an empty object.
func (server *PBaaSRPC) handleGetNotarizationData(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(1, 2); err != nil {
		return nil, err
	}
	chainID, err := ctx.chainID(0)
	if err != nil {
		return nil, err
	}
	class, err := server.notarizationClass(ctx, 1)
	if err != nil {
		return nil, err
	}

	data, err := server.backend.Notary.NotarizationData(chainID, class)
	if pbaas.IsErrorCode(err, pbaas.ErrNotFound) {
		return struct{}{}, nil
	}
	if err != nil {
		return nil, server.toRPCError(err, "getnotarizationdata")
	}
	return pbaasjson.NewNotarizationData(data, server.backend.Params), nil
}

// handleGetCrossNotarization implements the getcrossnotarization command. No
// match yields an empty object.
func (server *PBaaSRPC) handleGetCrossNotarization(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(2, 3); err != nil {
		return nil, err
	}
	chainID, err := ctx.chainID(0)
	if err != nil {
		return nil, err
	}
	txids, err := ctx.txids(1)
	if err != nil {
		return nil, err
	}
	class, err := server.notarizationClass(ctx, 2)
	if err != nil {
		return nil, err
	}

	res, err := server.backend.Notary.CrossNotarization(chainID, txids, class)
	if pbaas.IsErrorCode(err, pbaas.ErrNotFound) {
		return struct{}{}, nil
	}
	if err != nil {
		return nil, server.toRPCError(err, "getcrossnotarization")
	}

	var rawTx bytes.Buffer
	if err := res.Tx.Serialize(&rawTx); err != nil {
		return nil, server.InternalRPCError(err.Error(), "can't serialize notarization")
	}
	return pbaasjson.CrossNotarization{
		CrossTxID:       res.CrossTxID.String(),
		TxID:            res.TxID.String(),
		RawTx:           hex.EncodeToString(rawTx.Bytes()),
		ProofHeight:     res.ProofHeight,
		Notarization:    pbaasjson.NewNotarization(res.Notarization, server.backend.Params),
		NotarizationHex: hex.EncodeToString(res.Notarization.Bytes()),
		ProofBundle:     hex.EncodeToString(res.Bundle.Bytes()),
	}, nil
}

func (server *PBaaSRPC) handleDefineChain(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(1, 1); err != nil {
		return nil, err
	}
	var arg pbaasjson.ChainDefinition
	if err := ctx.decode(0, "a JSON object", &arg); err != nil {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, "JSON object required. see help.")
	}
	def, err := arg.ToDefinition(server.backend.Params)
	if err != nil {
		return nil, server.toRPCError(err, "definechain")
	}

	res, err := server.backend.Registry.DefineChain(def)
	if err != nil {
		return nil, server.toRPCError(err, "definechain")
	}

	var raw bytes.Buffer
	if err := res.Tx.Serialize(&raw); err != nil {
		return nil, server.InternalRPCError(err.Error(), "can't serialize chain definition")
	}
	return pbaasjson.DefineChain{
		ChainDefinition:  pbaasjson.NewChainDefinition(res.Chain, server.backend.Params),
		BaseNotarization: pbaasjson.NewNotarization(res.Base, server.backend.Params),
		TxID:             res.Tx.TxHash().String(),
		Hex:              hex.EncodeToString(raw.Bytes()),
	}, nil
}

func decodeBlock(s string) (*wire.MsgBlock, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	block := new(wire.MsgBlock)
	if err := block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return block, nil
}

func decodeMergeMiningProof(s string) (*pbaas.MergeMiningProof, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	proof := new(pbaas.MergeMiningProof)
	if err := proof.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return proof, nil
}

// handleAddMergedBlock implements the addmergedblock command. It yields
// null on admission and "blocksfull" when the candidate was not admitted.
func (server *PBaaSRPC) handleAddMergedBlock(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(5, 5); err != nil {
		return nil, err
	}
	blockHex, err := ctx.string(0)
	if err != nil {
		return nil, err
	}
	name, err := ctx.string(1)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, "must provide chain name to merge mine")
	}
	host, err := ctx.string(2)
	if err != nil {
		return nil, err
	}
	port, err := ctx.int(3)
	if err != nil {
		return nil, err
	}
	userpass, err := ctx.string(4)
	if err != nil {
		return nil, err
	}
	endpoint, err := mergemining.NewEndpoint(host, port, userpass)
	if err != nil {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter,
			"must provide valid RPC connection parameters to merge mine")
	}

	server.backend.Coordinator.Prune()

	def, err := server.backend.Registry.Resolve(name)
	if pbaas.IsErrorCode(err, pbaas.ErrNotFound) {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, "chain not found")
	}
	if err != nil {
		return nil, server.toRPCError(err, "addmergedblock")
	}

	block, err := decodeBlock(blockHex)
	if err != nil {
		return "deserialize-invalid", nil
	}

	err = server.backend.Coordinator.Admit(mergemining.NewCandidate(def, endpoint, block))
	if errors.Is(err, mergemining.ErrBlocksFull) {
		return "blocksfull", nil
	}
	if err != nil {
		return nil, server.toRPCError(err, "addmergedblock")
	}
	return nil, nil
}

// handleSubmitMergedBlock implements the submitmergedblock command. Without
// a proof the block must meet its own target; its proof of work is then
// offered to the merge-mine candidates its coinbase commits to. With a
// merge-mining proof the work comes from the parent block of another chain.
// The block is then processed locally. The result follows BIP 22.
func (server *PBaaSRPC) handleSubmitMergedBlock(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(1, 2); err != nil {
		return nil, err
	}
	blockHex, err := ctx.string(0)
	if err != nil {
		return nil, err
	}
	block, err := decodeBlock(blockHex)
	if err != nil {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCDeserialization, "Block decode failed")
	}
	hash := block.BlockHash()

	if ctx.has(1) {
		proofHex, err := ctx.string(1)
		if err != nil {
			return nil, err
		}
		proof, err := decodeMergeMiningProof(proofHex)
		if err != nil {
			return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCDeserialization, "Proof decode failed")
		}
		if !pbaas.MeetsTarget(proof.ParentHeader.BlockHash(), block.Header.Bits) {
			return "high-hash", nil
		}
		if err = proof.Verify(&block.Header); err != nil {
			server.Log.Debug().Err(err).Stringer("block", hash).Msg("merge-mining proof rejected")
			return "bad-mmproof", nil
		}
	} else {
		if !pbaas.MeetsTarget(hash, block.Header.Bits) {
			return "high-hash", nil
		}
		if queued := server.backend.Coordinator.ProcessSolution(block); len(queued) > 0 {
			server.Log.Info().Stringer("block", hash).Int("chains", len(queued)).Msg("merged blocks queued")
		}
	}

	err = server.backend.Blocks.ConnectBlock(block)
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, chainstore.ErrDuplicateBlock):
		return "duplicate", nil
	case errors.Is(err, chainstore.ErrOrphanBlock):
		return "inconclusive", nil
	case errors.Is(err, chainstore.ErrBadMerkleRoot):
		return "bad-txnmrklroot", nil
	case errors.Is(err, chainstore.ErrDuplicateTx):
		return "bad-txns-duplicate", nil
	default:
		server.Log.Debug().Err(err).Stringer("block", hash).Msg("submitted block rejected")
		return "rejected", nil
	}
}

// handleGetMergedBlockTemplate implements the getmergedblocktemplate command
// in template mode.
func (server *PBaaSRPC) handleGetMergedBlockTemplate(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(0, 1); err != nil {
		return nil, err
	}
	if server.backend.Templates == nil {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCMethodNotFound, "mining address is not set")
	}

	var req pbaasjson.MergedBlockTemplateRequest
	if ctx.has(0) {
		if err := ctx.decode(0, "a JSON object", &req); err != nil {
			return nil, err
		}
	}
	if req.Mode != "" && req.Mode != "template" {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, "Invalid mode")
	}

	tmpl, err := server.backend.Templates.Get()
	if err != nil {
		return nil, server.toRPCError(err, "getmergedblocktemplate")
	}
	return templateResult(tmpl)
}

func templateResult(tmpl *mergemining.Template) (*pbaasjson.MergedBlockTemplate, error) {
	header := tmpl.Block.Header

	txs := make([]pbaasjson.TemplateTx, len(tmpl.Block.Transactions))
	for i, tx := range tmpl.Block.Transactions {
		var raw bytes.Buffer
		if err := tx.Serialize(&raw); err != nil {
			return nil, err
		}
		txs[i] = pbaasjson.TemplateTx{Data: hex.EncodeToString(raw.Bytes()), Hash: tx.TxHash().String()}
	}

	return &pbaasjson.MergedBlockTemplate{
		Version:      header.Version,
		PreviousHash: header.PrevBlock.String(),
		Transactions: txs[1:],
		CoinbaseTxn:  txs[0],
		LongPollID:   tmpl.LongPollID,
		Target:       fmt.Sprintf("%064x", blockchain.CompactToBig(header.Bits)),
		MinTime:      header.Timestamp.Unix(),
		Mutable:      []string{"time", "transactions", "prevblock"},
		NonceRange:   "00000000ffffffff",
		CurTime:      tmpl.Created.Unix(),
		Bits:         fmt.Sprintf("%08x", header.Bits),
		Height:       tmpl.Height,
	}, nil
}

// handleGetMergedBlocks lists the held merge-mine candidates.
func (server *PBaaSRPC) handleGetMergedBlocks(ctx CmdCtx) (interface{}, error) {
	if err := ctx.paramCount(0, 0); err != nil {
		return nil, err
	}

	candidates := server.backend.Coordinator.Candidates()
	res := make([]pbaasjson.MergeMineCandidate, len(candidates))
	for i, c := range candidates {
		res[i] = pbaasjson.MergeMineCandidate{
			Name:     c.Name,
			ChainID:  c.ChainID.String(),
			Endpoint: c.Endpoint.Address(),
			Target:   fmt.Sprintf("%064x", c.Target),
			ROI:      c.ROI.String(),
			Added:    c.Added.Unix(),
		}
	}
	return res, nil
}
