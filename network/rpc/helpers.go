// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
	"gitlab.com/jaxnet/pbaasd/types/pbaasjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	CommandHandler func(CmdCtx) (interface{}, error)

	// CmdCtx carries the raw positional parameters of a request.
	CmdCtx struct {
		Method    string
		Params    []jsoniter.RawMessage
		CloseChan <-chan struct{}
	}
)

// Mux dispatches requests to the registered command handlers.
type Mux struct {
	Log      zerolog.Logger
	handlers map[string]CommandHandler
}

func NewRPCMux(logger zerolog.Logger) Mux {
	return Mux{
		Log:      logger,
		handlers: map[string]CommandHandler{},
	}
}

func (server *Mux) SetCommands(commands map[string]CommandHandler) {
	for cmd, handler := range commands {
		server.handlers[cmd] = handler
	}
}

// HandleCommand runs the handler of ctx.Method.
func (server *Mux) HandleCommand(ctx CmdCtx) (interface{}, error) {
	handler, ok := server.handlers[ctx.Method]
	if !ok {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCMethodNotFound, "Method not found: "+ctx.Method)
	}
	server.Log.Debug().Str("method", ctx.Method).Msg("Handle command")
	return handler(ctx)
}

// InternalRPCError is a convenience function to convert an internal error to
// an RPC error with the appropriate code set.  It also logs the error to the
// RPC server subsystem since internal errors really should not occur.
func (server *Mux) InternalRPCError(errStr, context string) *pbaasjson.RPCError {
	logStr := errStr
	if context != "" {
		logStr = context + ": " + errStr
	}
	server.Log.Error().Msg(logStr)
	return pbaasjson.NewRPCError(pbaasjson.ErrRPCInternal, errStr)
}

// toRPCError maps errors of the node components to JSON-RPC errors.
func (server *Mux) toRPCError(err error, context string) error {
	if err == nil {
		return nil
	}
	if rpcErr, ok := err.(*pbaasjson.RPCError); ok {
		return rpcErr
	}

	var pErr pbaas.Error
	if errors.As(err, &pErr) {
		switch pErr.ErrorCode {
		case pbaas.ErrInvalidParameter:
			return pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, pErr.Error())
		case pbaas.ErrTransactionUnavailable, pbaas.ErrNoRoot,
			pbaas.ErrAmbiguousIndexMatch, pbaas.ErrIndexCorruption, pbaas.ErrPowerTie:
			return pbaasjson.NewRPCError(pbaasjson.ErrRPCVerify, pErr.Error())
		}
	}
	return server.InternalRPCError(err.Error(), context)
}

func (ctx CmdCtx) paramCount(min, max int) error {
	if n := len(ctx.Params); n < min || n > max {
		return pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParams,
			fmt.Sprintf("%s takes %d to %d parameters, got %d", ctx.Method, min, max, n))
	}
	return nil
}

func (ctx CmdCtx) has(i int) bool {
	return i < len(ctx.Params) && string(ctx.Params[i]) != "null"
}

// decode unmarshals parameter i into v. kind names the expected JSON type
// in errors.
func (ctx CmdCtx) decode(i int, kind string, v interface{}) error {
	if !ctx.has(i) {
		return pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter,
			fmt.Sprintf("parameter %d is required", i+1))
	}
	if err := json.Unmarshal(ctx.Params[i], v); err != nil {
		return pbaasjson.NewRPCError(pbaasjson.ErrRPCType,
			fmt.Sprintf("parameter %d must be %s", i+1, kind))
	}
	return nil
}

func (ctx CmdCtx) string(i int) (string, error) {
	var s string
	err := ctx.decode(i, "a string", &s)
	return s, err
}

func (ctx CmdCtx) int(i int) (int, error) {
	var n int
	err := ctx.decode(i, "an integer", &n)
	return n, err
}

// optBool returns parameter i, or def when it is absent.
func (ctx CmdCtx) optBool(i int, def bool) (bool, error) {
	if !ctx.has(i) {
		return def, nil
	}
	var b bool
	err := ctx.decode(i, "a boolean", &b)
	return b, err
}

// chainID decodes a hex chain id; zero and malformed ids are rejected.
func (ctx CmdCtx) chainID(i int) (pbaas.ChainID, error) {
	var id pbaas.ChainID
	s, err := ctx.string(i)
	if err != nil {
		return id, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, "Invalid chainid")
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != pbaas.IDSize {
		return id, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, "Invalid chainid")
	}
	copy(id[:], raw)
	if id.IsZero() {
		return id, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, "Invalid chainid")
	}
	return id, nil
}

func (ctx CmdCtx) txids(i int) ([]chainhash.Hash, error) {
	var list []string
	if err := ctx.decode(i, "an array of transaction ids", &list); err != nil {
		return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter, "Invalid second parameter object type")
	}

	res := make([]chainhash.Hash, 0, len(list))
	for _, s := range list {
		txid, err := chainhash.NewHashFromStr(s)
		if err != nil || *txid == (chainhash.Hash{}) {
			return nil, pbaasjson.NewRPCError(pbaasjson.ErrRPCInvalidParameter,
				"Invalid parameter for notarization ID: "+s)
		}
		res = append(res, *txid)
	}
	return res, nil
}
