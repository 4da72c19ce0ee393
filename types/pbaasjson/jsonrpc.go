// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaasjson

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// RPCErrorCode is a JSON-RPC error code.
type RPCErrorCode int

// Error codes shared with bitcoind.
const (
	ErrRPCMisc             RPCErrorCode = -1
	ErrRPCType             RPCErrorCode = -3
	ErrRPCInvalidParameter RPCErrorCode = -8
	ErrRPCDeserialization  RPCErrorCode = -22
	ErrRPCVerify           RPCErrorCode = -25
	ErrRPCInvalidRequest   RPCErrorCode = -32600
	ErrRPCMethodNotFound   RPCErrorCode = -32601
	ErrRPCInvalidParams    RPCErrorCode = -32602
	ErrRPCInternal         RPCErrorCode = -32603
	ErrRPCParse            RPCErrorCode = -32700
)

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    RPCErrorCode `json:"code"`
	Message string       `json:"message"`
}

func NewRPCError(code RPCErrorCode, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

func (e RPCError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Request is a JSON-RPC 1.0 request.
type Request struct {
	JSONRPC string                `json:"jsonrpc,omitempty"`
	Method  string                `json:"method"`
	Params  []jsoniter.RawMessage `json:"params"`
	ID      interface{}           `json:"id"`
}

// Response is a JSON-RPC 1.0 response. Result is always present, null on
// error.
type Response struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *RPCError           `json:"error"`
	ID     interface{}         `json:"id"`
}

// MarshalResponse encodes the reply to the request with the given id.
func MarshalResponse(id interface{}, result interface{}, rpcErr *RPCError) ([]byte, error) {
	raw, err := jsoniter.Marshal(result)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		raw = jsoniter.RawMessage("null")
	}
	return jsoniter.Marshal(&Response{Result: raw, Error: rpcErr, ID: id})
}
