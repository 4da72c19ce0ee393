// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mergemining

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

// SubmitMethod is the RPC call merged blocks are delivered with.
const SubmitMethod = "submitmergedblock"

// RPCSubmitter sends merged blocks with their merge-mining proof to the
// submitmergedblock call of the chain's RPC server.
type RPCSubmitter struct {
	// Network is passed as rpcclient.ConnConfig.Params.
	Network    string
	DisableTLS bool
}

func (s RPCSubmitter) Submit(ctx context.Context, endpoint Endpoint, block *wire.MsgBlock, proof *pbaas.MergeMiningProof) error {
	params, err := submitParams(block, proof)
	if err != nil {
		return err
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         endpoint.Address(),
		User:         endpoint.User,
		Pass:         endpoint.Pass,
		Params:       s.Network,
		DisableTLS:   s.DisableTLS,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "can't create rpc client")
	}
	defer client.Shutdown()

	future := client.RawRequestAsync(SubmitMethod, params)
	done := make(chan error, 1)
	go func() {
		res, err := future.Receive()
		if err == nil {
			err = submitResult(res)
		}
		done <- err
	}()

	select {
	case err = <-done:
		return errors.Wrapf(err, "%s %s", SubmitMethod, block.BlockHash())
	case <-ctx.Done():
		return ctx.Err()
	}
}

func submitParams(block *wire.MsgBlock, proof *pbaas.MergeMiningProof) ([]json.RawMessage, error) {
	var raw bytes.Buffer
	raw.Grow(block.SerializeSize())
	if err := block.Serialize(&raw); err != nil {
		return nil, err
	}

	params := make([]json.RawMessage, 0, 2)
	for _, data := range [][]byte{raw.Bytes(), proof.Bytes()} {
		param, err := jsoniter.Marshal(hex.EncodeToString(data))
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	return params, nil
}

// submitResult interprets a BIP 22 reply: null means accepted, a string is
// the reject reason.
func submitResult(res json.RawMessage) error {
	if len(res) == 0 {
		return nil
	}
	var reason *string
	if err := jsoniter.Unmarshal(res, &reason); err != nil {
		return errors.Wrap(err, "unexpected reply")
	}
	if reason != nil {
		return errors.Errorf("block rejected: %s", *reason)
	}
	return nil
}
