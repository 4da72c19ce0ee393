// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mergemining

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
)

type submitRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// submitServer answers submitmergedblock with reason, null when empty, and
// hands the decoded request to got.
func submitServer(t *testing.T, reason string, got chan<- submitted) Endpoint {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := jsoniter.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != SubmitMethod || len(req.Params) != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var s submitted
		raw, _ := hex.DecodeString(req.Params[0])
		s.block = new(wire.MsgBlock)
		if err := s.block.Deserialize(bytes.NewReader(raw)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		raw, _ = hex.DecodeString(req.Params[1])
		s.proof = new(pbaas.MergeMiningProof)
		if err := s.proof.Deserialize(bytes.NewReader(raw)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got <- s

		var result interface{}
		if reason != "" {
			result = reason
		}
		_ = jsoniter.NewEncoder(w).Encode(map[string]interface{}{"result": result, "error": nil, "id": req.ID})
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return Endpoint{Host: host, Port: p, User: "user", Pass: "pass"}
}

func TestRPCSubmitter(t *testing.T) {
	co := New(Config{})
	candidate := testCandidate(t, "MERGED", 1000, easyBits)
	require.NoError(t, co.Admit(candidate))
	local := committedBlock(t, co, easyBits)
	proof, err := pbaas.NewMergeMiningProof(local, []chainhash.Hash{candidate.Block.BlockHash()}, 0)
	require.NoError(t, err)

	got := make(chan submitted, 1)
	endpoint := submitServer(t, "", got)
	submitter := RPCSubmitter{DisableTLS: true}
	require.NoError(t, submitter.Submit(context.Background(), endpoint, candidate.Block, proof))

	s := <-got
	assert.Equal(t, candidate.Block.BlockHash(), s.block.BlockHash())
	assert.NoError(t, s.proof.Verify(&s.block.Header))

	endpoint = submitServer(t, "duplicate", got)
	err = submitter.Submit(context.Background(), endpoint, candidate.Block, proof)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block rejected: duplicate")
}

func TestSubmitResult(t *testing.T) {
	assert.NoError(t, submitResult(nil))
	assert.NoError(t, submitResult([]byte("null")))
	assert.EqualError(t, submitResult([]byte(`"inconclusive"`)), "block rejected: inconclusive")
	assert.Error(t, submitResult([]byte(`{}`)))
}
