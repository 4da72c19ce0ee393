// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/types/pbaasjson"
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without authenticating before it
	// is closed.
	rpcAuthTimeoutSeconds = 10

	maxRequestSize = 8 << 20
)

type ServerCore struct {
	started  int32
	shutdown int32
	cfg      *Config
	mux      *Mux

	authSHA    [sha256.Size]byte
	numClients int32
	wg         sync.WaitGroup
}

func NewRPCCore(config *Config, mux *Mux) *ServerCore {
	rpc := &ServerCore{cfg: config, mux: mux}
	if rpc.cfg.MaxClients <= 0 {
		rpc.cfg.MaxClients = DefaultMaxClients
	}
	if rpc.cfg.User != "" && rpc.cfg.Password != "" {
		login := rpc.cfg.User + ":" + rpc.cfg.Password
		auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
		rpc.authSHA = sha256.Sum256([]byte(auth))
	}
	return rpc
}

// StartRPC serves the configured listeners until ctx is done.
func (server *ServerCore) StartRPC(ctx context.Context) error {
	if atomic.AddInt32(&server.started, 1) != 1 {
		return nil
	}

	rpcServeMux := http.NewServeMux()
	rpcServeMux.HandleFunc("/", server.HandleFunc())
	httpServer := &http.Server{
		Handler: rpcServeMux,
		// Timeout connections which don't complete the initial
		// handshake within the allowed timeframe.
		ReadTimeout: time.Second * rpcAuthTimeoutSeconds,
	}

	for _, listener := range server.cfg.Listeners {
		server.wg.Add(1)
		go func(listener net.Listener) {
			defer server.wg.Done()
			log.Info().Str("addr", listener.Addr().String()).Msg("RPC Server listening")
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Str("addr", listener.Addr().String()).Msg("RPC listener failed")
			}
		}(listener)
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down the RPC Server...")
	return server.stop(httpServer)
}

func (server *ServerCore) stop(httpServer *http.Server) error {
	if atomic.AddInt32(&server.shutdown, 1) != 1 {
		log.Info().Msg("RPC Server is already in the process of shutting down")
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	server.wg.Wait()
	if err != nil {
		return errors.Wrap(err, "can't stop RPC Server gracefully")
	}
	log.Info().Msg("RPC Server shutdown complete")
	return nil
}

func (server *ServerCore) HandleFunc() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Limit the number of connections to max allowed.
		if server.limitConnections(w, r.RemoteAddr) {
			return
		}

		server.incrementClients()
		defer server.decrementClients()
		if err := server.checkAuth(r); err != nil {
			jsonAuthFail(w)
			return
		}

		server.ReadJsonRPC(w, r)
	}
}

// ReadJsonRPC handles reading and responding to RPC messages.
func (server *ServerCore) ReadJsonRPC(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&server.shutdown) != 0 {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	r.Body.Close()
	if err != nil {
		errCode := http.StatusBadRequest
		http.Error(w, fmt.Sprintf("%d error reading JSON message: %v", errCode, err), errCode)
		return
	}

	var (
		responseID interface{}
		result     interface{}
		jsonErr    error
		request    pbaasjson.Request
	)

	if err := json.Unmarshal(body, &request); err != nil {
		jsonErr = pbaasjson.NewRPCError(pbaasjson.ErrRPCParse, "Failed to parse request: "+err.Error())
	}

	if jsonErr == nil {
		// Requests without an id are notifications and get no response.
		if request.ID == nil {
			return
		}
		responseID = request.ID

		result, jsonErr = server.mux.HandleCommand(CmdCtx{
			Method:    request.Method,
			Params:    request.Params,
			CloseChan: r.Context().Done(),
		})
	}

	msg, err := server.createMarshalledReply(responseID, result, jsonErr)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal reply")
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(msg); err != nil {
		log.Error().Err(err).Msg("Failed to write marshalled reply")
		return
	}
	// Terminate with newline to maintain compatibility with Bitcoin Core.
	_, _ = w.Write([]byte{'\n'})
}

// limitConnections responds with a 503 service unavailable and returns true if
// adding another client would exceed the maximum allow RPC clients.
//
// This function is safe for concurrent access.
func (server *ServerCore) limitConnections(w http.ResponseWriter, remoteAddr string) bool {
	if int(atomic.LoadInt32(&server.numClients)+1) > server.cfg.MaxClients {
		log.Info().Msgf("Max RPC clients exceeded [%d] - disconnecting client %s",
			server.cfg.MaxClients, remoteAddr)
		http.Error(w, "503 Too busy.  Try again later.", http.StatusServiceUnavailable)
		return true
	}
	return false
}

func (server *ServerCore) incrementClients() {
	atomic.AddInt32(&server.numClients, 1)
}

func (server *ServerCore) decrementClients() {
	atomic.AddInt32(&server.numClients, -1)
}

// checkAuth checks the HTTP Basic authentication supplied by an RPC client
// in the HTTP request r.  The check is time-constant.
func (server *ServerCore) checkAuth(r *http.Request) error {
	authhdr := r.Header["Authorization"]
	if len(authhdr) == 0 {
		log.Warn().Msgf("RPC authentication failure from %s", r.RemoteAddr)
		return errors.New("auth failure")
	}

	authsha := sha256.Sum256([]byte(authhdr[0]))
	if subtle.ConstantTimeCompare(authsha[:], server.authSHA[:]) == 1 {
		return nil
	}

	log.Warn().Msgf("RPC authentication failure from %s", r.RemoteAddr)
	return errors.New("auth failure")
}

// createMarshalledReply returns a new marshalled JSON-RPC response given the
// passed parameters.  Errors that are not of the type *pbaasjson.RPCError
// become internal errors.
func (server *ServerCore) createMarshalledReply(id, result interface{}, replyErr error) ([]byte, error) {
	var jsonErr *pbaasjson.RPCError
	if replyErr != nil {
		if jErr, ok := replyErr.(*pbaasjson.RPCError); ok {
			jsonErr = jErr
		} else {
			jsonErr = server.mux.InternalRPCError(replyErr.Error(), "")
		}
	}

	return pbaasjson.MarshalResponse(id, result, jsonErr)
}

// jsonAuthFail sends a message back to the client if the http auth is rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="pbaasd RPC"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}
