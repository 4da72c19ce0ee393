// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"net"

	"github.com/pkg/errors"
)

const DefaultMaxClients = 10

// Config is a descriptor containing the RPC Server configuration.
type Config struct {
	ListenerAddresses []string `long:"listen" description:"Add an interface/port to listen for RPC connections" yaml:"listeners" toml:"listeners"`
	MaxClients        int      `long:"maxclients" description:"Max number of RPC clients for standard connections" yaml:"maxclients" toml:"maxclients"`
	User              string   `short:"u" long:"user" description:"Username for RPC connections" yaml:"user" toml:"user"`
	Password          string   `short:"P" long:"pass" default-mask:"-" description:"Password for RPC connections" yaml:"password" toml:"password"`
	Disable           bool     `long:"disable" description:"Disable built-in RPC server" yaml:"disable" toml:"disable"`

	// Listeners are owned by the server and closed when it stops.
	Listeners []net.Listener `yaml:"-" toml:"-"`
}

// SetupRPCListeners opens a listener on every configured address.
func (cfg *Config) SetupRPCListeners() ([]net.Listener, error) {
	cfg.Listeners = make([]net.Listener, 0, len(cfg.ListenerAddresses))
	for _, addr := range cfg.ListenerAddresses {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range cfg.Listeners {
				_ = l.Close()
			}
			return nil, errors.Wrapf(err, "can't listen on %s", addr)
		}
		cfg.Listeners = append(cfg.Listeners, listener)
	}
	return cfg.Listeners, nil
}
