// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

type netInfo struct {
	params  *chaincfg.Params
	rpcPort string
}

var knownNets = map[string]netInfo{
	"mainnet":  {params: &chaincfg.MainNetParams, rpcPort: "27486"},
	"testnet3": {params: &chaincfg.TestNet3Params, rpcPort: "18843"},
	"regtest":  {params: &chaincfg.RegressionNetParams, rpcPort: "18443"},
	"simnet":   {params: &chaincfg.SimNetParams, rpcPort: "18556"},
}

// NetParams returns the parameters of the named network.
func NetParams(name string) (*chaincfg.Params, error) {
	if name == "testnet" {
		name = "testnet3"
	}
	info, ok := knownNets[name]
	if !ok {
		return nil, errors.Errorf("unknown network %q", name)
	}
	return info.params, nil
}

// netName returns the name used when referring to a bitcoin network.  At the
// time of writing, btcd currently places blocks for testnet version 3 in the
// data and log directory "testnet", which does not match the Name field of the
// chaincfg parameters.  This function can be used to override this directory
// name as "testnet" when the passed active network matches wire.TestNet3.
func netName(params *chaincfg.Params) string {
	if params.Name == chaincfg.TestNet3Params.Name {
		return "testnet"
	}
	return params.Name
}

func defaultRPCPort(params *chaincfg.Params) string {
	for _, info := range knownNets {
		if info.params == params {
			return info.rpcPort
		}
	}
	return knownNets["mainnet"].rpcPort
}
