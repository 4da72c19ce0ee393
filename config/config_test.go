// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/jaxnet/pbaasd/node/mergemining"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func regtestAddress(t *testing.T, key pbaas.KeyID) string {
	addr, err := btcutil.NewAddressPubKeyHash(key[:], &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func TestCreateDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", defaultConfigFilename)

	require.NoError(t, createDefaultConfigFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(raw, &cfg))
	assert.NotEmpty(t, cfg.RPC.User)
	assert.NotEmpty(t, cfg.RPC.Password)
	assert.NotEqual(t, cfg.RPC.User, cfg.RPC.Password)
	assert.Equal(t, defaultNet, cfg.Net)
	assert.Equal(t, mergemining.DefaultStaleAfter, cfg.MergeMining.StaleAfter)
	assert.Equal(t, MMRDBBadger, cfg.Storage.MMRDB)
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, _, err := LoadConfig([]string{"--datadir", dir})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, defaultConfigFilename))
	assert.Equal(t, filepath.Join(dir, "mainnet"), cfg.DataDir)
	assert.Equal(t, &chaincfg.MainNetParams, cfg.ChainParams())
	assert.Equal(t, []string{"127.0.0.1:27486"}, cfg.RPC.ListenerAddresses)
	assert.Equal(t, filepath.Join(dir, "mainnet", "logs"), cfg.LogConfig.Directory)
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	payee := regtestAddress(t, pbaas.KeyID{0x01})
	path := writeFile(t, dir, "node.yaml", `
net: regtest
chain_name: VRSCTEST
data_dir: `+dir+`
debug_level: debug
mining_address: `+payee+`
rpc:
  listeners: ["127.0.0.1"]
  user: alice
  password: secret
merge_mining:
  capacity: 4
  stale_after: 10m
storage:
  chain_db: memory
  mmr_db: memory
peers:
  - address: 10.0.0.1:18444
    payment_address: `+payee+`
  - address: 10.0.0.2:18444
    inbound: true
`)

	cfg, _, err := LoadConfig([]string{"-C", path})
	require.NoError(t, err)

	assert.Equal(t, &chaincfg.RegressionNetParams, cfg.ChainParams())
	assert.Equal(t, filepath.Join(dir, "regtest"), cfg.DataDir)
	assert.Equal(t, pbaas.ChainIDFromName("VRSCTEST"), cfg.LocalChainID())
	assert.Equal(t, []string{"127.0.0.1:18443"}, cfg.RPC.ListenerAddresses)
	assert.Equal(t, 4, cfg.MergeMining.Capacity)
	assert.Equal(t, 10*time.Minute, cfg.MergeMining.StaleAfter)
	assert.Equal(t, mergemining.DefaultWorkers, cfg.MergeMining.Workers)
	assert.Equal(t, zerolog.DebugLevel, unitLogs[LogUnitNTRZ])

	key, ok, err := cfg.MiningKey()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, pbaas.KeyID{0x01}, key)

	peers, err := cfg.PeerInfos()
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, pbaas.KeyID{0x01}, peers[0].PaymentAddress)
	assert.True(t, peers[1].Inbound)
}

func TestLoadConfigTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "node.toml", `
net = "simnet"
chain_name = "TOMLCHAIN"
data_dir = "`+dir+`"

[rpc]
user = "bob"
password = "hunter2"

[merge_mining]
capacity = 3
workers = 1

[storage]
chain_db = "leveldb"
mmr_db = "badger"
`)

	cfg, _, err := LoadConfig([]string{"-C", path})
	require.NoError(t, err)

	assert.Equal(t, &chaincfg.SimNetParams, cfg.ChainParams())
	assert.Equal(t, "TOMLCHAIN", cfg.ChainName)
	assert.Equal(t, "bob", cfg.RPC.User)
	assert.Equal(t, 3, cfg.MergeMining.Capacity)
	assert.Equal(t, 1, cfg.MergeMining.Workers)
	assert.Equal(t, mergemining.DefaultQueueSize, cfg.MergeMining.QueueSize)
}

func TestFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "node.yaml", `
net: regtest
data_dir: `+dir+`
rpc:
  user: alice
  password: secret
merge_mining:
  capacity: 4
`)

	cfg, _, err := LoadConfig([]string{"-C", path, "--mm.capacity", "6", "--rpc.user", "carol", "--chainname", "FLAGS"})
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MergeMining.Capacity)
	assert.Equal(t, "carol", cfg.RPC.User)
	assert.Equal(t, "FLAGS", cfg.ChainName)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := defaultConfig()
		cfg.RPC.User = "u"
		cfg.RPC.Password = "p"
		return cfg
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{"unknown net", func(cfg *Config) { cfg.Net = "nope" }},
		{"empty chain name", func(cfg *Config) { cfg.ChainName = "" }},
		{"missing rpc password", func(cfg *Config) { cfg.RPC.Password = "" }},
		{"zero workers", func(cfg *Config) { cfg.MergeMining.Workers = 0 }},
		{"negative stale", func(cfg *Config) { cfg.MergeMining.StaleAfter = -time.Second }},
		{"metrics port", func(cfg *Config) { cfg.Metrics.Enable = true; cfg.Metrics.Port = 70000 }},
		{"chain db", func(cfg *Config) { cfg.Storage.ChainDB = "ffldb" }},
		{"mmr db", func(cfg *Config) { cfg.Storage.MMRDB = "bolt" }},
		{"badger without leveldb", func(cfg *Config) { cfg.Storage.ChainDB = ChainDBMemory }},
		{"mining address", func(cfg *Config) { cfg.MiningAddress = "garbage" }},
		{"peer address", func(cfg *Config) { cfg.Peers = []PeerConfig{{Address: "x", PaymentAddress: "garbage"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg = valid()
	cfg.RPC.Disable = true
	cfg.RPC.User = ""
	assert.NoError(t, cfg.Validate())
}

func TestParseAndSetDebugLevels(t *testing.T) {
	saved := unitLogs
	defer func() { unitLogs = saved }()

	require.NoError(t, parseAndSetDebugLevels("warn", logConfig))
	for _, level := range unitLogs {
		assert.Equal(t, zerolog.WarnLevel, level)
	}

	require.NoError(t, parseAndSetDebugLevels("MMIN=trace,RPCS=error", logConfig))
	assert.Equal(t, zerolog.TraceLevel, unitLogs[LogUnitMMIN])
	assert.Equal(t, zerolog.ErrorLevel, unitLogs[LogUnitRPCS])
	assert.Equal(t, zerolog.WarnLevel, unitLogs[LogUnitCHST])

	assert.Error(t, parseAndSetDebugLevels("loud", logConfig))
	assert.Error(t, parseAndSetDebugLevels("MMIN=info,RPCS", logConfig))
	assert.Error(t, parseAndSetDebugLevels("NOPE=info,MMIN=info", logConfig))
	assert.Error(t, parseAndSetDebugLevels("MMIN=loud,RPCS=info", logConfig))
	assert.Equal(t, zerolog.TraceLevel, unitLogs[LogUnitMMIN])
}

func TestNormalizeAddresses(t *testing.T) {
	got := normalizeAddresses([]string{"127.0.0.1", "127.0.0.1:18443", "[::1]:1", "::1"}, "18443")
	assert.Equal(t, []string{"127.0.0.1:18443", "[::1]:1", "[::1]:18443"}, got)
}
