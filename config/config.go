// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/pbaasd/corelog"
	"gitlab.com/jaxnet/pbaasd/network/rpc"
	"gitlab.com/jaxnet/pbaasd/node/mergemining"
	"gitlab.com/jaxnet/pbaasd/node/notarization"
	"gitlab.com/jaxnet/pbaasd/node/registry"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFilename = "pbaasd.yaml"
	defaultLogLevel       = "info"
	defaultChainName      = "PBAAS"
	defaultNet            = "mainnet"

	defaultMetricsPort     = 2112
	defaultMetricsInterval = 10 * time.Second
	defaultRegistryCache   = 256

	ChainDBLevel  = "leveldb"
	ChainDBMemory = "memory"
	MMRDBBadger   = "badger"
	MMRDBMemory   = "memory"

	randomBytesLen = 20
)

var defaultHomeDir = btcutil.AppDataDir("pbaasd", false)

// MergeMiningConfig bounds the merge-mine candidate table and the submission
// workers.
type MergeMiningConfig struct {
	Capacity   int           `long:"capacity" description:"Max number of merge-mined chains" yaml:"capacity" toml:"capacity"`
	StaleAfter time.Duration `long:"staleafter" description:"Drop candidates older than this" yaml:"stale_after" toml:"stale_after"`
	Workers    int           `long:"workers" description:"Number of submission workers" yaml:"workers" toml:"workers"`
	QueueSize  int           `long:"queuesize" description:"Solved blocks waiting for submission" yaml:"queue_size" toml:"queue_size"`
}

type MetricsConfig struct {
	Enable   bool          `long:"enable" description:"Serve prometheus metrics" yaml:"enable" toml:"enable"`
	Port     int           `long:"port" description:"Port of the metrics endpoint" yaml:"port" toml:"port"`
	Interval time.Duration `long:"interval" description:"Chain stats refresh interval" yaml:"interval" toml:"interval"`
}

type StorageConfig struct {
	ChainDB       string `long:"chaindb" description:"Block storage: leveldb or memory" yaml:"chain_db" toml:"chain_db"`
	MMRDB         string `long:"mmrdb" description:"Mountain range storage: badger or memory" yaml:"mmr_db" toml:"mmr_db"`
	RegistryCache int    `long:"registrycache" description:"Resolved chain definitions kept in memory" yaml:"registry_cache" toml:"registry_cache"`
}

// PeerConfig is a static peer offered as a bootstrap hint in notarizations.
type PeerConfig struct {
	Address        string `yaml:"address" toml:"address"`
	PaymentAddress string `yaml:"payment_address" toml:"payment_address"`
	Inbound        bool   `yaml:"inbound" toml:"inbound"`
}

// Config defines the configuration options for pbaasd.
type Config struct {
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file" yaml:"-" toml:"-"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit" yaml:"-" toml:"-"`

	Net            string         `long:"net" description:"Network: mainnet, testnet3, regtest or simnet" yaml:"net" toml:"net"`
	ChainName      string         `long:"chainname" description:"Name of the chain run by this node" yaml:"chain_name" toml:"chain_name"`
	DataDir        string         `short:"b" long:"datadir" description:"Directory to store data" yaml:"data_dir" toml:"data_dir"`
	DebugLevel     string         `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems" yaml:"debug_level" toml:"debug_level"`
	LogConfig      corelog.Config `yaml:"log_config" toml:"log_config"`
	MiningAddress  string         `long:"miningaddr" description:"Pay block rewards of merged block templates to this address" yaml:"mining_address" toml:"mining_address"`
	StrictPowerTie bool           `long:"strictpowertie" description:"Fail notarization queries when forks have equal power" yaml:"strict_power_tie" toml:"strict_power_tie"`

	RPC         rpc.Config        `group:"RPC Server Options" namespace:"rpc" yaml:"rpc" toml:"rpc"`
	MergeMining MergeMiningConfig `group:"Merge Mining Options" namespace:"mm" yaml:"merge_mining" toml:"merge_mining"`
	Metrics     MetricsConfig     `group:"Metrics Options" namespace:"metrics" yaml:"metrics" toml:"metrics"`
	Storage     StorageConfig     `group:"Storage Options" namespace:"storage" yaml:"storage" toml:"storage"`
	Peers       []PeerConfig      `yaml:"peers" toml:"peers"`
}

func defaultConfig() Config {
	return Config{
		Net:        defaultNet,
		ChainName:  defaultChainName,
		DataDir:    defaultHomeDir,
		DebugLevel: defaultLogLevel,
		LogConfig:  corelog.Config{}.Default(),
		RPC:        rpc.Config{MaxClients: rpc.DefaultMaxClients},
		MergeMining: MergeMiningConfig{
			Capacity:   mergemining.DefaultCapacity,
			StaleAfter: mergemining.DefaultStaleAfter,
			Workers:    mergemining.DefaultWorkers,
			QueueSize:  mergemining.DefaultQueueSize,
		},
		Metrics: MetricsConfig{
			Port:     defaultMetricsPort,
			Interval: defaultMetricsInterval,
		},
		Storage: StorageConfig{
			ChainDB:       ChainDBLevel,
			MMRDB:         MMRDBBadger,
			RegistryCache: defaultRegistryCache,
		},
	}
}

// setDefaults fills the values a config file left empty.
func (cfg *Config) setDefaults() {
	def := defaultConfig()
	if cfg.Net == "" {
		cfg.Net = def.Net
	}
	if cfg.ChainName == "" {
		cfg.ChainName = def.ChainName
	}
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.DebugLevel == "" {
		cfg.DebugLevel = def.DebugLevel
	}
	if cfg.LogConfig.Filename == "" {
		cfg.LogConfig.Filename = def.LogConfig.Filename
	}
	if cfg.RPC.MaxClients <= 0 {
		cfg.RPC.MaxClients = def.RPC.MaxClients
	}
	if cfg.MergeMining.Capacity == 0 {
		cfg.MergeMining.Capacity = def.MergeMining.Capacity
	}
	if cfg.MergeMining.StaleAfter == 0 {
		cfg.MergeMining.StaleAfter = def.MergeMining.StaleAfter
	}
	if cfg.MergeMining.Workers == 0 {
		cfg.MergeMining.Workers = def.MergeMining.Workers
	}
	if cfg.MergeMining.QueueSize == 0 {
		cfg.MergeMining.QueueSize = def.MergeMining.QueueSize
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = def.Metrics.Port
	}
	if cfg.Metrics.Interval == 0 {
		cfg.Metrics.Interval = def.Metrics.Interval
	}
	if cfg.Storage.ChainDB == "" {
		cfg.Storage.ChainDB = def.Storage.ChainDB
	}
	if cfg.Storage.MMRDB == "" {
		cfg.Storage.MMRDB = def.Storage.MMRDB
	}
	if cfg.Storage.RegistryCache == 0 {
		cfg.Storage.RegistryCache = def.Storage.RegistryCache
	}
}

// ChainParams returns the parameters of the configured network.
func (cfg *Config) ChainParams() *chaincfg.Params {
	params, err := NetParams(cfg.Net)
	if err != nil {
		return nil
	}
	return params
}

// LocalChainID identifies the chain run by this node.
func (cfg *Config) LocalChainID() pbaas.ChainID {
	return pbaas.ChainIDFromName(cfg.ChainName)
}

// MiningKey returns the key paid by merged block templates; ok is false
// when no mining address is set.
func (cfg *Config) MiningKey() (key pbaas.KeyID, ok bool, err error) {
	if cfg.MiningAddress == "" {
		return key, false, nil
	}
	key, err = pbaas.KeyIDFromAddress(cfg.MiningAddress, cfg.ChainParams())
	return key, err == nil, err
}

// PeerInfos converts the static peers into bootstrap hints.
func (cfg *Config) PeerInfos() ([]notarization.PeerInfo, error) {
	peers := make([]notarization.PeerInfo, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		info := notarization.PeerInfo{Addr: p.Address, Inbound: p.Inbound, Handshaked: true}
		if p.PaymentAddress != "" {
			key, err := pbaas.KeyIDFromAddress(p.PaymentAddress, cfg.ChainParams())
			if err != nil {
				return nil, errors.Wrapf(err, "peer %s", p.Address)
			}
			info.PaymentAddress = key
		}
		peers = append(peers, info)
	}
	return peers, nil
}

// Validate checks the option values and fills the ones derived from the
// network.
func (cfg *Config) Validate() error {
	params, err := NetParams(cfg.Net)
	if err != nil {
		return err
	}
	if err := registry.ValidateName(cfg.ChainName); err != nil {
		return errors.Wrap(err, "invalid chain_name")
	}

	if !cfg.RPC.Disable {
		if cfg.RPC.User == "" || cfg.RPC.Password == "" {
			return errors.New("rpc user and password must be set")
		}
		if len(cfg.RPC.ListenerAddresses) == 0 {
			cfg.RPC.ListenerAddresses = []string{net.JoinHostPort("127.0.0.1", defaultRPCPort(params))}
		}
		cfg.RPC.ListenerAddresses = normalizeAddresses(cfg.RPC.ListenerAddresses, defaultRPCPort(params))
	}

	mm := cfg.MergeMining
	if mm.Capacity <= 0 || mm.Workers <= 0 || mm.QueueSize <= 0 || mm.StaleAfter <= 0 {
		return errors.New("merge_mining values must be positive")
	}

	if cfg.Metrics.Enable && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		return errors.Errorf("metrics port %d is out of range", cfg.Metrics.Port)
	}

	switch cfg.Storage.ChainDB {
	case ChainDBLevel, ChainDBMemory:
	default:
		return errors.Errorf("unknown chain_db %q -- supported types [%s %s]",
			cfg.Storage.ChainDB, ChainDBLevel, ChainDBMemory)
	}
	switch cfg.Storage.MMRDB {
	case MMRDBBadger, MMRDBMemory:
	default:
		return errors.Errorf("unknown mmr_db %q -- supported types [%s %s]",
			cfg.Storage.MMRDB, MMRDBBadger, MMRDBMemory)
	}
	// Blocks are replayed into the mountain range on start.
	if cfg.Storage.MMRDB == MMRDBBadger && cfg.Storage.ChainDB != ChainDBLevel {
		return errors.New("mmr_db badger requires chain_db leveldb")
	}

	if _, _, err := cfg.MiningKey(); err != nil {
		return errors.Wrap(err, "invalid mining_address")
	}
	if _, err := cfg.PeerInfos(); err != nil {
		return err
	}
	return nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// normalizeAddresses appends the default port to addresses without one and
// removes duplicates.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, addr := range addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, defaultPort)
		}
		if _, ok := seen[addr]; !ok {
			result = append(result, addr)
			seen[addr] = struct{}{}
		}
	}
	return result
}

func fileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil || !os.IsNotExist(err)
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := defaultConfig()
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash|flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, nil, err
		}
	}
	if preCfg.ShowVersion {
		return &preCfg, nil, nil
	}

	configFile := preCfg.ConfigFile
	if configFile == "" {
		configFile = filepath.Join(cleanAndExpandPath(preCfg.DataDir), defaultConfigFilename)
		if !fileExists(configFile) {
			if err := createDefaultConfigFile(configFile); err != nil {
				return nil, nil, errors.Wrap(err, "can't create default config file")
			}
		}
	}
	if err := decodeConfigFile(configFile, &cfg); err != nil {
		return nil, nil, err
	}
	cfg.setDefaults()

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}
	cfg.ConfigFile = configFile

	if cfg.DebugLevel == "show" {
		return nil, nil, errors.Errorf("supported subsystems %v", supportedSubsystems())
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	// Namespace the data and log directories per network.
	params := cfg.ChainParams()
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir), netName(params))
	if cfg.LogConfig.Directory == "" || cfg.LogConfig.Directory == corelog.DefaultLogDir {
		cfg.LogConfig.Directory = filepath.Join(cfg.DataDir, corelog.DefaultLogDir)
	}
	cfg.LogConfig.Directory = cleanAndExpandPath(cfg.LogConfig.Directory)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, errors.Wrap(err, "failed to create data directory")
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel, cfg.LogConfig); err != nil {
		return nil, nil, err
	}
	return &cfg, remainingArgs, nil
}

// decodeConfigFile reads path as YAML or TOML depending on its extension.
func decodeConfigFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "can't open config file")
	}
	defer file.Close()

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(file).Decode(cfg)
	case ".toml":
		err = toml.NewDecoder(file).Decode(cfg)
	default:
		return errors.Errorf("invalid config file extension %q, must be .yaml or .toml", filepath.Ext(path))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "can't parse config file %s", path)
	}
	return nil
}

// createDefaultConfigFile writes the default configuration with a random RPC
// user and password to destinationPath.
func createDefaultConfigFile(destinationPath string) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o700); err != nil {
		return err
	}

	randomBytes := make([]byte, randomBytesLen)
	if _, err := rand.Read(randomBytes); err != nil {
		return err
	}
	generatedRPCUser := base64.StdEncoding.EncodeToString(randomBytes)

	if _, err := rand.Read(randomBytes); err != nil {
		return err
	}
	generatedRPCPass := base64.StdEncoding.EncodeToString(randomBytes)

	cfg := defaultConfig()
	cfg.DataDir = filepath.Dir(destinationPath)
	cfg.RPC.User = generatedRPCUser
	cfg.RPC.Password = generatedRPCPass

	dest, err := os.OpenFile(destinationPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer dest.Close()

	enc := yaml.NewEncoder(dest)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return err
	}
	return enc.Close()
}
