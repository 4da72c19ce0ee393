// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pbaasjson holds the JSON shapes of the PBaaS RPC methods.
package pbaasjson

type NodeData struct {
	NetworkAddress string `json:"networkaddress"`
	PaymentAddress string `json:"paymentaddress"`
}

type RewardEra struct {
	Reward  int64 `json:"reward"`
	Decay   int64 `json:"decay"`
	Halving int32 `json:"halving"`
	EraEnd  int32 `json:"eraend"`
	Options int32 `json:"eraoptions"`
}

// ChainDefinition is both the result of getchaindefinition and the
// argument of definechain.
type ChainDefinition struct {
	Version            uint32      `json:"version"`
	Name               string      `json:"name"`
	ChainID            string      `json:"chainid,omitempty"`
	Address            string      `json:"paymentaddress,omitempty"`
	Premine            int64       `json:"premine"`
	Convertible        int64       `json:"convertible"`
	LaunchFee          int64       `json:"launchfee"`
	StartBlock         int32       `json:"startblock"`
	EndBlock           int32       `json:"endblock"`
	BillingPeriod      int32       `json:"billingperiod"`
	NotarizationReward int64       `json:"notarizationreward"`
	Eras               []RewardEra `json:"eras"`
	Nodes              []NodeData  `json:"nodes,omitempty"`
}

type OpRetRef struct {
	Type string `json:"type"`
	Hash string `json:"hash"`
}

type Notarization struct {
	Version            uint32     `json:"version"`
	ChainID            string     `json:"chainid"`
	RewardPerBlock     int64      `json:"notaryrewardperblock"`
	NotarizationHeight int32      `json:"notarizationheight"`
	MMRRoot            string     `json:"mmrroot"`
	CompactPower       string     `json:"compactpower"`
	Work               string     `json:"work"`
	Stake              string     `json:"stake"`
	CrossNotarization  string     `json:"crossnotarization"`
	CrossHeight        int32      `json:"crossheight"`
	PrevNotarization   string     `json:"prevnotarization"`
	PrevHeight         int32      `json:"prevheight"`
	OpRetProof         []OpRetRef `json:"opretproof"`
	Nodes              []NodeData `json:"nodes"`
}

type NotarizationEntry struct {
	TxID         string       `json:"txid"`
	BlockHeight  int32        `json:"blockheight"`
	Notarization Notarization `json:"notarization"`
}

// NotarizationData is the result of getnotarizationdata. BestChain is the
// notarized height at the tip of fork BestFork.
type NotarizationData struct {
	Version       uint32              `json:"version"`
	Class         string              `json:"class"`
	Notarizations []NotarizationEntry `json:"notarizations"`
	Forks         [][]int             `json:"forks"`
	LastConfirmed int                 `json:"lastconfirmed"`
	BestChain     int32               `json:"bestchain"`
	BestFork      int                 `json:"bestfork"`
	PowerTie      bool                `json:"powertie,omitempty"`
}

// CrossNotarization is the result of getcrossnotarization.
type CrossNotarization struct {
	CrossTxID       string       `json:"crosstxid"`
	TxID            string       `json:"txid"`
	RawTx           string       `json:"rawtx"`
	ProofHeight     int32        `json:"proofheight"`
	Notarization    Notarization `json:"newnotarization"`
	NotarizationHex string       `json:"newnotarizationhex"`
	ProofBundle     string       `json:"proofbundle"`
}

// DefineChain is the result of definechain.
type DefineChain struct {
	ChainDefinition  ChainDefinition `json:"chaindefinition"`
	BaseNotarization Notarization    `json:"basenotarization"`
	TxID             string          `json:"txid"`
	Hex              string          `json:"hex"`
}

type TemplateTx struct {
	Data string `json:"data"`
	Hash string `json:"hash"`
}

// MergedBlockTemplate is the result of getmergedblocktemplate.
type MergedBlockTemplate struct {
	Version      int32        `json:"version"`
	PreviousHash string       `json:"previousblockhash"`
	Transactions []TemplateTx `json:"transactions"`
	CoinbaseTxn  TemplateTx   `json:"coinbasetxn"`
	LongPollID   string       `json:"longpollid"`
	Target       string       `json:"target"`
	MinTime      int64        `json:"mintime"`
	Mutable      []string     `json:"mutable"`
	NonceRange   string       `json:"noncerange"`
	CurTime      int64        `json:"curtime"`
	Bits         string       `json:"bits"`
	Height       int32        `json:"height"`
}

// MergedBlockTemplateRequest is the optional argument of
// getmergedblocktemplate.
type MergedBlockTemplateRequest struct {
	Mode         string   `json:"mode,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	LongPollID   string   `json:"longpollid,omitempty"`
	Data         string   `json:"data,omitempty"`
}

// MergeMineCandidate describes a held merge-mine candidate.
type MergeMineCandidate struct {
	Name     string `json:"name"`
	ChainID  string `json:"chainid"`
	Endpoint string `json:"endpoint"`
	Target   string `json:"target"`
	ROI      string `json:"roi"`
	Added    int64  `json:"added"`
}
