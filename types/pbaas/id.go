// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
	"golang.org/x/crypto/ripemd160"
)

// IDSize is the length of ChainID and KeyID values.
const IDSize = ripemd160.Size

// EvalCode selects the kind of condition an output is locked by. The
// notarization classes are EvalEarnedNotarization and
// EvalAcceptedNotarization.
type EvalCode uint32

const (
	EvalPBaaSDefinition      EvalCode = 1
	EvalServiceReward        EvalCode = 2
	EvalEarnedNotarization   EvalCode = 3
	EvalAcceptedNotarization EvalCode = 4
	EvalFinalizeNotarization EvalCode = 5
)

func (e EvalCode) String() string {
	switch e {
	case EvalPBaaSDefinition:
		return "pbaasdefinition"
	case EvalServiceReward:
		return "servicereward"
	case EvalEarnedNotarization:
		return "earnednotarization"
	case EvalAcceptedNotarization:
		return "acceptednotarization"
	case EvalFinalizeNotarization:
		return "finalizenotarization"
	default:
		return "unknown"
	}
}

// IsNotarizationClass reports whether e selects one of the two notarization
// classes.
func (e EvalCode) IsNotarizationClass() bool {
	return e == EvalEarnedNotarization || e == EvalAcceptedNotarization
}

// Hash160 calculates RIPEMD160(SHA256(b)).
func Hash160(b []byte) [IDSize]byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])

	var out [IDSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ChainID identifies a chain. It is the Hash160 of the chain name.
type ChainID [IDSize]byte

// ChainIDFromName derives the identifier of a chain from its name.
func ChainIDFromName(name string) ChainID {
	return ChainID(Hash160([]byte(name)))
}

func (id ChainID) String() string { return hex.EncodeToString(id[:]) }

func (id ChainID) IsZero() bool { return id == ChainID{} }

// KeyID identifies an address in the address index.
type KeyID [IDSize]byte

func (k KeyID) String() string { return hex.EncodeToString(k[:]) }

// ConditionID returns the address at which outputs of the given condition
// kind for chainID are indexed.
func ConditionID(chainID ChainID, code EvalCode) KeyID {
	var buf [IDSize + 4]byte
	copy(buf[:], chainID[:])
	binary.LittleEndian.PutUint32(buf[IDSize:], uint32(code))
	return KeyID(Hash160(buf[:]))
}

// DefinitionKeyID is the global contract address that holds every chain
// definition output.
func DefinitionKeyID() KeyID {
	return ConditionID(ChainID{}, EvalPBaaSDefinition)
}

// FinalizationKeyID is the address of the finalization outputs of chainID.
func FinalizationKeyID(chainID ChainID) KeyID {
	return ConditionID(chainID, EvalFinalizeNotarization)
}

// Address encodes k as a pay-to-pubkey-hash address for the network.
func (k KeyID) Address(params *chaincfg.Params) (*btcutil.AddressPubKeyHash, error) {
	return btcutil.NewAddressPubKeyHash(k[:], params)
}

// PayToKeyIDScript returns the P2PKH script locking an output to k.
func PayToKeyIDScript(k KeyID) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(k[:]).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	return script
}

// KeyIDFromAddress decodes an encoded P2PKH address.
func KeyIDFromAddress(addr string, params *chaincfg.Params) (KeyID, error) {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return KeyID{}, MakeError(ErrInvalidParameter, "invalid address "+addr, err)
	}
	pkh, ok := decoded.(*btcutil.AddressPubKeyHash)
	if !ok {
		return KeyID{}, MakeError(ErrInvalidParameter, "not a pubkey hash address: "+addr, nil)
	}
	return KeyID(*pkh.Hash160()), nil
}
