// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/pbaasd/corelog"
	"gitlab.com/jaxnet/pbaasd/network/rpc"
	"gitlab.com/jaxnet/pbaasd/node/chainstore"
	"gitlab.com/jaxnet/pbaasd/node/mergemining"
	"gitlab.com/jaxnet/pbaasd/node/mmr"
	"gitlab.com/jaxnet/pbaasd/node/notarization"
	"gitlab.com/jaxnet/pbaasd/node/registry"
)

const (
	LogUnitPBSD = "PBSD"
	LogUnitCHST = "CHST"
	LogUnitREGY = "REGY"
	LogUnitNTRZ = "NTRZ"
	LogUnitMMIN = "MMIN"
	LogUnitRPCS = "RPCS"
	LogUnitMMRT = "MMRT"
	LogUnitMTRC = "MTRC"
)

var (
	logConfig = corelog.Config{}.Default()

	// unitLogs maps each subsystem identifier to its log level.
	unitLogs = map[string]zerolog.Level{
		LogUnitPBSD: corelog.DefaultLevel,
		LogUnitCHST: corelog.DefaultLevel,
		LogUnitREGY: corelog.DefaultLevel,
		LogUnitNTRZ: corelog.DefaultLevel,
		LogUnitMMIN: corelog.DefaultLevel,
		LogUnitRPCS: corelog.DefaultLevel,
		LogUnitMMRT: corelog.DefaultLevel,
		LogUnitMTRC: corelog.DefaultLevel,
	}
)

// Logger returns the logger of a subsystem.
func Logger(unit string) zerolog.Logger {
	level, ok := unitLogs[unit]
	if !ok {
		level = corelog.DefaultLevel
	}
	return corelog.New(unit, level, logConfig)
}

// setLoggers hands the subsystem loggers to the packages.
func setLoggers() {
	chainstore.UseLogger(Logger(LogUnitCHST))
	registry.UseLogger(Logger(LogUnitREGY))
	notarization.UseLogger(Logger(LogUnitNTRZ))
	mergemining.UseLogger(Logger(LogUnitMMIN))
	rpc.UseLogger(Logger(LogUnitRPCS))
	mmr.UseLogger(Logger(LogUnitMMRT))
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(unitLogs))
	for subsysID := range unitLogs {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels parses either a single level applied to every
// subsystem or a list of UNIT=level pairs, then rebuilds the loggers.
func parseAndSetDebugLevels(debugLevel string, cfg corelog.Config) error {
	levels := make(map[string]zerolog.Level, len(unitLogs))
	for unit, level := range unitLogs {
		levels[unit] = level
	}

	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		level, ok := corelog.ParseLevel(debugLevel)
		if !ok {
			return errors.Errorf("the specified debug level [%v] is invalid", debugLevel)
		}
		for unit := range levels {
			levels[unit] = level
		}
	} else {
		for _, pair := range strings.Split(debugLevel, ",") {
			unit, name, found := strings.Cut(pair, "=")
			if !found {
				return errors.Errorf("the specified debug level contains an invalid subsystem/level pair [%v]", pair)
			}
			if _, exists := levels[unit]; !exists {
				return errors.Errorf("the specified subsystem [%v] is invalid -- supported subsystems %v",
					unit, supportedSubsystems())
			}
			level, ok := corelog.ParseLevel(name)
			if !ok {
				return errors.Errorf("the specified debug level [%v] is invalid", name)
			}
			levels[unit] = level
		}
	}

	unitLogs = levels
	logConfig = cfg
	setLoggers()
	return nil
}
