// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"gitlab.com/jaxnet/pbaasd/config"
)

const appVersion = "0.1.0"

func main() {
	// Work around defer not working after os.Exit()
	if err := pbaasdMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}
}

// pbaasdMain is the real main function for pbaasd.
func pbaasdMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, _, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		fmt.Println("pbaasd version", appVersion)
		return nil
	}

	log := config.Logger(config.LogUnitPBSD)
	log.Info().Str("version", appVersion).Str("net", cfg.Net).Str("chain", cfg.ChainName).Msg("Starting pbaasd")
	defer log.Info().Msg("Shutdown complete")

	ctx, cancel := withInterrupt(context.Background(), log)
	defer cancel()

	controller := newNodeController(cfg, log)
	if err := controller.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Node stopped with error")
		return err
	}
	return nil
}
