// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &App{}
	cliApp := &cli.App{
		Name:     "pbaasctl",
		Usage:    "query and control a pbaasd node",
		Flags:    app.InitFlags(),
		Before:   app.InitClient,
		After:    app.Close,
		Commands: app.getCommands(),
	}

	err := cliApp.Run(os.Args)
	if err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func (app *App) getCommands() cli.Commands {
	return []*cli.Command{
		{
			Name:      "call",
			Usage:     "send a raw JSON-RPC request",
			ArgsUsage: "<method> [params...]",
			Action:    app.RawCallCmd,
		},
		{
			Name:      "chain",
			Usage:     "show the definition of a chain",
			ArgsUsage: "<name>",
			Action:    app.ChainDefinitionCmd,
		},
		{
			Name:  "chains",
			Usage: "list the defined chains",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: flagExpired, Usage: "include chains past their end block"},
			},
			Action: app.DefinedChainsCmd,
		},
		{
			Name:      "notarizations",
			Usage:     "show the notarization forks of a chain",
			ArgsUsage: "<chainid>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: flagEarned, Usage: "query earned instead of accepted notarizations"},
				&cli.StringFlag{Name: flagCSV, Usage: "write one row per fork entry to this CSV file"},
			},
			Action: app.NotarizationsCmd,
		},
		{
			Name:   "mergedblocks",
			Usage:  "list the merge-mine candidates held by the node",
			Action: app.MergedBlocksCmd,
		},
		{
			Name:  "decode",
			Usage: "decodes hex-encoded data",
			Subcommands: cli.Commands{
				{
					Name:      "notarization",
					Usage:     "decode a serialized notarization",
					ArgsUsage: "<hex>",
					Action:    decodeCmd(newNotarization),
				},
				{
					Name:      "definition",
					Usage:     "decode a serialized chain definition",
					ArgsUsage: "<hex>",
					Action:    decodeCmd(newChainDefinition),
				},
				{
					Name:      "bundle",
					Usage:     "decode a serialized proof bundle",
					ArgsUsage: "<hex>",
					Action:    decodeCmd(newProofBundle),
				},
				{
					Name:      "mmproof",
					Usage:     "decode a serialized merge-mining proof",
					ArgsUsage: "<hex>",
					Action:    decodeCmd(newMergeMiningProof),
				},
				{
					Name:      "block",
					Usage:     "decode a serialized block",
					ArgsUsage: "<hex>",
					Action:    decodeCmd(newBlock),
				},
			},
		},
	}
}
