// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	stdjson "encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gitlab.com/jaxnet/pbaasd/types/pbaas"
	"gitlab.com/jaxnet/pbaasd/types/pbaasjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	flagHost    = "rpc-host"
	flagUser    = "rpc-user"
	flagPass    = "rpc-pass"
	flagTLS     = "tls"
	flagExpired = "expired"
	flagEarned  = "earned"
	flagCSV     = "csv"
)

type App struct {
	client *rpcclient.Client
	out    io.Writer
}

func (app *App) InitFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagHost, Value: "127.0.0.1:27486", Usage: "address of the pbaasd RPC server", EnvVars: []string{"PBAAS_RPC_HOST"}},
		&cli.StringFlag{Name: flagUser, Usage: "RPC user", EnvVars: []string{"PBAAS_RPC_USER"}},
		&cli.StringFlag{Name: flagPass, Usage: "RPC password", EnvVars: []string{"PBAAS_RPC_PASS"}},
		&cli.BoolFlag{Name: flagTLS, Usage: "connect with TLS"},
	}
}

func (app *App) InitClient(c *cli.Context) error {
	app.out = os.Stdout
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         c.String(flagHost),
		User:         c.String(flagUser),
		Pass:         c.String(flagPass),
		DisableTLS:   !c.Bool(flagTLS),
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "can't create rpc client"), 1)
	}
	app.client = client
	return nil
}

func (app *App) Close(*cli.Context) error {
	if app.client != nil {
		app.client.Shutdown()
	}
	return nil
}

// call sends method with params and decodes the result into res when it
// is not nil.
func (app *App) call(method string, res interface{}, params ...interface{}) (jsoniter.RawMessage, error) {
	raw := make([]stdjson.RawMessage, len(params))
	for i, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		raw[i] = data
	}

	result, err := app.client.RawRequest(method, raw)
	if err != nil {
		return nil, err
	}
	if res != nil && len(result) > 0 && string(result) != "null" {
		if err := json.Unmarshal(result, res); err != nil {
			return nil, errors.Wrapf(err, "can't decode %s result", method)
		}
	}
	return jsoniter.RawMessage(result), nil
}

func (app *App) printJSON(raw []byte) error {
	var buf bytes.Buffer
	if err := jsonIndent(&buf, raw); err != nil {
		return err
	}
	_, err := fmt.Fprintln(app.out, buf.String())
	return err
}

func jsonIndent(dst *bytes.Buffer, raw []byte) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dst.Write(out)
	return nil
}

// parseParam passes valid JSON through and quotes anything else.
func parseParam(arg string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(arg), &v); err == nil {
		return jsoniter.RawMessage(arg)
	}
	return arg
}

func (app *App) RawCallCmd(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("method is required", 1)
	}
	params := make([]interface{}, 0, c.NArg()-1)
	for _, arg := range c.Args().Tail() {
		params = append(params, parseParam(arg))
	}

	raw, err := app.call(c.Args().First(), nil, params...)
	if err != nil {
		return cli.Exit(err, 1)
	}
	return app.printJSON(raw)
}

func (app *App) ChainDefinitionCmd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("chain name is required", 1)
	}
	raw, err := app.call("getchaindefinition", nil, c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	return app.printJSON(raw)
}

func (app *App) DefinedChainsCmd(c *cli.Context) error {
	var chains []pbaasjson.ChainDefinition
	if _, err := app.call("getdefinedchains", &chains, c.Bool(flagExpired)); err != nil {
		return cli.Exit(err, 1)
	}
	for _, def := range chains {
		fmt.Fprintf(app.out, "%-40s %s start=%d end=%d\n", def.ChainID, def.Name, def.StartBlock, def.EndBlock)
	}
	return nil
}

func (app *App) NotarizationsCmd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("chain id is required", 1)
	}

	var data pbaasjson.NotarizationData
	raw, err := app.call("getnotarizationdata", &data, c.Args().First(), !c.Bool(flagEarned))
	if err != nil {
		return cli.Exit(err, 1)
	}

	path := c.String(flagCSV)
	if path == "" {
		return app.printJSON(raw)
	}

	file, err := os.Create(path)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer file.Close()
	if err := writeNotarizationsCSV(file, &data); err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Fprintf(app.out, "%d forks written to %s\n", len(data.Forks), path)
	return nil
}

func (app *App) MergedBlocksCmd(*cli.Context) error {
	var held []pbaasjson.MergeMineCandidate
	if _, err := app.call("getmergedblocks", &held); err != nil {
		return cli.Exit(err, 1)
	}
	for _, c := range held {
		fmt.Fprintf(app.out, "%-12s %s %s roi=%s\n", c.Name, c.ChainID, c.Endpoint, c.ROI)
	}
	return nil
}

type decoder interface {
	Deserialize(r io.Reader) error
}

func newNotarization() decoder     { return new(pbaas.Notarization) }
func newChainDefinition() decoder  { return new(pbaas.ChainDefinition) }
func newProofBundle() decoder      { return new(pbaas.ProofBundle) }
func newMergeMiningProof() decoder { return new(pbaas.MergeMiningProof) }
func newBlock() decoder            { return new(wire.MsgBlock) }

// decodeHex deserializes the hex encoded object built by newObj.
func decodeHex(data string, newObj func() decoder) (decoder, error) {
	raw, err := hex.DecodeString(data)
	if err != nil {
		return nil, err
	}
	obj := newObj()
	if err := obj.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeCmd(newObj func() decoder) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("hex data is required", 1)
		}
		obj, err := decodeHex(c.Args().First(), newObj)
		if err != nil {
			return cli.Exit(err, 1)
		}
		spew.Fdump(os.Stdout, obj)
		return nil
	}
}
