// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io"

	"github.com/gocarina/gocsv"
	"gitlab.com/jaxnet/pbaasd/types/pbaasjson"
)

type notarizationRow struct {
	Fork               int    `csv:"fork"`
	Position           int    `csv:"position"`
	Index              int    `csv:"index"`
	Best               bool   `csv:"best"`
	Confirmed          bool   `csv:"confirmed"`
	TxID               string `csv:"txid"`
	BlockHeight        int32  `csv:"block_height"`
	NotarizationHeight int32  `csv:"notarization_height"`
	Work               string `csv:"work"`
	Stake              string `csv:"stake"`
	PrevNotarization   string `csv:"prev_notarization"`
	CrossNotarization  string `csv:"cross_notarization"`
}

func notarizationRows(data *pbaasjson.NotarizationData) []notarizationRow {
	var rows []notarizationRow
	for f, fork := range data.Forks {
		for pos, idx := range fork {
			if idx < 0 || idx >= len(data.Notarizations) {
				continue
			}
			entry := data.Notarizations[idx]
			rows = append(rows, notarizationRow{
				Fork:               f,
				Position:           pos,
				Index:              idx,
				Best:               f == data.BestFork,
				Confirmed:          idx == data.LastConfirmed,
				TxID:               entry.TxID,
				BlockHeight:        entry.BlockHeight,
				NotarizationHeight: entry.Notarization.NotarizationHeight,
				Work:               entry.Notarization.Work,
				Stake:              entry.Notarization.Stake,
				PrevNotarization:   entry.Notarization.PrevNotarization,
				CrossNotarization:  entry.Notarization.CrossNotarization,
			})
		}
	}
	return rows
}

func writeNotarizationsCSV(w io.Writer, data *pbaasjson.NotarizationData) error {
	return gocsv.Marshal(notarizationRows(data), w)
}
