// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Extract materializes a fully-signed wire.MsgTx from a finalized packet, by
// copying the unsigned transaction and moving each input's FinalScriptSig
// and FinalScriptWitness into place. It returns ErrNotFinalized if any input
// is not yet finalized.
func Extract(p *Packet) (*wire.MsgTx, error) {
	if !p.IsComplete() {
		return nil, ErrNotFinalized
	}

	tx := p.UnsignedTx().Copy()

	for i, pIn := range p.Inputs {
		tx.TxIn[i].SignatureScript = pIn.FinalScriptSig

		if pIn.FinalScriptWitness == nil {
			continue
		}

		witnessReader := bytes.NewReader(pIn.FinalScriptWitness)

		witCount, err := wire.ReadVarInt(witnessReader, 0)
		if err != nil {
			return nil, err
		}

		tx.TxIn[i].Witness = make(wire.TxWitness, witCount)
		for j := uint64(0); j < witCount; j++ {
			valueBytes, err := wire.ReadVarBytes(
				witnessReader, 0, txscript.MaxScriptSize,
				"witness",
			)
			if err != nil {
				return nil, err
			}

			tx.TxIn[i].Witness[j] = valueBytes
		}
	}

	return tx, nil
}
