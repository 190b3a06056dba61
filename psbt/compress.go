// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
)

// CompressInput drops input i's NonWitnessUtxo record in favor of a
// WitnessUtxo record, when doing so is safe: the prevout's script must
// actually be a segwit v0 template (P2WPKH, P2WSH, or P2SH wrapping one of
// those), since that's the only case in which a signer can verify the
// spent amount without the full previous transaction. CVE-2020-14199
// documented the fallout of skipping that check: a non-witness input
// "compressed" this way hands a signer an amount it cannot verify. Inputs
// that don't qualify, or that carry no NonWitnessUtxo to begin with, are
// left untouched.
func CompressInput(p *Packet, i int) error {
	pi := &p.Inputs[i]
	if pi.NonWitnessUtxo == nil {
		return nil
	}

	vout := p.UnsignedTx().TxIn[i].PreviousOutPoint.Index
	if int(vout) >= len(pi.NonWitnessUtxo.TxOut) {
		return ErrBadIndex
	}

	prevOut := pi.NonWitnessUtxo.TxOut[vout]

	if !isSegWitV0Script(prevOut.PkScript, pi.RedeemScript) {
		return nil
	}

	pi.WitnessUtxo = prevOut
	pi.NonWitnessUtxo = nil

	return nil
}

// CompressAll runs CompressInput over every input of p.
func CompressAll(p *Packet) error {
	for i := range p.Inputs {
		if err := CompressInput(p, i); err != nil {
			return err
		}
	}

	return nil
}

// isSegWitV0Script reports whether script is itself a segwit v0 witness
// program, or a P2SH script whose (already-known) redeem script is one.
func isSegWitV0Script(script, redeemScript []byte) bool {
	tmpl := Classify(script)
	switch tmpl.Class {
	case PayToWitnessPubKeyHash, PayToWitnessScriptHash:
		return true
	case PayToScriptHash:
		if redeemScript == nil ||
			!bytes.Equal(btcutil.Hash160(redeemScript), tmpl.Hash) {

			return false
		}
		switch Classify(redeemScript).Class {
		case PayToWitnessPubKeyHash, PayToWitnessScriptHash:
			return true
		}
	}

	return false
}
