// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"github.com/btcsuite/btcd/wire"
)

// MinTxVersion is the lowest transaction version this package will permit in
// New.
const MinTxVersion = 1

// New builds a fresh, partially populated Packet from an input/output
// skeleton: the set of prevouts to spend, the outputs to create, the
// transaction version, locktime, and one sequence number per input. The
// resulting packet's Inputs and Outputs maps are all empty; this fills the
// role of the Creator in BIP-174.
func New(inputs []*wire.OutPoint, outputs []*wire.TxOut, version int32,
	lockTime uint32, sequences []uint32) (*Packet, error) {

	if version < MinTxVersion || len(sequences) != len(inputs) {
		return nil, ErrInvalidPsbtFormat
	}

	unsignedTx := wire.NewMsgTx(version)
	unsignedTx.LockTime = lockTime

	for i, in := range inputs {
		unsignedTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: *in,
			Sequence:         sequences[i],
		})
	}
	for _, out := range outputs {
		unsignedTx.AddTxOut(out)
	}

	return &Packet{
		Global:  &Global{UnsignedTx: unsignedTx},
		Inputs:  make([]PInput, len(unsignedTx.TxIn)),
		Outputs: make([]POutput, len(unsignedTx.TxOut)),
	}, nil
}
