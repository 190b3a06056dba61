// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt_test

import (
	"testing"

	"github.com/psbtkit/psbtkit/psbt"
	"github.com/stretchr/testify/require"
)

func TestExtractRejectsIncompletePacket(t *testing.T) {
	p := samplePacket(t)

	_, err := psbt.Extract(p)
	require.ErrorIs(t, err, psbt.ErrNotFinalized)
}

func TestExtractDoesNotMutateUnsignedTx(t *testing.T) {
	p := samplePacket(t)
	p.Inputs[0].FinalScriptSig = []byte{0x51}

	tx, err := psbt.Extract(p)
	require.NoError(t, err)
	require.Equal(t, []byte{0x51}, tx.TxIn[0].SignatureScript)

	require.Empty(t, p.UnsignedTx().TxIn[0].SignatureScript)
}
