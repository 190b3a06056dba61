// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/psbtkit/psbtkit/psbt"
	"github.com/stretchr/testify/require"
)

func TestClassifyEmpty(t *testing.T) {
	tmpl := psbt.Classify(nil)
	require.Equal(t, psbt.EmptyScript, tmpl.Class)
}

func TestClassifyPayToPubKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()

	script, err := txscript.NewScriptBuilder().
		AddData(pub).AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	tmpl := psbt.Classify(script)
	require.Equal(t, psbt.PayToPubKey, tmpl.Class)
	require.Equal(t, pub, tmpl.PubKey)
}

func TestClassifyPayToPubKeyHash(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	hash := btcutil.Hash160(priv.PubKey().SerializeCompressed())

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(hash).AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	tmpl := psbt.Classify(script)
	require.Equal(t, psbt.PayToPubKeyHash, tmpl.Class)
	require.Equal(t, hash, tmpl.Hash)
}

func TestClassifyPayToScriptHash(t *testing.T) {
	redeem := []byte{0x51, 0x52, 0x53}
	hash := btcutil.Hash160(redeem)

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).AddData(hash).
		AddOp(txscript.OP_EQUAL).Script()
	require.NoError(t, err)

	tmpl := psbt.Classify(script)
	require.Equal(t, psbt.PayToScriptHash, tmpl.Class)
	require.Equal(t, hash, tmpl.Hash)
}

func TestClassifyWitnessPrograms(t *testing.T) {
	hash20 := make([]byte, 20)
	p2wpkh, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(hash20).Script()
	require.NoError(t, err)
	require.Equal(t, psbt.PayToWitnessPubKeyHash, psbt.Classify(p2wpkh).Class)

	hash32 := make([]byte, 32)
	p2wsh, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(hash32).Script()
	require.NoError(t, err)
	require.Equal(t, psbt.PayToWitnessScriptHash, psbt.Classify(p2wsh).Class)

	unassigned, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).AddData(hash32).Script()
	require.NoError(t, err)
	require.Equal(
		t, psbt.UnassignedWitnessScript, psbt.Classify(unassigned).Class,
	)
}

func TestClassifyMultiSig(t *testing.T) {
	privs := make([]*btcec.PrivateKey, 3)
	pubs := make([][]byte, 3)
	for i := range privs {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		privs[i] = priv
		pubs[i] = priv.PubKey().SerializeCompressed()
	}

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).
		AddData(pubs[0]).AddData(pubs[1]).AddData(pubs[2]).
		AddOp(txscript.OP_3).AddOp(txscript.OP_CHECKMULTISIG).Script()
	require.NoError(t, err)

	tmpl := psbt.Classify(script)
	require.Equal(t, psbt.MultiSigScript, tmpl.Class)
	require.Equal(t, 2, tmpl.M)
	require.Len(t, tmpl.PubKeys, 3)
}

func TestClassifyCLTVAndCSV(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()

	nested, err := txscript.NewScriptBuilder().
		AddData(pub).AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	cltv, err := txscript.NewScriptBuilder().
		AddInt64(500000).AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).AddOps(nested).Script()
	require.NoError(t, err)

	tmpl := psbt.Classify(cltv)
	require.Equal(t, psbt.CLTVScript, tmpl.Class)
	require.EqualValues(t, 500000, tmpl.LockTime)
	require.Equal(t, nested, tmpl.Nested)

	csv, err := txscript.NewScriptBuilder().
		AddInt64(144).AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		AddOp(txscript.OP_DROP).AddOps(nested).Script()
	require.NoError(t, err)

	tmpl = psbt.Classify(csv)
	require.Equal(t, psbt.CSVScript, tmpl.Class)
	require.EqualValues(t, 144, tmpl.LockTime)
}

func TestClassifyPubKeyWithTimeout(t *testing.T) {
	before, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	after, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_IF).
		AddData(before.PubKey().SerializeCompressed()).
		AddOp(txscript.OP_ELSE).
		AddInt64(144).
		AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		AddOp(txscript.OP_DROP).
		AddData(after.PubKey().SerializeCompressed()).
		AddOp(txscript.OP_ENDIF).
		AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	tmpl := psbt.Classify(script)
	require.Equal(t, psbt.PubKeyWithTimeoutScript, tmpl.Class)
	require.Equal(t, before.PubKey().SerializeCompressed(), tmpl.PubKeyBefore)
	require.Equal(t, after.PubKey().SerializeCompressed(), tmpl.PubKeyAfter)
	require.EqualValues(t, 144, tmpl.LockTime)
}

func TestClassifyConditional(t *testing.T) {
	trueBranch := []byte{0x51}
	falseBranch := []byte{0x52, 0x53}

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_IF).
		AddOps(trueBranch).
		AddOp(txscript.OP_ELSE).
		AddOps(falseBranch).
		AddOp(txscript.OP_ENDIF).Script()
	require.NoError(t, err)

	tmpl := psbt.Classify(script)
	require.Equal(t, psbt.ConditionalScript, tmpl.Class)
	require.Equal(t, trueBranch, tmpl.TrueBranch)
	require.Equal(t, falseBranch, tmpl.FalseBranch)
}

func TestClassifyNonStandard(t *testing.T) {
	script := []byte{txscript.OP_RETURN, 0x01, 0xff}

	tmpl := psbt.Classify(script)
	require.Equal(t, psbt.NonStandardScript, tmpl.Class)
}
