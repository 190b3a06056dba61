// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt_test

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/psbtkit/psbtkit/psbt"
	"github.com/stretchr/testify/require"
)

func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}

func newOutPoint(b byte, idx uint32) wire.OutPoint {
	var h chainhash.Hash
	for i := range h {
		h[i] = b
	}

	return wire.OutPoint{Hash: h, Index: idx}
}

// execScript runs the full script-verification engine over the scriptSig
// and/or witness finalize produced, exactly as a node would when accepting
// the extracted transaction. A test that gets this far isn't just checking
// that finalize produced *some* bytes — it's checking those bytes actually
// spend the output.
func execScript(t *testing.T, pkScript []byte, tx *wire.MsgTx, idx int,
	amt int64) {

	t.Helper()

	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, amt)
	hashCache := txscript.NewTxSigHashes(tx, fetcher)

	vm, err := txscript.NewEngine(
		pkScript, tx, idx, txscript.StandardVerifyFlags, nil,
		hashCache, amt, fetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func TestFinalizeP2PKH(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	pkHash := btcutil.Hash160(pub)

	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(pkHash).AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(&wire.TxIn{PreviousOutPoint: newOutPoint(0x01, 0)})
	prevTx.AddTxOut(&wire.TxOut{Value: 100000, PkScript: pkScript})

	spendOut := &wire.TxOut{Value: 90000, PkScript: pkScript}
	p, err := psbt.New(
		[]*wire.OutPoint{{Hash: prevTx.TxHash(), Index: 0}},
		[]*wire.TxOut{spendOut}, 2, 0,
		[]uint32{wire.MaxTxInSequenceNum},
	)
	require.NoError(t, err)

	p.Inputs[0].NonWitnessUtxo = prevTx

	sig, err := txscript.RawTxInSignature(
		p.UnsignedTx(), 0, pkScript, txscript.SigHashAll, priv,
	)
	require.NoError(t, err)

	p.Inputs[0].PartialSigs = []*psbt.PartialSig{
		{PubKey: pub, Signature: sig},
	}

	require.NoError(t, psbt.FinalizeInput(p, 0))
	require.True(t, p.IsFinalized(0))
	require.True(t, p.IsComplete())

	tx, err := psbt.Extract(p)
	require.NoError(t, err)

	execScript(t, pkScript, tx, 0, 100000)
}

func TestFinalizeP2WPKH(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	pkHash := btcutil.Hash160(pub)

	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(pkHash).Script()
	require.NoError(t, err)

	prevOut := &wire.TxOut{Value: 100000, PkScript: pkScript}

	spendOut := &wire.TxOut{Value: 90000, PkScript: pkScript}
	p, err := psbt.New(
		[]*wire.OutPoint{{Hash: newOutPoint(0x02, 0).Hash, Index: 0}},
		[]*wire.TxOut{spendOut}, 2, 0,
		[]uint32{wire.MaxTxInSequenceNum},
	)
	require.NoError(t, err)

	p.Inputs[0].WitnessUtxo = prevOut

	subScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(pkHash).AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, prevOut.Value)
	hashCache := txscript.NewTxSigHashes(p.UnsignedTx(), fetcher)

	sig, err := txscript.RawTxInWitnessSignature(
		p.UnsignedTx(), hashCache, 0, prevOut.Value, subScript,
		txscript.SigHashAll, priv,
	)
	require.NoError(t, err)

	p.Inputs[0].PartialSigs = []*psbt.PartialSig{
		{PubKey: pub, Signature: sig},
	}

	require.NoError(t, psbt.FinalizeInput(p, 0))

	tx, err := psbt.Extract(p)
	require.NoError(t, err)

	execScript(t, pkScript, tx, 0, prevOut.Value)
}

func TestFinalizeP2SHMultiSig(t *testing.T) {
	privs := make([]*btcec.PrivateKey, 3)
	pubs := make([][]byte, 3)
	for i := range privs {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		privs[i] = priv
		pubs[i] = priv.PubKey().SerializeCompressed()
	}

	redeemScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).
		AddData(pubs[0]).AddData(pubs[1]).AddData(pubs[2]).
		AddOp(txscript.OP_3).AddOp(txscript.OP_CHECKMULTISIG).Script()
	require.NoError(t, err)

	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(redeemScript)).
		AddOp(txscript.OP_EQUAL).Script()
	require.NoError(t, err)

	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(&wire.TxIn{PreviousOutPoint: newOutPoint(0x03, 0)})
	prevTx.AddTxOut(&wire.TxOut{Value: 500000, PkScript: pkScript})

	spendOut := &wire.TxOut{Value: 490000, PkScript: pkScript}
	p, err := psbt.New(
		[]*wire.OutPoint{{Hash: prevTx.TxHash(), Index: 0}},
		[]*wire.TxOut{spendOut}, 2, 0,
		[]uint32{wire.MaxTxInSequenceNum},
	)
	require.NoError(t, err)

	p.Inputs[0].NonWitnessUtxo = prevTx
	p.Inputs[0].RedeemScript = redeemScript

	for _, i := range []int{0, 2} {
		sig, err := txscript.RawTxInSignature(
			p.UnsignedTx(), 0, redeemScript, txscript.SigHashAll,
			privs[i],
		)
		require.NoError(t, err)

		p.Inputs[0].PartialSigs = append(
			p.Inputs[0].PartialSigs,
			&psbt.PartialSig{PubKey: pubs[i], Signature: sig},
		)
	}

	require.NoError(t, psbt.FinalizeInput(p, 0))

	tx, err := psbt.Extract(p)
	require.NoError(t, err)

	execScript(t, pkScript, tx, 0, 500000)
}

func TestFinalizeP2SHP2WSHMultiSig(t *testing.T) {
	privs := make([]*btcec.PrivateKey, 2)
	pubs := make([][]byte, 2)
	for i := range privs {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		privs[i] = priv
		pubs[i] = priv.PubKey().SerializeCompressed()
	}

	witnessScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).
		AddData(pubs[0]).AddData(pubs[1]).
		AddOp(txscript.OP_2).AddOp(txscript.OP_CHECKMULTISIG).Script()
	require.NoError(t, err)

	witnessScriptHash := sha256Sum(witnessScript)

	redeemScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(witnessScriptHash[:]).Script()
	require.NoError(t, err)

	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(redeemScript)).
		AddOp(txscript.OP_EQUAL).Script()
	require.NoError(t, err)

	prevOut := &wire.TxOut{Value: 700000, PkScript: pkScript}

	spendOut := &wire.TxOut{Value: 690000, PkScript: pkScript}
	p, err := psbt.New(
		[]*wire.OutPoint{{Hash: newOutPoint(0x04, 0).Hash, Index: 0}},
		[]*wire.TxOut{spendOut}, 2, 0,
		[]uint32{wire.MaxTxInSequenceNum},
	)
	require.NoError(t, err)

	p.Inputs[0].WitnessUtxo = prevOut
	p.Inputs[0].RedeemScript = redeemScript
	p.Inputs[0].WitnessScript = witnessScript

	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, prevOut.Value)
	hashCache := txscript.NewTxSigHashes(p.UnsignedTx(), fetcher)

	for i := range privs {
		sig, err := txscript.RawTxInWitnessSignature(
			p.UnsignedTx(), hashCache, 0, prevOut.Value,
			witnessScript, txscript.SigHashAll, privs[i],
		)
		require.NoError(t, err)

		p.Inputs[0].PartialSigs = append(
			p.Inputs[0].PartialSigs,
			&psbt.PartialSig{PubKey: pubs[i], Signature: sig},
		)
	}

	require.NoError(t, psbt.FinalizeInput(p, 0))

	tx, err := psbt.Extract(p)
	require.NoError(t, err)

	execScript(t, pkScript, tx, 0, prevOut.Value)
}

func TestFinalizeMissingUtxo(t *testing.T) {
	p := samplePacket(t)

	err := psbt.FinalizeInput(p, 0)
	require.ErrorIs(t, err, psbt.ErrMissingUtxo)
}
