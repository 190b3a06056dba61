// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// maxFinalizeDepth bounds the recursion FinalizeInput will perform through
// nested Conditional/CLTV/CSV script templates before giving up with
// ErrMaxDepthExceeded. BIP-174 doesn't mandate a number; ten is far beyond
// any template this package's classifier recognizes, and exists only to
// turn a malformed or adversarial script into an error instead of a stack
// overflow.
const maxFinalizeDepth = 10

// FinalizeAll runs FinalizeInput over every input of p, in order. It stops
// and returns the first error encountered.
func FinalizeAll(p *Packet) error {
	for i := range p.Inputs {
		if err := FinalizeInput(p, i); err != nil {
			return err
		}
	}

	return nil
}

// FinalizeInput resolves input i's scriptSig and/or witness from whatever
// partial signatures and scripts its map currently holds, and sets
// FinalScriptSig/FinalScriptWitness accordingly. It is idempotent: an
// already-finalized input is left untouched. See spec.md §4.5 for the full
// per-template dispatch this implements.
func FinalizeInput(p *Packet, i int) error {
	pi := &p.Inputs[i]
	if pi.IsFinalized() {
		log.Debugf("Input %d already finalized, skipping", i)
		return nil
	}

	pkScript, err := utxoScript(p, i)
	if err != nil {
		return err
	}

	top := Classify(pkScript)

	switch top.Class {
	case PayToWitnessPubKeyHash:
		stack, err := resolveP2WPKH(pi, top)
		if err != nil {
			return err
		}
		pi.FinalScriptWitness = serializeWitness(stack)

	case PayToWitnessScriptHash:
		stack, err := resolveWitnessScriptHash(pi, top)
		if err != nil {
			return err
		}
		pi.FinalScriptWitness = serializeWitness(stack)

	case PayToScriptHash:
		sigScript, witness, err := resolveScriptHash(pi, top)
		if err != nil {
			return err
		}
		pi.FinalScriptSig = sigScript
		if witness != nil {
			pi.FinalScriptWitness = serializeWitness(witness)
		}

	case NonStandardScript, UnassignedWitnessScript, WitnessCommitmentScript:
		return ErrUnsupportedScriptType

	default:
		items, err := resolveScript(pi, top, 1)
		if err != nil {
			return err
		}
		pi.FinalScriptSig = scriptFromItems(items)
	}

	log.Debugf("Finalized input %d as script class %v", i, top.Class)

	return nil
}

// utxoScript returns the script-pubkey input i spends, sourced from its
// WitnessUtxo record if present, else by looking up the referenced output
// index in its NonWitnessUtxo.
func utxoScript(p *Packet, i int) ([]byte, error) {
	pi := &p.Inputs[i]

	if pi.WitnessUtxo != nil {
		return pi.WitnessUtxo.PkScript, nil
	}

	if pi.NonWitnessUtxo != nil {
		vout := p.UnsignedTx().TxIn[i].PreviousOutPoint.Index
		if int(vout) >= len(pi.NonWitnessUtxo.TxOut) {
			return nil, ErrBadIndex
		}

		return pi.NonWitnessUtxo.TxOut[vout].PkScript, nil
	}

	return nil, ErrMissingUtxo
}

// resolveP2WPKH builds the two-item witness stack (signature, pubkey) for a
// pay-to-witness-pubkey-hash template.
func resolveP2WPKH(pi *PInput, tmpl Template) ([][]byte, error) {
	pub, sig := findSigByHash(pi, tmpl.Hash)
	if sig == nil {
		return nil, ErrMissingSignature
	}

	return [][]byte{sig, pub}, nil
}

// resolveWitnessScriptHash verifies the input's WitnessScript hashes to the
// P2WSH program and resolves the nested template into a full witness stack,
// with the witness script itself as the final stack item.
func resolveWitnessScriptHash(pi *PInput, tmpl Template) ([][]byte, error) {
	if pi.WitnessScript == nil {
		return nil, ErrMissingWitnessScript
	}

	h := sha256.Sum256(pi.WitnessScript)
	if !bytes.Equal(h[:], tmpl.Hash) {
		return nil, ErrMissingWitnessScript
	}

	inner := Classify(pi.WitnessScript)

	items, err := resolveScript(pi, inner, 1)
	if err != nil {
		return nil, err
	}

	return append(items, pi.WitnessScript), nil
}

// resolveScriptHash verifies the input's RedeemScript hashes to the P2SH
// program and resolves it. A redeem script of P2WPKH or P2WSH shape
// (BIP-141 nested segwit) produces a witness plus a scriptSig holding only
// the pushed redeem script; any other shape resolves entirely into the
// scriptSig.
func resolveScriptHash(pi *PInput, tmpl Template) (sigScript []byte,
	witness [][]byte, err error) {

	if pi.RedeemScript == nil {
		return nil, nil, ErrMissingRedeemScript
	}

	if !bytes.Equal(btcutil.Hash160(pi.RedeemScript), tmpl.Hash) {
		return nil, nil, ErrMissingRedeemScript
	}

	inner := Classify(pi.RedeemScript)

	switch inner.Class {
	case PayToWitnessPubKeyHash:
		stack, err := resolveP2WPKH(pi, inner)
		if err != nil {
			return nil, nil, err
		}

		return scriptFromItems([][]byte{pi.RedeemScript}), stack, nil

	case PayToWitnessScriptHash:
		stack, err := resolveWitnessScriptHash(pi, inner)
		if err != nil {
			return nil, nil, err
		}

		return scriptFromItems([][]byte{pi.RedeemScript}), stack, nil

	default:
		items, err := resolveScript(pi, inner, 1)
		if err != nil {
			return nil, nil, err
		}

		items = append(items, pi.RedeemScript)

		return scriptFromItems(items), nil, nil
	}
}

// resolveScript produces the ordered data pushes that satisfy tmpl, for the
// templates that can appear as a script-pubkey's direct contents or nested
// inside a P2SH/P2WSH wrapper: PayToPubKey, PayToPubKeyHash, MultiSigScript,
// CLTVScript, CSVScript, PubKeyWithTimeoutScript, ConditionalScript, and
// EmptyScript.
func resolveScript(pi *PInput, tmpl Template, depth int) ([][]byte, error) {
	if depth > maxFinalizeDepth {
		return nil, ErrMaxDepthExceeded
	}

	switch tmpl.Class {
	case EmptyScript:
		return nil, nil

	case PayToPubKey:
		sig := findSig(pi, tmpl.PubKey)
		if sig == nil {
			return nil, ErrMissingSignature
		}

		return [][]byte{sig}, nil

	case PayToPubKeyHash:
		pub, sig := findSigByHash(pi, tmpl.Hash)
		if sig == nil {
			return nil, ErrMissingSignature
		}

		return [][]byte{sig, pub}, nil

	case MultiSigScript:
		sigs := make([][]byte, 0, tmpl.M)
		for _, pub := range tmpl.PubKeys {
			if len(sigs) == tmpl.M {
				break
			}
			if sig := findSig(pi, pub); sig != nil {
				sigs = append(sigs, sig)
			}
		}
		if len(sigs) < tmpl.M {
			return nil, ErrMissingSignature
		}

		// The extra leading element works around the off-by-one bug
		// in OP_CHECKMULTISIG's implementation, which pops one more
		// stack item than it consumes.
		items := make([][]byte, 0, len(sigs)+1)
		items = append(items, nil)
		items = append(items, sigs...)

		return items, nil

	case CLTVScript, CSVScript:
		return resolveScript(pi, Classify(tmpl.Nested), depth+1)

	case PubKeyWithTimeoutScript:
		if sig := findSig(pi, tmpl.PubKeyBefore); sig != nil {
			return [][]byte{sig, {1}}, nil
		}
		if sig := findSig(pi, tmpl.PubKeyAfter); sig != nil {
			return [][]byte{sig, nil}, nil
		}

		return nil, ErrUnsatisfiableBranch

	case ConditionalScript:
		if items, err := resolveScript(
			pi, Classify(tmpl.TrueBranch), depth+1,
		); err == nil {
			return append(items, []byte{1}), nil
		}

		items, err := resolveScript(pi, Classify(tmpl.FalseBranch), depth+1)
		if err != nil {
			return nil, ErrUnsatisfiableBranch
		}

		return append(items, nil), nil

	default:
		return nil, ErrUnsupportedScriptType
	}
}

// findSig returns the signature bytes of the PartialSig recorded for pubKey,
// or nil if none is present.
func findSig(pi *PInput, pubKey []byte) []byte {
	for _, ps := range pi.PartialSigs {
		if bytes.Equal(ps.PubKey, pubKey) {
			return ps.Signature
		}
	}

	return nil
}

// findSigByHash returns the pubkey and signature bytes of the PartialSig
// whose pubkey hashes (via Hash160) to hash, or (nil, nil) if none matches.
func findSigByHash(pi *PInput, hash []byte) (pubKey, sig []byte) {
	for _, ps := range pi.PartialSigs {
		if bytes.Equal(btcutil.Hash160(ps.PubKey), hash) {
			return ps.PubKey, ps.Signature
		}
	}

	return nil, nil
}

// scriptFromItems builds a plain data-push scriptSig out of an ordered list
// of stack items. A nil item is encoded as OP_0.
func scriptFromItems(items [][]byte) []byte {
	builder := txscript.NewScriptBuilder()
	for _, item := range items {
		if item == nil {
			builder.AddOp(txscript.OP_0)
			continue
		}
		builder.AddData(item)
	}

	script, _ := builder.Script()

	return script
}

// serializeWitness encodes an ordered list of stack items into the
// wire.TxWitness representation FinalScriptWitness is stored as: a
// compact-size count followed by each item as a compact-size-prefixed
// blob. A nil item is encoded as an empty push.
func serializeWitness(items [][]byte) []byte {
	witness := make(wire.TxWitness, len(items))
	for i, item := range items {
		if item == nil {
			witness[i] = []byte{}
		} else {
			witness[i] = item
		}
	}

	var buf bytes.Buffer
	wire.WriteVarInt(&buf, 0, uint64(len(witness)))
	for _, item := range witness {
		wire.WriteVarBytes(&buf, 0, item)
	}

	return buf.Bytes()
}
