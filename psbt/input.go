// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// PInput encapsulates all the data that may be attached to one input of a
// PSBT.
type PInput struct {
	NonWitnessUtxo     *wire.MsgTx
	WitnessUtxo        *wire.TxOut
	PartialSigs        []*PartialSig
	SighashType        txscript.SigHashType
	RedeemScript       []byte
	WitnessScript      []byte
	Bip32Derivation    []*Bip32Derivation
	FinalScriptSig     []byte
	FinalScriptWitness []byte

	// ProofOfReservesCommitment is preserved verbatim across parse,
	// combine, and the serialization of a non-finalized input, but is not
	// otherwise interpreted by this package. A finalized input's
	// serialization omits it.
	ProofOfReservesCommitment []byte

	Unknowns []*Unknown
}

// IsFinalized reports whether the input carries a finalized scriptSig or
// scriptWitness.
func (pi *PInput) IsFinalized() bool {
	return pi.FinalScriptSig != nil || pi.FinalScriptWitness != nil
}

// IsSane returns true only if there are no conflicting values in the PInput:
// witness and non-witness UTXO records may not coexist. No other field
// combination is checked.
func (pi *PInput) IsSane() bool {
	if pi.NonWitnessUtxo != nil && pi.WitnessUtxo != nil {
		return false
	}

	return true
}

// deserialize reads a PInput from r.
func (pi *PInput) deserialize(r io.Reader) error {
	for {
		keyint, keydata, err := getKey(r)
		if err != nil {
			return err
		}
		if keyint == -1 {
			break
		}

		value, err := wire.ReadVarBytes(
			r, 0, MaxPsbtValueLength, "PSBT value",
		)
		if err != nil {
			return err
		}

		switch InputType(keyint) {
		case NonWitnessUtxoType:
			if pi.NonWitnessUtxo != nil {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}

			tx := wire.NewMsgTx(2)
			if err := tx.Deserialize(bytes.NewReader(value)); err != nil {
				return err
			}
			pi.NonWitnessUtxo = tx

		case WitnessUtxoType:
			if pi.WitnessUtxo != nil {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}

			txout, err := readTxOut(value)
			if err != nil {
				return err
			}
			pi.WitnessUtxo = txout

		case PartialSigType:
			newSig := PartialSig{PubKey: keydata, Signature: value}
			if !newSig.checkValid() {
				return ErrInvalidPsbtFormat
			}

			for _, x := range pi.PartialSigs {
				if bytes.Equal(x.PubKey, newSig.PubKey) {
					return ErrDuplicateKey
				}
			}

			pi.PartialSigs = append(pi.PartialSigs, &newSig)

		case SighashType:
			if pi.SighashType != 0 {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}
			if len(value) != 4 {
				return ErrInvalidPsbtFormat
			}

			pi.SighashType = txscript.SigHashType(
				binary.LittleEndian.Uint32(value),
			)

		case RedeemScriptInputType:
			if pi.RedeemScript != nil {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}
			pi.RedeemScript = value

		case WitnessScriptInputType:
			if pi.WitnessScript != nil {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}
			pi.WitnessScript = value

		case Bip32DerivationInputType:
			if !validatePubkey(keydata) {
				return ErrInvalidPsbtFormat
			}

			master, path, err := ReadBip32Derivation(value)
			if err != nil {
				return err
			}

			for _, x := range pi.Bip32Derivation {
				if bytes.Equal(x.PubKey, keydata) {
					return ErrDuplicateKey
				}
			}

			pi.Bip32Derivation = append(
				pi.Bip32Derivation, &Bip32Derivation{
					PubKey:               keydata,
					MasterKeyFingerprint: master,
					Bip32Path:            path,
				},
			)

		case FinalScriptSigType:
			if pi.FinalScriptSig != nil {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}
			pi.FinalScriptSig = value

		case FinalScriptWitnessType:
			if pi.FinalScriptWitness != nil {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}
			pi.FinalScriptWitness = value

		case ProofOfReservesCommitmentType:
			if pi.ProofOfReservesCommitment != nil {
				return ErrDuplicateKey
			}
			pi.ProofOfReservesCommitment = value

		default:
			keyintanddata := append([]byte{byte(keyint)}, keydata...)
			newUnknown := &Unknown{Key: keyintanddata, Value: value}

			for _, x := range pi.Unknowns {
				if bytes.Equal(x.Key, newUnknown.Key) {
					return ErrDuplicateKey
				}
			}

			pi.Unknowns = append(pi.Unknowns, newUnknown)
		}
	}

	if !pi.IsSane() {
		return ErrConflictingUtxo
	}

	return nil
}

// records returns the input's fields as a flat, scope-local record list.
// When the input is finalized, only the UTXO record(s), the finalized
// record(s), and any unknowns are emitted — per spec.md §4.5, finalize
// minimality.
func (pi *PInput) records() ([]Record, error) {
	var records []Record

	if pi.NonWitnessUtxo != nil {
		var buf bytes.Buffer
		if err := pi.NonWitnessUtxo.Serialize(&buf); err != nil {
			return nil, err
		}
		records = append(records, Record{
			KeyType: uint8(NonWitnessUtxoType),
			Value:   buf.Bytes(),
		})
	}

	if pi.WitnessUtxo != nil {
		var buf bytes.Buffer
		if err := wire.WriteTxOut(&buf, 0, 0, pi.WitnessUtxo); err != nil {
			return nil, err
		}
		records = append(records, Record{
			KeyType: uint8(WitnessUtxoType),
			Value:   buf.Bytes(),
		})
	}

	if pi.IsFinalized() {
		if pi.FinalScriptSig != nil {
			records = append(records, Record{
				KeyType: uint8(FinalScriptSigType),
				Value:   pi.FinalScriptSig,
			})
		}
		if pi.FinalScriptWitness != nil {
			records = append(records, Record{
				KeyType: uint8(FinalScriptWitnessType),
				Value:   pi.FinalScriptWitness,
			})
		}

		for _, u := range pi.Unknowns {
			records = append(records, Record{
				KeyType: u.Key[0],
				KeyData: u.Key[1:],
				Value:   u.Value,
			})
		}

		return records, nil
	}

	sigs := append([]*PartialSig(nil), pi.PartialSigs...)
	sort.Sort(PartialSigSorter(sigs))
	for _, ps := range sigs {
		records = append(records, Record{
			KeyType: uint8(PartialSigType),
			KeyData: ps.PubKey,
			Value:   ps.Signature,
		})
	}

	if pi.SighashType != 0 {
		var shb [4]byte
		binary.LittleEndian.PutUint32(shb[:], uint32(pi.SighashType))
		records = append(records, Record{
			KeyType: uint8(SighashType),
			Value:   shb[:],
		})
	}

	if pi.RedeemScript != nil {
		records = append(records, Record{
			KeyType: uint8(RedeemScriptInputType),
			Value:   pi.RedeemScript,
		})
	}

	if pi.WitnessScript != nil {
		records = append(records, Record{
			KeyType: uint8(WitnessScriptInputType),
			Value:   pi.WitnessScript,
		})
	}

	derivs := append([]*Bip32Derivation(nil), pi.Bip32Derivation...)
	sort.Sort(Bip32Sorter(derivs))
	for _, d := range derivs {
		records = append(records, Record{
			KeyType: uint8(Bip32DerivationInputType),
			KeyData: d.PubKey,
			Value: SerializeBIP32Derivation(
				d.MasterKeyFingerprint, d.Bip32Path,
			),
		})
	}

	if pi.ProofOfReservesCommitment != nil {
		records = append(records, Record{
			KeyType: uint8(ProofOfReservesCommitmentType),
			Value:   pi.ProofOfReservesCommitment,
		})
	}

	for _, u := range pi.Unknowns {
		records = append(records, Record{
			KeyType: u.Key[0],
			KeyData: u.Key[1:],
			Value:   u.Value,
		})
	}

	return records, nil
}

// serialize writes the canonical (key-sorted) input map to w.
func (pi *PInput) serialize(w *bytes.Buffer) error {
	if !pi.IsSane() {
		return ErrInvalidPsbtInput
	}

	records, err := pi.records()
	if err != nil {
		return err
	}

	return serializeMap(w, records)
}

// combine merges b's records into pi, keeping pi's record on any full-key
// collision. Used positionally by Combine.
func (pi *PInput) combine(b *PInput) *PInput {
	out := &PInput{
		NonWitnessUtxo:            pi.NonWitnessUtxo,
		WitnessUtxo:               pi.WitnessUtxo,
		SighashType:               pi.SighashType,
		RedeemScript:              pi.RedeemScript,
		WitnessScript:             pi.WitnessScript,
		FinalScriptSig:            pi.FinalScriptSig,
		FinalScriptWitness:        pi.FinalScriptWitness,
		ProofOfReservesCommitment: pi.ProofOfReservesCommitment,
	}

	if out.NonWitnessUtxo == nil {
		out.NonWitnessUtxo = b.NonWitnessUtxo
	}
	if out.WitnessUtxo == nil {
		out.WitnessUtxo = b.WitnessUtxo
	}
	if out.SighashType == 0 {
		out.SighashType = b.SighashType
	}
	if out.RedeemScript == nil {
		out.RedeemScript = b.RedeemScript
	}
	if out.WitnessScript == nil {
		out.WitnessScript = b.WitnessScript
	}
	if out.FinalScriptSig == nil {
		out.FinalScriptSig = b.FinalScriptSig
	}
	if out.FinalScriptWitness == nil {
		out.FinalScriptWitness = b.FinalScriptWitness
	}
	if out.ProofOfReservesCommitment == nil {
		out.ProofOfReservesCommitment = b.ProofOfReservesCommitment
	}

	sigsByKey := make(map[string]*PartialSig)
	for _, s := range append(append([]*PartialSig{}, pi.PartialSigs...), b.PartialSigs...) {
		k := string(s.PubKey)
		if _, ok := sigsByKey[k]; !ok {
			sigsByKey[k] = s
		}
	}
	for _, s := range sigsByKey {
		out.PartialSigs = append(out.PartialSigs, s)
	}

	derivByKey := make(map[string]*Bip32Derivation)
	for _, d := range append(append([]*Bip32Derivation{}, pi.Bip32Derivation...), b.Bip32Derivation...) {
		k := string(d.PubKey)
		if _, ok := derivByKey[k]; !ok {
			derivByKey[k] = d
		}
	}
	for _, d := range derivByKey {
		out.Bip32Derivation = append(out.Bip32Derivation, d)
	}

	unknownByKey := make(map[string]*Unknown)
	var unknownOrder []string
	for _, u := range append(append([]*Unknown{}, pi.Unknowns...), b.Unknowns...) {
		k := string(u.Key)
		if _, ok := unknownByKey[k]; !ok {
			unknownByKey[k] = u
			unknownOrder = append(unknownOrder, k)
		}
	}
	for _, k := range unknownOrder {
		out.Unknowns = append(out.Unknowns, unknownByKey[k])
	}

	return out
}
