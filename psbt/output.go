// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"io"
	"sort"

	"github.com/btcsuite/btcd/wire"
)

// POutput encapsulates the data that may be attached to one output of a
// PSBT: the redeem/witness script it pays to (if any) and any BIP32
// derivation paths for keys involved in that script.
type POutput struct {
	RedeemScript    []byte
	WitnessScript   []byte
	Bip32Derivation []*Bip32Derivation
	Unknowns        []*Unknown
}

// deserialize reads a POutput from r.
func (po *POutput) deserialize(r io.Reader) error {
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

		switch OutputType(keyint) {
		case RedeemScriptOutputType:
			if po.RedeemScript != nil {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}
			po.RedeemScript = value

		case WitnessScriptOutputType:
			if po.WitnessScript != nil {
				return ErrDuplicateKey
			}
			if keydata != nil {
				return ErrInvalidKeydata
			}
			po.WitnessScript = value

		case Bip32DerivationOutputType:
			if !validatePubkey(keydata) {
				return ErrInvalidPsbtFormat
			}

			master, path, err := ReadBip32Derivation(value)
			if err != nil {
				return err
			}

			for _, x := range po.Bip32Derivation {
				if bytes.Equal(x.PubKey, keydata) {
					return ErrDuplicateKey
				}
			}

			po.Bip32Derivation = append(
				po.Bip32Derivation, &Bip32Derivation{
					PubKey:               keydata,
					MasterKeyFingerprint: master,
					Bip32Path:            path,
				},
			)

		default:
			keyintanddata := append([]byte{byte(keyint)}, keydata...)
			newUnknown := &Unknown{Key: keyintanddata, Value: value}

			for _, x := range po.Unknowns {
				if bytes.Equal(x.Key, newUnknown.Key) {
					return ErrDuplicateKey
				}
			}

			po.Unknowns = append(po.Unknowns, newUnknown)
		}
	}

	return nil
}

func (po *POutput) records() []Record {
	var records []Record

	if po.RedeemScript != nil {
		records = append(records, Record{
			KeyType: uint8(RedeemScriptOutputType),
			Value:   po.RedeemScript,
		})
	}

	if po.WitnessScript != nil {
		records = append(records, Record{
			KeyType: uint8(WitnessScriptOutputType),
			Value:   po.WitnessScript,
		})
	}

	derivs := append([]*Bip32Derivation(nil), po.Bip32Derivation...)
	sort.Sort(Bip32Sorter(derivs))
	for _, d := range derivs {
		records = append(records, Record{
			KeyType: uint8(Bip32DerivationOutputType),
			KeyData: d.PubKey,
			Value: SerializeBIP32Derivation(
				d.MasterKeyFingerprint, d.Bip32Path,
			),
		})
	}

	for _, u := range po.Unknowns {
		records = append(records, Record{
			KeyType: u.Key[0],
			KeyData: u.Key[1:],
			Value:   u.Value,
		})
	}

	return records
}

// serialize writes the canonical (key-sorted) output map to w.
func (po *POutput) serialize(w *bytes.Buffer) error {
	return serializeMap(w, po.records())
}

// combine merges b's records into po, keeping po's record on any full-key
// collision.
func (po *POutput) combine(b *POutput) *POutput {
	out := &POutput{
		RedeemScript:  po.RedeemScript,
		WitnessScript: po.WitnessScript,
	}
	if out.RedeemScript == nil {
		out.RedeemScript = b.RedeemScript
	}
	if out.WitnessScript == nil {
		out.WitnessScript = b.WitnessScript
	}

	derivByKey := make(map[string]*Bip32Derivation)
	for _, d := range append(append([]*Bip32Derivation{}, po.Bip32Derivation...), b.Bip32Derivation...) {
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
	for _, u := range append(append([]*Unknown{}, po.Unknowns...), b.Unknowns...) {
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
