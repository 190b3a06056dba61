// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// XPub is a global record describing one extended public key that may take
// part in signing this transaction.
type XPub struct {
	// ExtendedKey is the raw serialized extended public key (the
	// standard 78-byte xpub/ypub/zpub encoding).
	ExtendedKey []byte

	// MasterKeyFingerprint is the fingerprint of the root key ExtendedKey
	// was derived from.
	MasterKeyFingerprint uint32

	// Bip32Path is the derivation path from the root key to ExtendedKey.
	Bip32Path []uint32
}

// Global is the PSBT global map: exactly one unsigned transaction, zero or
// more extended pubkeys, an optional version, and any unrecognized records.
type Global struct {
	// UnsignedTx is the mandatory unsigned transaction record. Every
	// input carries an empty SignatureScript and Witness.
	UnsignedTx *wire.MsgTx

	// XPubs lists the extended-pubkey records present in the map.
	XPubs []XPub

	// Version pins the PSBT version; nil means the default of 0.
	Version *uint32

	// Unknowns holds any global records whose key id this package does
	// not recognize.
	Unknowns []Unknown
}

// validateUnsignedTx reports whether tx carries no signatures, as BIP-174
// requires of the global UnsignedTx record.
func validateUnsignedTx(tx *wire.MsgTx) bool {
	for _, txIn := range tx.TxIn {
		if len(txIn.SignatureScript) != 0 || len(txIn.Witness) != 0 {
			return false
		}
	}

	return true
}

// parseGlobal reads the global map from r.
func parseGlobal(r io.Reader) (*Global, error) {
	keyint, keydata, err := getKey(r)
	if err != nil {
		return nil, err
	}
	if keyint != int(UnsignedTxType) || keydata != nil {
		return nil, ErrInvalidPsbtFormat
	}

	value, err := wire.ReadVarBytes(r, 0, MaxPsbtValueLength, "PSBT value")
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	if err := tx.Deserialize(bytes.NewReader(value)); err != nil {
		return nil, err
	}
	if !validateUnsignedTx(tx) {
		return nil, ErrInvalidRawTxSigned
	}

	g := &Global{UnsignedTx: tx}

	for {
		keyint, keydata, err := getKey(r)
		if err != nil {
			return nil, err
		}
		if keyint == -1 {
			break
		}

		value, err := wire.ReadVarBytes(
			r, 0, MaxPsbtValueLength, "PSBT value",
		)
		if err != nil {
			return nil, err
		}

		switch GlobalType(keyint) {
		case XPubType:
			fingerprint, path, err := ReadBip32Derivation(value)
			if err != nil {
				return nil, err
			}

			for _, x := range g.XPubs {
				if bytes.Equal(x.ExtendedKey, keydata) {
					return nil, ErrDuplicateKey
				}
			}

			g.XPubs = append(g.XPubs, XPub{
				ExtendedKey:          keydata,
				MasterKeyFingerprint: fingerprint,
				Bip32Path:            path,
			})

		case VersionType:
			if g.Version != nil {
				return nil, ErrDuplicateKey
			}
			if keydata != nil {
				return nil, ErrInvalidKeydata
			}
			if len(value) != 4 {
				return nil, ErrInvalidPsbtFormat
			}

			v := binary.LittleEndian.Uint32(value)
			g.Version = &v

		default:
			keyintanddata := append([]byte{byte(keyint)}, keydata...)
			newUnknown := Unknown{Key: keyintanddata, Value: value}

			for _, u := range g.Unknowns {
				if bytes.Equal(u.Key, newUnknown.Key) {
					return nil, ErrDuplicateKey
				}
			}

			g.Unknowns = append(g.Unknowns, newUnknown)
		}
	}

	return g, nil
}

// records returns the global map's records in scope-local (unsorted) order;
// the caller sorts before emission.
func (g *Global) records() ([]Record, error) {
	var buf bytes.Buffer
	if err := g.UnsignedTx.Serialize(&buf); err != nil {
		return nil, err
	}

	records := []Record{{
		KeyType: uint8(UnsignedTxType),
		Value:   buf.Bytes(),
	}}

	for _, x := range g.XPubs {
		records = append(records, Record{
			KeyType: uint8(XPubType),
			KeyData: x.ExtendedKey,
			Value: SerializeBIP32Derivation(
				x.MasterKeyFingerprint, x.Bip32Path,
			),
		})
	}

	if g.Version != nil {
		var vb [4]byte
		binary.LittleEndian.PutUint32(vb[:], *g.Version)
		records = append(records, Record{
			KeyType: uint8(VersionType),
			Value:   vb[:],
		})
	}

	for _, u := range g.Unknowns {
		records = append(records, Record{
			KeyType: u.Key[0],
			KeyData: u.Key[1:],
			Value:   u.Value,
		})
	}

	return records, nil
}

// serialize writes the canonical (key-sorted) global map to w.
func (g *Global) serialize(w *bytes.Buffer) error {
	records, err := g.records()
	if err != nil {
		return err
	}

	return serializeMap(w, records)
}
