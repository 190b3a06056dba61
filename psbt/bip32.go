// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

// Bip32Derivation encapsulates the data for the BIP32DerivationPath key-value
// field. It records, for one pubkey, the fingerprint of the root key it was
// derived from plus the full derivation path.
type Bip32Derivation struct {
	// PubKey is the serialized compressed public key this record
	// describes.
	PubKey []byte

	// MasterKeyFingerprint is the fingerprint of the root key from which
	// PubKey was derived.
	MasterKeyFingerprint uint32

	// Bip32Path is the sequence of (possibly hardened) child indices
	// leading from the root key to PubKey.
	Bip32Path []uint32
}

// checkValid returns true if the Bip32Derivation's pubkey is well-formed.
func (d *Bip32Derivation) checkValid() bool {
	return validatePubkey(d.PubKey)
}

// SerializeBIP32Derivation takes a master key fingerprint as defined in
// BIP32, along with a derivation path, and serializes them into a byte slice
// suitable for use as a PSBT BIP32DerivationPath value.
func SerializeBIP32Derivation(masterKeyFingerprint uint32,
	bip32Path []uint32) []byte {

	var path bytes.Buffer

	var fpBytes [4]byte
	binary.LittleEndian.PutUint32(fpBytes[:], masterKeyFingerprint)
	path.Write(fpBytes[:])

	for _, step := range bip32Path {
		var stepBytes [4]byte
		binary.LittleEndian.PutUint32(stepBytes[:], step)
		path.Write(stepBytes[:])
	}

	return path.Bytes()
}

// ReadBip32Derivation deserializes a BIP32DerivationPath value into a master
// key fingerprint and a derivation path. The value's length must be a
// positive multiple of 4.
func ReadBip32Derivation(path []byte) (uint32, []uint32, error) {
	if len(path) < 4 || len(path)%4 != 0 {
		return 0, nil, ErrInvalidPsbtFormat
	}

	masterKeyInt := binary.LittleEndian.Uint32(path[:4])

	var paths []uint32
	for i := 4; i < len(path); i += 4 {
		paths = append(paths, binary.LittleEndian.Uint32(path[i:i+4]))
	}

	return masterKeyInt, paths, nil
}

// validatePubkey returns true if the byte slice parses as a valid secp256k1
// public key in either the compressed or uncompressed SEC1 encoding.
func validatePubkey(pubKey []byte) bool {
	_, err := btcec.ParsePubKey(pubKey)
	return err == nil
}

// PartialSig encapsulates a (pubkey, ECDSA signature) pair as carried by the
// PartialSignature input record.
type PartialSig struct {
	// PubKey is the serialized public key the signature was produced
	// under.
	PubKey []byte

	// Signature is the DER-encoded ECDSA signature, including the
	// trailing sighash-type byte.
	Signature []byte
}

// checkValid returns true if the PartialSig's pubkey is well-formed and its
// signature carries a recognized trailing sighash byte.
func (ps *PartialSig) checkValid() bool {
	if !validatePubkey(ps.PubKey) {
		return false
	}

	if len(ps.Signature) == 0 {
		return false
	}

	switch ps.sigHashType() &^ txscript.SigHashAnyOneCanPay {
	case txscript.SigHashAll, txscript.SigHashNone, txscript.SigHashSingle:
		return true
	}

	return false
}

// sigHashType returns the sighash type the signature was produced with; it
// is the last byte of the DER signature encoding.
func (ps *PartialSig) sigHashType() txscript.SigHashType {
	if len(ps.Signature) == 0 {
		return txscript.SigHashAll
	}

	return txscript.SigHashType(ps.Signature[len(ps.Signature)-1])
}

// PartialSigSorter implements sort.Interface and sorts a slice of
// *PartialSig lexically by pubkey, which is the canonical record order BIP-
// 174 requires on the wire.
type PartialSigSorter []*PartialSig

func (s PartialSigSorter) Len() int { return len(s) }

func (s PartialSigSorter) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s PartialSigSorter) Less(i, j int) bool {
	return bytes.Compare(s[i].PubKey, s[j].PubKey) < 0
}

// Bip32Sorter implements sort.Interface and sorts a slice of
// *Bip32Derivation lexically by pubkey.
type Bip32Sorter []*Bip32Derivation

func (s Bip32Sorter) Len() int { return len(s) }

func (s Bip32Sorter) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s Bip32Sorter) Less(i, j int) bool {
	return bytes.Compare(s[i].PubKey, s[j].PubKey) < 0
}
