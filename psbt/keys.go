// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// psbtMagicLength is the length of the magic bytes used to signal the start
// of a serialized PSBT packet.
const psbtMagicLength = 5

// psbtMagic is the fixed prefix every serialized PSBT begins with: the ASCII
// string "psbt" followed by the 0xff separator byte.
var psbtMagic = [psbtMagicLength]byte{0x70, 0x73, 0x62, 0x74, 0xff}

// base64Magic is the base64 encoding of psbtMagic, used to sniff the text
// form of a PSBT without a full decode attempt.
const base64Magic = "cHNidP8"

// MaxPsbtValueLength is the largest value a single PSBT key-value record may
// carry. It comfortably bounds the largest legal NonWitnessUtxo (a full
// serialized transaction) without allowing a malicious length prefix to
// force an unbounded allocation.
const MaxPsbtValueLength = 4000000

// GlobalType enumerates the recognized key ids of the global scope's key-id
// registry (BIP-174 "Global Types").
type GlobalType uint8

const (
	// UnsignedTxType is the mandatory global record carrying the unsigned
	// transaction.
	UnsignedTxType GlobalType = 0x00

	// XPubType is a global record describing an extended public key
	// involved in signing, keyed by the serialized xpub.
	XPubType GlobalType = 0x01

	// VersionType is an optional global record pinning the PSBT version;
	// its absence means version 0.
	VersionType GlobalType = 0xfb
)

// InputType enumerates the recognized key ids of the input scope's key-id
// registry (BIP-174 "Per-Input Types").
type InputType uint8

const (
	NonWitnessUtxoType            InputType = 0x00
	WitnessUtxoType               InputType = 0x01
	PartialSigType                InputType = 0x02
	SighashType                   InputType = 0x03
	RedeemScriptInputType         InputType = 0x04
	WitnessScriptInputType        InputType = 0x05
	Bip32DerivationInputType      InputType = 0x06
	FinalScriptSigType            InputType = 0x07
	FinalScriptWitnessType        InputType = 0x08
	ProofOfReservesCommitmentType InputType = 0x09
)

// OutputType enumerates the recognized key ids of the output scope's key-id
// registry (BIP-174 "Per-Output Types").
type OutputType uint8

const (
	RedeemScriptOutputType    OutputType = 0x00
	WitnessScriptOutputType   OutputType = 0x01
	Bip32DerivationOutputType OutputType = 0x02
)

// Unknown encapsulates a key-value pair whose key id is not recognized by
// the scope's registry. Unknown records are preserved verbatim: they
// round-trip through parse, serialize, and combine untouched.
type Unknown struct {
	// Key is the full key (the leading id byte plus any key data).
	Key []byte

	// Value is the raw value bytes.
	Value []byte
}

// getKey reads one key-length-prefixed key from r. A zero-length key (the
// map terminator) is reported by returning keyint -1 with a nil error; a
// stream that ends before a full key (and so before the map's 0x00
// terminator) is reported as ErrTruncatedInput; any other read failure is
// returned as-is.
func getKey(r io.Reader) (int, []byte, error) {
	key, err := wire.ReadVarBytes(r, 0, MaxPsbtValueLength, "PSBT key")
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return 0, nil, ErrTruncatedInput
	}
	if err != nil {
		return 0, nil, err
	}

	if len(key) == 0 {
		return -1, nil, nil
	}

	keyint := int(key[0])
	if len(key) == 1 {
		return keyint, nil, nil
	}

	return keyint, key[1:], nil
}

// serializeKVpair writes a single key-value record to w as
// <compact keylen><key><compact valuelen><value>.
func serializeKVpair(w io.Writer, key []byte, value []byte) error {
	if err := wire.WriteVarBytes(w, 0, key); err != nil {
		return err
	}

	return wire.WriteVarBytes(w, 0, value)
}

// serializeKVPairWithType is a convenience wrapper around serializeKVpair
// that builds the key from a one-byte type id plus optional key data.
func serializeKVPairWithType(w io.Writer, kt uint8, keydata []byte,
	value []byte) error {

	key := append([]byte{kt}, keydata...)

	return serializeKVpair(w, key, value)
}

// readTxOut deserializes the wire.TxOut encoding used by the WitnessUtxo
// record (amount + compact-size-prefixed pkScript, no version/locktime
// framing).
func readTxOut(value []byte) (*wire.TxOut, error) {
	var txout wire.TxOut

	r := bytes.NewReader(value)
	if err := wire.ReadTxOut(r, 0, 0, &txout); err != nil {
		return nil, err
	}

	return &txout, nil
}
