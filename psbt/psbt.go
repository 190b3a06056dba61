// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package psbt is an implementation of the data plane of a Partially Signed
// Bitcoin Transaction (PSBT) engine, as defined in BIP-174:
// https://github.com/bitcoin/bips/blob/master/bip-0174.mediawiki
//
// It covers the typed key-value record model and its per-scope map
// containers, bit-exact (de)serialization, the multi-party Combine
// operation, the per-input Finalize algorithm, and Extract, which
// materializes a fully-signed transaction from a finalized packet. Signer
// key material, HD derivation, mempool policy, and UTXO database lookup are
// all left outside this package, which defines no interfaces for them and
// never touches a private key.
package psbt

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"

	"github.com/btcsuite/btcd/wire"
)

// Packet is the PSBT envelope: one global map, one input map per unsigned-tx
// input, and one output map per unsigned-tx output.
type Packet struct {
	// Global is the packet's global map.
	Global *Global

	// Inputs holds one entry per input of Global.UnsignedTx, in the same
	// order.
	Inputs []PInput

	// Outputs holds one entry per output of Global.UnsignedTx, in the
	// same order.
	Outputs []POutput
}

// UnsignedTx is a convenience accessor for Global.UnsignedTx.
func (p *Packet) UnsignedTx() *wire.MsgTx {
	return p.Global.UnsignedTx
}

// NewFromUnsignedTx builds a Packet around an already-constructed unsigned
// transaction, with empty input and output maps. The transaction must not
// carry any signatures.
func NewFromUnsignedTx(tx *wire.MsgTx) (*Packet, error) {
	if !validateUnsignedTx(tx) {
		return nil, ErrInvalidRawTxSigned
	}

	return &Packet{
		Global:  &Global{UnsignedTx: tx},
		Inputs:  make([]PInput, len(tx.TxIn)),
		Outputs: make([]POutput, len(tx.TxOut)),
	}, nil
}

// ParseBytes parses a binary-serialized PSBT.
func ParseBytes(raw []byte) (*Packet, error) {
	r := bytes.NewReader(raw)

	var magic [psbtMagicLength]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, ErrTruncatedInput
	}
	if magic != psbtMagic {
		return nil, ErrInvalidMagicBytes
	}

	global, err := parseGlobal(r)
	if err != nil {
		return nil, err
	}

	numIn := len(global.UnsignedTx.TxIn)
	numOut := len(global.UnsignedTx.TxOut)

	inputs := make([]PInput, numIn)
	for i := range inputs {
		if err := inputs[i].deserialize(r); err != nil {
			return nil, err
		}
	}

	outputs := make([]POutput, numOut)
	for i := range outputs {
		if err := outputs[i].deserialize(r); err != nil {
			return nil, err
		}
	}

	if _, err := r.ReadByte(); err != io.EOF {
		return nil, ErrStructuralMismatch
	}

	p := &Packet{Global: global, Inputs: inputs, Outputs: outputs}
	if err := p.SanityCheck(); err != nil {
		return nil, err
	}

	return p, nil
}

// ParseHex parses a hex-encoded PSBT.
func ParseHex(s string) (*Packet, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}

	return ParseBytes(raw)
}

// ParseBase64 parses a base64-encoded PSBT.
func ParseBase64(s string) (*Packet, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}

	return ParseBytes(raw)
}

// Parse accepts either the hex or the base64 text form of a PSBT and
// sniffs which one it was given by its leading bytes, per spec.md §6.
func Parse(s string) (*Packet, error) {
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, hex.EncodeToString(psbtMagic[:])):
		return ParseHex(s)
	case strings.HasPrefix(s, base64Magic):
		return ParseBase64(s)
	default:
		return nil, ErrInvalidMagicBytes
	}
}

// Bytes serializes the packet to its canonical binary form.
func (p *Packet) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(psbtMagic[:])

	if err := p.Global.serialize(&buf); err != nil {
		return nil, err
	}

	for i := range p.Inputs {
		if err := p.Inputs[i].serialize(&buf); err != nil {
			return nil, err
		}
	}

	for i := range p.Outputs {
		if err := p.Outputs[i].serialize(&buf); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Hex serializes the packet to its hex text form.
func (p *Packet) Hex() (string, error) {
	raw, err := p.Bytes()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(raw), nil
}

// Base64 serializes the packet to its base64 text form.
func (p *Packet) Base64() (string, error) {
	raw, err := p.Bytes()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// IsFinalized reports whether input i carries a finalized scriptSig or
// scriptWitness.
func (p *Packet) IsFinalized(i int) bool {
	return p.Inputs[i].IsFinalized()
}

// IsComplete reports whether every input of the packet is finalized, i.e.
// whether Extract can succeed.
func (p *Packet) IsComplete() bool {
	for i := range p.Inputs {
		if !p.Inputs[i].IsFinalized() {
			return false
		}
	}

	return true
}

// SanityCheck validates the envelope's structural invariants: the unsigned
// transaction carries no signatures, the input/output map counts match the
// unsigned transaction, and no input mixes UTXO kinds.
func (p *Packet) SanityCheck() error {
	if !validateUnsignedTx(p.Global.UnsignedTx) {
		return ErrInvalidRawTxSigned
	}

	if len(p.Inputs) != len(p.Global.UnsignedTx.TxIn) {
		return ErrStructuralMismatch
	}
	if len(p.Outputs) != len(p.Global.UnsignedTx.TxOut) {
		return ErrStructuralMismatch
	}

	for i := range p.Inputs {
		if !p.Inputs[i].IsSane() {
			return ErrConflictingUtxo
		}
	}

	return nil
}

// AddUnknownInput appends an unrecognized record to input i's map. This is
// the "add-record" operation named in spec.md §6; it rebuilds the input
// rather than mutating it in place in spirit (the Unknowns slice is
// replaced, not appended to destructively from the caller's point of view),
// matching the "no mutable maps" design note.
func (p *Packet) AddUnknownInput(i int, u Unknown) error {
	for _, x := range p.Inputs[i].Unknowns {
		if bytes.Equal(x.Key, u.Key) {
			return ErrDuplicateKey
		}
	}

	unknowns := make([]*Unknown, len(p.Inputs[i].Unknowns)+1)
	copy(unknowns, p.Inputs[i].Unknowns)
	unknowns[len(unknowns)-1] = &u
	p.Inputs[i].Unknowns = unknowns

	return nil
}
