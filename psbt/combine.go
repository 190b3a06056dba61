// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import "bytes"

// Combine merges the receiver with other, both of which must share the same
// unsigned transaction, into a new Packet containing the union of their
// records. On any full-key collision the receiver's record wins — see
// spec.md §4.4 and the Open Questions note in DESIGN.md.
//
// Combine is commutative up to the canonical record ordering as long as the
// two packets hold no differing records under the same full key; on such a
// conflict the result depends on which packet is the receiver. It is
// idempotent when either side is empty.
func (p *Packet) Combine(other *Packet) (*Packet, error) {
	var txA, txB bytes.Buffer
	if err := p.Global.UnsignedTx.Serialize(&txA); err != nil {
		return nil, err
	}
	if err := other.Global.UnsignedTx.Serialize(&txB); err != nil {
		return nil, err
	}
	if !bytes.Equal(txA.Bytes(), txB.Bytes()) {
		return nil, ErrCombineMismatch
	}

	global, err := combineGlobal(p.Global, other.Global)
	if err != nil {
		return nil, err
	}

	if len(p.Inputs) != len(other.Inputs) ||
		len(p.Outputs) != len(other.Outputs) {

		return nil, ErrStructuralMismatch
	}

	inputs := make([]PInput, len(p.Inputs))
	for i := range inputs {
		inputs[i] = *p.Inputs[i].combine(&other.Inputs[i])
	}

	outputs := make([]POutput, len(p.Outputs))
	for i := range outputs {
		outputs[i] = *p.Outputs[i].combine(&other.Outputs[i])
	}

	out := &Packet{Global: global, Inputs: inputs, Outputs: outputs}
	if err := out.SanityCheck(); err != nil {
		return nil, err
	}

	log.Debugf("Combined PSBT with %d inputs and %d outputs", len(inputs),
		len(outputs))

	return out, nil
}

// combineGlobal implements spec.md §4.4 step 2: whichever side carries the
// higher PSBT version wins the Version record, and the union of XPub and
// Unknown records is kept (receiver wins full-key collisions).
func combineGlobal(a, b *Global) (*Global, error) {
	aVersion, bVersion := uint32(0), uint32(0)
	if a.Version != nil {
		aVersion = *a.Version
	}
	if b.Version != nil {
		bVersion = *b.Version
	}

	out := &Global{UnsignedTx: a.UnsignedTx}

	switch {
	case aVersion > bVersion:
		out.Version = a.Version
	case bVersion > aVersion:
		out.Version = b.Version
	default:
		out.Version = a.Version
		if out.Version == nil {
			out.Version = b.Version
		}
	}

	xpubByKey := make(map[string]XPub)
	var xpubOrder []string
	for _, x := range append(append([]XPub{}, a.XPubs...), b.XPubs...) {
		k := string(x.ExtendedKey)
		if _, ok := xpubByKey[k]; !ok {
			xpubByKey[k] = x
			xpubOrder = append(xpubOrder, k)
		}
	}
	for _, k := range xpubOrder {
		out.XPubs = append(out.XPubs, xpubByKey[k])
	}

	unknownByKey := make(map[string]Unknown)
	var unknownOrder []string
	for _, u := range append(append([]Unknown{}, a.Unknowns...), b.Unknowns...) {
		k := string(u.Key)
		if _, ok := unknownByKey[k]; !ok {
			unknownByKey[k] = u
			unknownOrder = append(unknownOrder, k)
		}
	}
	for _, k := range unknownOrder {
		out.Unknowns = append(out.Unknowns, unknownByKey[k])
	}

	return out, nil
}
