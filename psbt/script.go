// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/txscript"
)

// ScriptClass tags the variant a script-pubkey or nested redeem/witness
// script was classified into. It mirrors the template table in spec.md
// §4.5/§6 rather than txscript.ScriptClass: several of these variants
// (Conditional, PubKeyWithTimeout, CLTV/CSV wrappers) describe nested
// redeem/witness-script shapes that standard Bitcoin script classification
// doesn't name, because the finalizer needs to recurse into them.
type ScriptClass int

const (
	NonStandardScript ScriptClass = iota
	EmptyScript
	PayToPubKey
	PayToPubKeyHash
	PayToScriptHash
	PayToWitnessPubKeyHash
	PayToWitnessScriptHash
	MultiSigScript
	CLTVScript
	CSVScript
	PubKeyWithTimeoutScript
	ConditionalScript
	WitnessCommitmentScript
	UnassignedWitnessScript
)

var scriptClassNames = [...]string{
	NonStandardScript:       "nonstandard",
	EmptyScript:             "empty",
	PayToPubKey:             "pubkey",
	PayToPubKeyHash:         "pubkeyhash",
	PayToScriptHash:         "scripthash",
	PayToWitnessPubKeyHash:  "witness_v0_keyhash",
	PayToWitnessScriptHash:  "witness_v0_scripthash",
	MultiSigScript:          "multisig",
	CLTVScript:              "cltv",
	CSVScript:               "csv",
	PubKeyWithTimeoutScript: "pubkeywithtimeout",
	ConditionalScript:       "conditional",
	WitnessCommitmentScript: "witness_commitment",
	UnassignedWitnessScript: "unassigned_witness",
}

func (c ScriptClass) String() string {
	if int(c) < 0 || int(c) >= len(scriptClassNames) {
		return "invalid"
	}

	return scriptClassNames[c]
}

// Template is the classifier's output: the script's variant tag plus
// whatever typed fields the finalizer needs to resolve that variant.
type Template struct {
	Class ScriptClass

	// PubKey is populated for PayToPubKey.
	PubKey []byte

	// Hash is the 20-byte hash for PayToPubKeyHash/PayToScriptHash/
	// PayToWitnessPubKeyHash, or the 32-byte program for
	// PayToWitnessScriptHash.
	Hash []byte

	// M and PubKeys are populated for MultiSigScript: M-of-len(PubKeys).
	M       int
	PubKeys [][]byte

	// Nested is populated for CLTVScript/CSVScript: the wrapped script
	// to recurse on after the timelock check.
	Nested []byte

	// LockTime is the CLTV locktime or CSV sequence value, populated for
	// CLTVScript, CSVScript, and PubKeyWithTimeoutScript.
	LockTime int64

	// PubKeyBefore/PubKeyAfter are populated for PubKeyWithTimeoutScript:
	// the key that can spend immediately and the key that can spend once
	// LockTime (a CSV relative delay) has passed.
	PubKeyBefore []byte
	PubKeyAfter  []byte

	// TrueBranch/FalseBranch are populated for ConditionalScript: the two
	// nested scripts selected by OP_IF/OP_ELSE.
	TrueBranch  []byte
	FalseBranch []byte

	// Raw is the original script, populated for NonStandardScript,
	// WitnessCommitmentScript, and UnassignedWitnessScript.
	Raw []byte
}

// elem is one parsed script element: either a pushed data chunk (Data
// non-nil, possibly empty) or a non-push opcode (Op holds the opcode byte).
type elem struct {
	Op   byte
	Data []byte
	Push bool
}

// splitScriptElements walks script into its opcode/push-data elements. It
// implements just enough of BIP-174's finalizer templates (plain pushes,
// OP_0/OP_1-OP_16 small ints, OP_PUSHDATA1/2/4, and named opcodes) to
// classify the shapes in the table below; it is not a general-purpose
// disassembler and rejects a script whose push runs past its end by
// returning an empty element list, which no classifier matches (falling
// through to NonStandardScript).
func splitScriptElements(script []byte) []elem {
	var elems []elem

	for i := 0; i < len(script); {
		op := script[i]
		switch {
		case op == txscript.OP_0:
			elems = append(elems, elem{Op: op, Push: true, Data: nil})
			i++

		case op >= txscript.OP_DATA_1 && op <= txscript.OP_DATA_75:
			n := int(op)
			if i+1+n > len(script) {
				return nil
			}
			elems = append(elems, elem{
				Push: true, Data: script[i+1 : i+1+n],
			})
			i += 1 + n

		case op == txscript.OP_PUSHDATA1:
			if i+2 > len(script) {
				return nil
			}
			n := int(script[i+1])
			if i+2+n > len(script) {
				return nil
			}
			elems = append(elems, elem{
				Push: true, Data: script[i+2 : i+2+n],
			})
			i += 2 + n

		case op == txscript.OP_PUSHDATA2:
			if i+3 > len(script) {
				return nil
			}
			n := int(binary.LittleEndian.Uint16(script[i+1 : i+3]))
			if i+3+n > len(script) {
				return nil
			}
			elems = append(elems, elem{
				Push: true, Data: script[i+3 : i+3+n],
			})
			i += 3 + n

		case op == txscript.OP_PUSHDATA4:
			if i+5 > len(script) {
				return nil
			}
			n := int(binary.LittleEndian.Uint32(script[i+1 : i+5]))
			if i+5+n > len(script) {
				return nil
			}
			elems = append(elems, elem{
				Push: true, Data: script[i+5 : i+5+n],
			})
			i += 5 + n

		case op == txscript.OP_1NEGATE:
			elems = append(elems, elem{Op: op})
			i++

		case op >= txscript.OP_1 && op <= txscript.OP_16:
			elems = append(elems, elem{
				Op: op, Push: true,
				Data: []byte{byte(op - txscript.OP_1 + 1)},
			})
			i++

		default:
			elems = append(elems, elem{Op: op})
			i++
		}
	}

	return elems
}

// asSmallInt returns the small-integer value of a pushed OP_1-OP_16 element,
// or -1 if the element is not one.
func asSmallInt(e elem) int {
	if !e.Push || e.Op < txscript.OP_1 || e.Op > txscript.OP_16 {
		return -1
	}

	return int(e.Op-txscript.OP_1) + 1
}

// scriptNum decodes the minimal little-endian CScriptNum encoding used by
// OP_CHECKLOCKTIMEVERIFY/OP_CHECKSEQUENCEVERIFY operands.
func scriptNum(data []byte) int64 {
	if len(data) == 0 {
		return 0
	}

	var result int64
	for i, b := range data {
		result |= int64(b) << uint(8*i)
	}

	if data[len(data)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint(8*(len(data)-1)))
		result = -result
	}

	return result
}

// Classify pattern-matches script-pubkey or nested redeem/witness-script
// bytes into one of the Template variants named in spec.md §2 item 5 / §4.5.
// Classify never fails: anything it cannot positively identify is reported
// as NonStandardScript (or UnassignedWitnessScript / WitnessCommitmentScript
// for the two witness-shaped exceptions), leaving the finalizer to decide
// whether that's fatal.
func Classify(script []byte) Template {
	if len(script) == 0 {
		return Template{Class: EmptyScript}
	}

	if t, ok := classifyWitnessCommitment(script); ok {
		return t
	}
	if t, ok := classifyWitnessProgram(script); ok {
		return t
	}
	if t, ok := classifyP2SH(script); ok {
		return t
	}

	elems := splitScriptElements(script)

	if t, ok := classifyPubKey(elems); ok {
		return t
	}
	if t, ok := classifyPubKeyHash(elems); ok {
		return t
	}
	if t, ok := classifyMultiSig(elems); ok {
		return t
	}
	if t, ok := classifyTimelock(elems, script); ok {
		return t
	}
	if t, ok := classifyPubKeyWithTimeout(elems); ok {
		return t
	}
	if t, ok := classifyConditional(elems, script); ok {
		return t
	}

	return Template{Class: NonStandardScript, Raw: script}
}

// classifyWitnessProgram recognizes OP_0 <20 or 32 bytes> (P2WPKH/P2WSH) and
// any other OP_1-OP_16 <2..40 bytes> (a witness version this package does
// not otherwise understand).
func classifyWitnessProgram(script []byte) (Template, bool) {
	elems := splitScriptElements(script)
	if len(elems) != 2 {
		return Template{}, false
	}

	version := elems[0]
	program := elems[1]
	if !program.Push {
		return Template{}, false
	}

	switch {
	case script[0] == txscript.OP_0 && len(program.Data) == 20:
		return Template{Class: PayToWitnessPubKeyHash, Hash: program.Data}, true

	case script[0] == txscript.OP_0 && len(program.Data) == 32:
		return Template{Class: PayToWitnessScriptHash, Hash: program.Data}, true

	case version.Op >= txscript.OP_1 && version.Op <= txscript.OP_16 &&
		len(program.Data) >= 2 && len(program.Data) <= 40:

		return Template{Class: UnassignedWitnessScript, Raw: script}, true
	}

	return Template{}, false
}

// classifyP2SH recognizes OP_HASH160 <20 bytes> OP_EQUAL.
func classifyP2SH(script []byte) (Template, bool) {
	if len(script) != 23 {
		return Template{}, false
	}
	if script[0] != txscript.OP_HASH160 ||
		script[1] != txscript.OP_DATA_20 ||
		script[22] != txscript.OP_EQUAL {

		return Template{}, false
	}

	return Template{Class: PayToScriptHash, Hash: script[2:22]}, true
}

// classifyWitnessCommitment recognizes the coinbase witness-commitment
// output: OP_RETURN <0x24 bytes: 0xaa21a9ed || 32-byte commitment>.
func classifyWitnessCommitment(script []byte) (Template, bool) {
	if len(script) != 38 {
		return Template{}, false
	}
	if script[0] != txscript.OP_RETURN || script[1] != txscript.OP_DATA_36 {
		return Template{}, false
	}
	if script[2] != 0xaa || script[3] != 0x21 || script[4] != 0xa9 ||
		script[5] != 0xed {

		return Template{}, false
	}

	return Template{Class: WitnessCommitmentScript, Raw: script}, true
}

// classifyPubKey recognizes <pubkey> OP_CHECKSIG.
func classifyPubKey(elems []elem) (Template, bool) {
	if len(elems) != 2 || !elems[0].Push || elems[1].Op != txscript.OP_CHECKSIG {
		return Template{}, false
	}
	if l := len(elems[0].Data); l != 33 && l != 65 {
		return Template{}, false
	}

	return Template{Class: PayToPubKey, PubKey: elems[0].Data}, true
}

// classifyPubKeyHash recognizes
// OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
func classifyPubKeyHash(elems []elem) (Template, bool) {
	if len(elems) != 5 {
		return Template{}, false
	}
	if elems[0].Op != txscript.OP_DUP || elems[1].Op != txscript.OP_HASH160 ||
		!elems[2].Push || len(elems[2].Data) != 20 ||
		elems[3].Op != txscript.OP_EQUALVERIFY ||
		elems[4].Op != txscript.OP_CHECKSIG {

		return Template{}, false
	}

	return Template{Class: PayToPubKeyHash, Hash: elems[2].Data}, true
}

// classifyMultiSig recognizes OP_m <pubkey>+ OP_n OP_CHECKMULTISIG.
func classifyMultiSig(elems []elem) (Template, bool) {
	if len(elems) < 4 {
		return Template{}, false
	}
	last := elems[len(elems)-1]
	if last.Op != txscript.OP_CHECKMULTISIG {
		return Template{}, false
	}

	n := asSmallInt(elems[len(elems)-2])
	m := asSmallInt(elems[0])
	if n < 1 || m < 1 || m > n {
		return Template{}, false
	}
	if len(elems)-3 != n {
		return Template{}, false
	}

	pubKeys := make([][]byte, 0, n)
	for _, e := range elems[1 : len(elems)-2] {
		if !e.Push || (len(e.Data) != 33 && len(e.Data) != 65) {
			return Template{}, false
		}
		pubKeys = append(pubKeys, e.Data)
	}

	return Template{Class: MultiSigScript, M: m, PubKeys: pubKeys}, true
}

// classifyTimelock recognizes
// <n> OP_CHECKLOCKTIMEVERIFY OP_DROP <nested script...> (CLTV) and
// <n> OP_CHECKSEQUENCEVERIFY OP_DROP <nested script...> (CSV).
func classifyTimelock(elems []elem, script []byte) (Template, bool) {
	if len(elems) < 3 || !elems[0].Push {
		return Template{}, false
	}

	var class ScriptClass
	switch elems[1].Op {
	case txscript.OP_CHECKLOCKTIMEVERIFY:
		class = CLTVScript
	case txscript.OP_CHECKSEQUENCEVERIFY:
		class = CSVScript
	default:
		return Template{}, false
	}
	if elems[2].Op != txscript.OP_DROP {
		return Template{}, false
	}

	nestedOffset := scriptOffsetOfElement(script, elems, 3)
	if nestedOffset < 0 {
		return Template{}, false
	}

	return Template{
		Class:    class,
		LockTime: scriptNum(elems[0].Data),
		Nested:   script[nestedOffset:],
	}, true
}

// classifyPubKeyWithTimeout recognizes
// OP_IF <pubkeyA> OP_ELSE <n> OP_CHECKSEQUENCEVERIFY OP_DROP <pubkeyB>
// OP_ENDIF OP_CHECKSIG, the shape used by CommitScriptToSelf.
func classifyPubKeyWithTimeout(elems []elem) (Template, bool) {
	if len(elems) != 9 {
		return Template{}, false
	}
	if elems[0].Op != txscript.OP_IF || !elems[1].Push ||
		elems[2].Op != txscript.OP_ELSE || !elems[3].Push ||
		elems[4].Op != txscript.OP_CHECKSEQUENCEVERIFY ||
		elems[5].Op != txscript.OP_DROP || !elems[6].Push ||
		elems[7].Op != txscript.OP_ENDIF ||
		elems[8].Op != txscript.OP_CHECKSIG {

		return Template{}, false
	}

	return Template{
		Class:        PubKeyWithTimeoutScript,
		PubKeyBefore: elems[1].Data,
		LockTime:     scriptNum(elems[3].Data),
		PubKeyAfter:  elems[6].Data,
	}, true
}

// classifyConditional recognizes the generic
// OP_IF <true-branch script> OP_ELSE <false-branch script> OP_ENDIF wrapper
// once the more specific PubKeyWithTimeout shape has been ruled out.
func classifyConditional(elems []elem, script []byte) (Template, bool) {
	if len(elems) < 4 {
		return Template{}, false
	}
	if elems[0].Op != txscript.OP_IF {
		return Template{}, false
	}

	depth := 0
	elseIdx, endIdx := -1, -1
	for i := 1; i < len(elems); i++ {
		switch elems[i].Op {
		case txscript.OP_IF, txscript.OP_NOTIF:
			depth++
		case txscript.OP_ELSE:
			if depth == 0 && elseIdx == -1 {
				elseIdx = i
			}
		case txscript.OP_ENDIF:
			if depth == 0 {
				endIdx = i
			} else {
				depth--
			}
		}
		if endIdx != -1 {
			break
		}
	}
	if elseIdx == -1 || endIdx == -1 || endIdx != len(elems)-1 {
		return Template{}, false
	}

	trueOff := scriptOffsetOfElement(script, elems, 1)
	elseOff := scriptOffsetOfElement(script, elems, elseIdx)
	endOff := scriptOffsetOfElement(script, elems, endIdx)
	if trueOff < 0 || elseOff < 0 || endOff < 0 {
		return Template{}, false
	}

	return Template{
		Class:       ConditionalScript,
		TrueBranch:  script[trueOff:elseOff],
		FalseBranch: script[elseOff+1 : endOff],
	}, true
}

// scriptOffsetOfElement re-walks script to find the byte offset at which
// the idx'th parsed element begins, so a classifier can slice out a nested
// sub-script rather than re-encode one from parsed elements.
func scriptOffsetOfElement(script []byte, elems []elem, idx int) int {
	if idx >= len(elems) {
		if idx == len(elems) {
			return len(script)
		}
		return -1
	}

	offset := 0
	count := 0
	for offset < len(script) {
		if count == idx {
			return offset
		}

		op := script[offset]
		switch {
		case op == txscript.OP_0:
			offset++
		case op >= txscript.OP_DATA_1 && op <= txscript.OP_DATA_75:
			offset += 1 + int(op)
		case op == txscript.OP_PUSHDATA1:
			n := int(script[offset+1])
			offset += 2 + n
		case op == txscript.OP_PUSHDATA2:
			n := int(binary.LittleEndian.Uint16(script[offset+1 : offset+3]))
			offset += 3 + n
		case op == txscript.OP_PUSHDATA4:
			n := int(binary.LittleEndian.Uint32(script[offset+1 : offset+5]))
			offset += 5 + n
		default:
			offset++
		}
		count++
	}

	if count == idx {
		return offset
	}

	return -1
}
