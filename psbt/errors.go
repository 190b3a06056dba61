// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import "errors"

// Sentinel errors surfaced by the record codec, the map/envelope layer, and
// combine/finalize/extract. None of the operations in this package panic;
// every failure this package detects itself is one of these (optionally
// wrapped with %w for extra context at the call site), while errors from the
// underlying hex, base64 and wire decoders are returned unchanged.
var (
	// ErrInvalidPsbtFormat is a generic error for any situation in which a
	// provided PSBT serialization does not conform to the rules of
	// BIP-174.
	ErrInvalidPsbtFormat = errors.New("invalid PSBT serialization format")

	// ErrDuplicateKey indicates that a passed PSBT serialization is
	// invalid due to having the same full key (id + key data) repeated
	// within one map.
	ErrDuplicateKey = errors.New("invalid PSBT due to duplicate key")

	// ErrInvalidKeydata indicates that a key-value pair in the PSBT
	// serialization contains key data where none is permitted, or
	// malformed key data where a schema was expected.
	ErrInvalidKeydata = errors.New("invalid PSBT key data")

	// ErrInvalidMagicBytes indicates that a passed PSBT serialization is
	// invalid because it does not begin with the five PSBT magic bytes.
	ErrInvalidMagicBytes = errors.New("invalid PSBT magic bytes")

	// ErrTruncatedInput indicates that a map's record stream ended
	// without the expected 0x00 separator byte.
	ErrTruncatedInput = errors.New("truncated PSBT input")

	// ErrStructuralMismatch indicates that the number of input or output
	// maps present in the envelope does not equal the number of inputs
	// or outputs in the global unsigned transaction.
	ErrStructuralMismatch = errors.New("PSBT map count does not match " +
		"unsigned transaction")

	// ErrInvalidRawTxSigned indicates that the raw serialized transaction
	// in the global section of the passed PSBT is invalid because it
	// contains scriptSigs or witnesses, which BIP-174 forbids.
	ErrInvalidRawTxSigned = errors.New("invalid PSBT, unsigned " +
		"transaction must not carry signatures")

	// ErrConflictingUtxo indicates that an input map contains both a
	// WitnessUtxo and a NonWitnessUtxo record.
	ErrConflictingUtxo = errors.New("input has both witness and " +
		"non-witness UTXO records")

	// ErrCombineMismatch indicates that two packets being combined do not
	// share the same unsigned transaction.
	ErrCombineMismatch = errors.New("cannot combine PSBTs with " +
		"different unsigned transactions")

	// ErrMissingUtxo indicates that finalize needed a WitnessUtxo or
	// NonWitnessUtxo record that was absent.
	ErrMissingUtxo = errors.New("input is missing its UTXO record")

	// ErrMissingRedeemScript indicates that finalize needed a
	// RedeemScript record that was absent.
	ErrMissingRedeemScript = errors.New("input is missing its redeem " +
		"script")

	// ErrMissingWitnessScript indicates that finalize needed a
	// WitnessScript record that was absent.
	ErrMissingWitnessScript = errors.New("input is missing its witness " +
		"script")

	// ErrMissingSignature indicates that finalize needed a partial
	// signature that was absent, or found the wrong number of them.
	ErrMissingSignature = errors.New("input is missing a required " +
		"partial signature")

	// ErrUnsatisfiableBranch indicates that the signatures present on an
	// input do not satisfy any branch of a conditional script or a
	// pay-to-pubkey-with-timeout script.
	ErrUnsatisfiableBranch = errors.New("no script branch is " +
		"satisfiable with the available signatures")

	// ErrUnsupportedScriptType indicates that the finalizer encountered a
	// NonStandard, UnassignedWitness, or WitnessCommitment template,
	// which it intentionally declines to finalize.
	ErrUnsupportedScriptType = errors.New("unsupported script template")

	// ErrNotFinalized indicates that extract was invoked on a packet with
	// one or more non-finalized inputs.
	ErrNotFinalized = errors.New("PSBT is not fully finalized")

	// ErrBadIndex indicates that a txin's prevout vout exceeds the output
	// count of the transaction it references.
	ErrBadIndex = errors.New("prevout index out of range")

	// ErrInvalidSigHashFlags indicates that a partial signature record's
	// value does not end in a recognized sighash byte.
	ErrInvalidSigHashFlags = errors.New("invalid sighash flags")

	// ErrInvalidPsbtInput indicates that a PInput value fails its own
	// internal consistency checks (IsSane).
	ErrInvalidPsbtInput = errors.New("invalid PSBT input")

	// ErrMaxDepthExceeded indicates that the finalizer recursed past its
	// configured maximum script nesting depth.
	ErrMaxDepthExceeded = errors.New("script template nesting exceeds " +
		"maximum depth")
)
