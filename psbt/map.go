// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"sort"
)

// Record is the scope-agnostic (key_id, key_data, value_data) triple BIP-174
// maps are built from. The typed Global/PInput/POutput structs are the
// primary in-memory representation used by the rest of this package; Record
// and the helpers below express canonical ordering and full-key
// deduplication once instead of per scope. Serialization goes through
// serializeMap; Combine merges the typed structs directly (PInput.combine,
// POutput.combine, combineGlobal) rather than through these helpers.
type Record struct {
	// KeyType is the first byte of the key.
	KeyType uint8

	// KeyData is everything in the key after KeyType; nil when the
	// record's schema carries no key data.
	KeyData []byte

	// Value is the record's raw value bytes.
	Value []byte
}

// FullKey returns the record's complete key: the type byte followed by any
// key data. Two records collide (and may not coexist in one map) exactly
// when their FullKey bytes are equal.
func (r Record) FullKey() []byte {
	return append([]byte{r.KeyType}, r.KeyData...)
}

// serialize writes the record in the standard 4-field PSBT shape.
func (r Record) serialize(w *bytes.Buffer) error {
	return serializeKVPairWithType(w, r.KeyType, r.KeyData, r.Value)
}

// sortRecords orders records ascending by full key bytes, which is the
// canonical form BIP-174 requires on the wire.
func sortRecords(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].FullKey(), out[j].FullKey()) < 0
	})

	return out
}

// filterRecords returns every record whose key type is not kt. It is a
// "drop and replace" helper for rebuilding a record list around a new value
// for a given key type.
func filterRecords(records []Record, kt uint8) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.KeyType != kt {
			out = append(out, r)
		}
	}

	return out
}

// getRecords returns every record whose key type is kt.
func getRecords(records []Record, kt uint8) []Record {
	var out []Record
	for _, r := range records {
		if r.KeyType == kt {
			out = append(out, r)
		}
	}

	return out
}

// distinctByKey deduplicates records by full key, keeping the first
// occurrence of each key. Applied to one side's records followed by the
// other's, it gives the same tie-break Combine uses: whichever side is
// presented first wins.
func distinctByKey(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))

	for _, r := range records {
		k := string(r.FullKey())
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, r)
	}

	return out
}

// serializeMap writes a key-sorted record list followed by the single 0x00
// map separator.
func serializeMap(w *bytes.Buffer, records []Record) error {
	for _, r := range sortRecords(records) {
		if err := r.serialize(w); err != nil {
			return err
		}
	}

	return w.WriteByte(0x00)
}
