// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/psbtkit/psbtkit/psbt"
	"github.com/stretchr/testify/require"
)

func samplePacket(t *testing.T) *psbt.Packet {
	t.Helper()

	var prevHash chainhash.Hash
	for i := range prevHash {
		prevHash[i] = 0xaa
	}

	in := &wire.OutPoint{Hash: prevHash, Index: 0}
	out := &wire.TxOut{Value: 49_00000000, PkScript: []byte{
		0x76, 0xa9, 0x14,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
		0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14,
		0x88, 0xac,
	}}

	p, err := psbt.New(
		[]*wire.OutPoint{in}, []*wire.TxOut{out}, 2, 0,
		[]uint32{wire.MaxTxInSequenceNum},
	)
	require.NoError(t, err)

	return p
}

func TestNewThenBytesRoundTrip(t *testing.T) {
	p := samplePacket(t)

	raw, err := p.Bytes()
	require.NoError(t, err)

	reparsed, err := psbt.ParseBytes(raw)
	require.NoError(t, err)

	rawAgain, err := reparsed.Bytes()
	require.NoError(t, err)
	require.Equal(t, raw, rawAgain)
}

func TestHexAndBase64RoundTrip(t *testing.T) {
	p := samplePacket(t)

	asHex, err := p.Hex()
	require.NoError(t, err)
	fromHex, err := psbt.ParseHex(asHex)
	require.NoError(t, err)

	asB64, err := p.Base64()
	require.NoError(t, err)
	fromB64, err := psbt.ParseBase64(asB64)
	require.NoError(t, err)

	fromSniff, err := psbt.Parse(asHex)
	require.NoError(t, err)

	want, err := p.Bytes()
	require.NoError(t, err)
	gotHex, err := fromHex.Bytes()
	require.NoError(t, err)
	gotB64, err := fromB64.Bytes()
	require.NoError(t, err)
	gotSniff, err := fromSniff.Bytes()
	require.NoError(t, err)

	require.Equal(t, want, gotHex)
	require.Equal(t, want, gotB64)
	require.Equal(t, want, gotSniff)
}

func TestParseRejectsBadMagic(t *testing.T) {
	p := samplePacket(t)

	data, err := p.Bytes()
	require.NoError(t, err)

	data[0] = 0x00

	_, err = psbt.ParseBytes(data)
	require.ErrorIs(t, err, psbt.ErrInvalidMagicBytes)
}

func TestParseRejectsTruncatedInput(t *testing.T) {
	p := samplePacket(t)

	data, err := p.Bytes()
	require.NoError(t, err)

	_, err = psbt.ParseBytes(data[:len(data)-5])
	require.Error(t, err)
}

func TestIsCompleteFalseBeforeFinalize(t *testing.T) {
	p := samplePacket(t)

	require.False(t, p.IsComplete())
	require.False(t, p.IsFinalized(0))
}

func TestAddUnknownInputRejectsDuplicate(t *testing.T) {
	p := samplePacket(t)

	u := psbt.Unknown{Key: []byte{0xfc, 0x01}, Value: []byte("hello")}
	require.NoError(t, p.AddUnknownInput(0, u))
	require.ErrorIs(t, p.AddUnknownInput(0, u), psbt.ErrDuplicateKey)
}
