package section

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
	"github.com/arloliu/wavefst/source"
)

func TestHeader_RoundTrip(t *testing.T) {
	h := Header{
		StartTime:         100,
		EndTime:           99000,
		MemoryUsed:        4096,
		ScopeCount:        3,
		VarCount:          12,
		MaxHandle:         10,
		VcSectionCount:    2,
		TimescaleExponent: -12,
		Version:           "wavefst 1.0",
		Date:              "Sun Aug 23 2026",
		FileType:          format.FileTypeVerilog,
		TimeZero:          500,
	}

	payload := h.Encode()
	require.Len(t, payload, HeaderPayloadLen)

	decoded, err := DecodeHeader(payload)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestHeader_NegativeTimescale(t *testing.T) {
	h := Header{TimescaleExponent: -9}
	decoded, err := DecodeHeader(h.Encode())
	require.NoError(t, err)
	require.Equal(t, int8(-9), decoded.TimescaleExponent)
}

func TestHeader_TruncatesLongStrings(t *testing.T) {
	h := Header{
		Version: string(bytes.Repeat([]byte{'v'}, VersionFieldLen+10)),
		Date:    string(bytes.Repeat([]byte{'d'}, DateFieldLen+10)),
	}
	decoded, err := DecodeHeader(h.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.Version, VersionFieldLen)
	require.Len(t, decoded.Date, DateFieldLen)
}

func TestDecodeHeader_EndianTest(t *testing.T) {
	h := Header{StartTime: 1}
	payload := h.Encode()

	// Byte-swapped endian marker is accepted.
	for i, j := 16, 23; i < j; i, j = i+1, j-1 {
		payload[i], payload[j] = payload[j], payload[i]
	}
	_, err := DecodeHeader(payload)
	require.NoError(t, err)

	// Anything else is rejected.
	payload[16] = 0x42
	_, err = DecodeHeader(payload)
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestDecodeHeader_WrongSize(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderPayloadLen-1))
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestBlockEnvelope_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("geometry bytes")
	require.NoError(t, WriteBlock(&buf, format.BlockGeometry, payload))

	blockType, payloadLen, err := ReadEnvelope(&buf)
	require.NoError(t, err)
	require.Equal(t, format.BlockGeometry, blockType)
	require.Equal(t, uint64(len(payload)), payloadLen)
	require.Equal(t, payload, buf.Bytes())
}

func TestReadEnvelope_Truncated(t *testing.T) {
	_, _, err := ReadEnvelope(bytes.NewReader([]byte{byte(format.BlockHeader), 0, 0}))
	require.ErrorIs(t, err, errs.ErrUnexpectedEOF)
}

func TestReadEnvelope_LengthBelowMinimum(t *testing.T) {
	raw := []byte{byte(format.BlockHeader), 0, 0, 0, 0, 0, 0, 0, 3}
	_, _, err := ReadEnvelope(bytes.NewReader(raw))
	require.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestBlockWriter_PatchesSectionLength(t *testing.T) {
	var buf source.Buffer

	bw, err := BeginBlock(&buf, format.BlockVcData)
	require.NoError(t, err)
	_, err = bw.Write([]byte("first"))
	require.NoError(t, err)
	_, err = bw.Write([]byte(" second"))
	require.NoError(t, err)
	require.Equal(t, uint64(12), bw.Written())
	require.NoError(t, bw.End())

	// A following block lands right after the patched one.
	require.NoError(t, WriteBlock(&buf, format.BlockBlackout, []byte{0}))

	r := bytes.NewReader(buf.Bytes())
	blockType, payloadLen, err := ReadEnvelope(r)
	require.NoError(t, err)
	require.Equal(t, format.BlockVcData, blockType)
	require.Equal(t, uint64(12), payloadLen)

	payload := make([]byte, payloadLen)
	_, err = io.ReadFull(r, payload)
	require.NoError(t, err)
	require.Equal(t, []byte("first second"), payload)

	blockType, payloadLen, err = ReadEnvelope(r)
	require.NoError(t, err)
	require.Equal(t, format.BlockBlackout, blockType)
	require.Equal(t, uint64(1), payloadLen)
}
