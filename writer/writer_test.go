package writer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
	"github.com/arloliu/wavefst/section"
	"github.com/arloliu/wavefst/source"
)

// declareCPU registers a small two-scope hierarchy: clk (1 bit), data
// (8-bit), temp (real), msg (variable) and clk_mirror aliasing clk.
func declareCPU(t *testing.T, w *Writer) (clk, data, temp, msg, mirror format.Handle) {
	t.Helper()

	require.NoError(t, w.BeginScope(format.ScopeModule, "top", ""))
	var err error
	clk, err = w.AddVariable(format.VarWire, format.DirImplicit, "clk", format.FixedGeometry(1))
	require.NoError(t, err)

	require.NoError(t, w.BeginScope(format.ScopeModule, "cpu", "cpu0"))
	data, err = w.AddVariable(format.VarReg, format.DirOutput, "data", format.FixedGeometry(8))
	require.NoError(t, err)
	temp, err = w.AddVariable(format.VarReal, format.DirImplicit, "temp", format.RealGeometry())
	require.NoError(t, err)
	msg, err = w.AddVariable(format.VarGenericString, format.DirImplicit, "msg", format.VariableGeometry())
	require.NoError(t, err)
	mirror, err = w.AddAlias(format.VarWire, format.DirImplicit, "clk_mirror", clk)
	require.NoError(t, err)
	require.NoError(t, w.EndScope())
	require.NoError(t, w.EndScope())

	return clk, data, temp, msg, mirror
}

// readBlocks splits an encoded stream into (type, payload) pairs.
func readBlocks(t *testing.T, data []byte) []struct {
	blockType format.BlockType
	payload   []byte
} {
	t.Helper()

	var blocks []struct {
		blockType format.BlockType
		payload   []byte
	}
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		blockType, payloadLen, err := section.ReadEnvelope(r)
		require.NoError(t, err)
		payload := make([]byte, payloadLen)
		_, err = io.ReadFull(r, payload)
		require.NoError(t, err)
		blocks = append(blocks, struct {
			blockType format.BlockType
			payload   []byte
		}{blockType, payload})
	}

	return blocks
}

func TestWriter_EmitsMetadataBlocks(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf, WithTimescale(-12), WithVersion("wavefst test"),
		WithDate("Sun Aug 23 2026"), WithTimeZero(100))
	require.NoError(t, err)

	clk, _, _, _, _ := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.EmitChange(10, clk, format.BitValue('1')))
	require.NoError(t, w.EmitChange(20, clk, format.BitValue('0')))
	require.NoError(t, w.Finish())

	blocks := readBlocks(t, buf.Bytes())
	require.Len(t, blocks, 4)
	require.Equal(t, format.BlockHeader, blocks[0].blockType)
	require.Equal(t, format.BlockGeometry, blocks[1].blockType)
	require.True(t, blocks[2].blockType.IsHierarchy())
	require.Equal(t, format.BlockVcData, blocks[3].blockType)

	header, err := section.DecodeHeader(blocks[0].payload)
	require.NoError(t, err)
	require.Equal(t, uint64(20), header.EndTime)
	require.Equal(t, uint64(1), header.VcSectionCount)
	require.Equal(t, uint64(2), header.ScopeCount)
	require.Equal(t, uint64(5), header.VarCount)
	require.Equal(t, uint64(5), header.MaxHandle)
	require.Equal(t, int8(-12), header.TimescaleExponent)
	require.Equal(t, "wavefst test", header.Version)
	require.Equal(t, uint64(100), header.TimeZero)

	geoms, err := section.DecodeGeometryBlock(blocks[1].payload)
	require.NoError(t, err)
	require.Equal(t, []format.Geometry{
		format.FixedGeometry(1),
		format.FixedGeometry(8),
		format.RealGeometry(),
		format.VariableGeometry(),
		format.FixedGeometry(1), // alias clones the canonical geometry
	}, geoms)

	tokens, err := section.DecodeHierarchyBlock(blocks[2].blockType, blocks[2].payload)
	require.NoError(t, err)
	hier, err := section.DecodeHierarchyTokens(tokens)
	require.NoError(t, err)
	require.Len(t, hier.Scopes, 2)
	require.Len(t, hier.Vars, 5)
	require.True(t, hier.Vars[4].IsAlias)
	require.Equal(t, clk, hier.Vars[4].AliasOf)
}

func TestWriter_VcBlockShape(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf, WithChainCompression(format.CompressionNone), WithTimeCompression(false))
	require.NoError(t, err)

	clk, data, temp, msg, _ := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.EmitChange(5, clk, format.BitValue('1')))
	require.NoError(t, w.EmitChange(5, data, format.VectorValue([]byte("10101010"))))
	require.NoError(t, w.EmitChange(7, temp, format.RealValue(36.6)))
	require.NoError(t, w.EmitChange(9, msg, format.BytesValue([]byte("hello"))))
	require.NoError(t, w.Finish())

	blocks := readBlocks(t, buf.Bytes())
	payload := blocks[3].payload
	require.Equal(t, format.BlockVcData, blocks[3].blockType)

	begin := bigEndian.Uint64(payload[0:8])
	end := bigEndian.Uint64(payload[8:16])
	require.Equal(t, uint64(5), begin)
	require.Equal(t, uint64(9), end)

	trailer, err := section.DecodeTrailer(payload[len(payload)-section.VcTrailerLen:])
	require.NoError(t, err)
	require.Equal(t, uint64(3), trailer.ItemCount)

	timeStart := len(payload) - section.VcTrailerLen - int(trailer.CompressedLen)
	times, err := section.DecodeTimeSection(
		payload[timeStart:len(payload)-section.VcTrailerLen],
		trailer.UncompressedLen, trailer.ItemCount)
	require.NoError(t, err)
	require.Equal(t, []uint64{5, 7, 9}, times)
}

func TestWriter_StateMachine(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf)
	require.NoError(t, err)

	require.ErrorIs(t, w.EndScope(), errs.ErrScopeUnderflow)

	_, err = w.AddVariable(format.VarWire, format.DirImplicit, "orphan", format.FixedGeometry(1))
	require.ErrorIs(t, err, errs.ErrInvalidState)

	require.ErrorIs(t, w.EmitChange(0, 1, format.BitValue('0')), errs.ErrHeaderNotWritten)
	require.ErrorIs(t, w.Finish(), errs.ErrHeaderNotWritten)

	require.NoError(t, w.BeginScope(format.ScopeModule, "top", ""))
	clk, err := w.AddVariable(format.VarWire, format.DirImplicit, "clk", format.FixedGeometry(1))
	require.NoError(t, err)

	// Open scope blocks the header.
	require.ErrorIs(t, w.WriteHeader(), errs.ErrInvalidState)
	require.NoError(t, w.EndScope())
	require.NoError(t, w.WriteHeader())

	// Metadata is frozen now.
	require.ErrorIs(t, w.BeginScope(format.ScopeModule, "late", ""), errs.ErrHeaderAlreadyWritten)
	_, err = w.AddVariable(format.VarWire, format.DirImplicit, "late", format.FixedGeometry(1))
	require.ErrorIs(t, err, errs.ErrHeaderAlreadyWritten)
	require.ErrorIs(t, w.WriteHeader(), errs.ErrHeaderAlreadyWritten)

	require.NoError(t, w.EmitChange(10, clk, format.BitValue('1')))
	require.ErrorIs(t, w.EmitChange(9, clk, format.BitValue('0')), errs.ErrTimeRegression)
	require.ErrorIs(t, w.EmitChange(10, 0, format.BitValue('0')), errs.ErrUnknownHandle)
	require.ErrorIs(t, w.EmitChange(10, 99, format.BitValue('0')), errs.ErrUnknownHandle)

	require.NoError(t, w.Finish())
	require.ErrorIs(t, w.Finish(), errs.ErrWriterFinished)
	require.ErrorIs(t, w.EmitChange(11, clk, format.BitValue('0')), errs.ErrWriterFinished)
}

func TestWriter_ValueValidation(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf)
	require.NoError(t, err)

	clk, data, temp, msg, _ := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())

	tests := []struct {
		name   string
		handle format.Handle
		value  format.SignalValue
	}{
		{name: "vector too short", handle: data, value: format.VectorValue([]byte("101"))},
		{name: "bad bit state", handle: clk, value: format.BitValue('q')},
		{name: "real gets vector", handle: temp, value: format.VectorValue([]byte("10101010"))},
		{name: "varlen gets real", handle: msg, value: format.RealValue(1)},
		{name: "packed width mismatch", handle: data, value: format.PackedValue(4, []byte{0xF0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, w.EmitChange(0, tt.handle, tt.value), errs.ErrInvalidValue)
		})
	}

	// Accepted shapes for the same handles.
	require.NoError(t, w.EmitChange(1, clk, format.VectorValue([]byte("1"))))
	require.NoError(t, w.EmitChange(1, data, format.PackedValue(8, []byte{0xA5})))
	require.NoError(t, w.EmitChange(1, temp, format.BytesValue([]byte{0, 0, 0, 0, 0, 0, 0x45, 0x40})))
	require.NoError(t, w.EmitChange(1, msg, format.VectorValue([]byte("text"))))
	require.NoError(t, w.Finish())
}

func TestWriter_AliasChangesRemapToCanonical(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf, WithChainCompression(format.CompressionNone))
	require.NoError(t, err)

	clk, _, _, _, mirror := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())

	// Emitting through the alias handle must land on the canonical chain.
	require.NoError(t, w.EmitChange(3, mirror, format.BitValue('1')))
	require.NoError(t, w.Finish())

	payload := readBlocks(t, buf.Bytes())[3].payload
	require.Equal(t, uint64(3), bigEndian.Uint64(payload[0:8]))

	// The chain index must mark the alias slot, not give it data.
	indexLenPos := len(payload) - section.VcTrailerLen
	trailer, err := section.DecodeTrailer(payload[indexLenPos:])
	require.NoError(t, err)
	timeStart := indexLenPos - int(trailer.CompressedLen)
	indexLength := bigEndian.Uint64(payload[timeStart-8 : timeStart])
	indexBytes := payload[timeStart-8-int(indexLength) : timeStart-8]

	// Chains span from the pack marker to the index table.
	slots, err := section.DecodeChainIndex(indexBytes, format.BlockVcData, 0, 5)
	require.NoError(t, err)
	require.Equal(t, section.SlotData, slots[0].Kind)
	require.Equal(t, section.SlotEmpty, slots[1].Kind)
	require.Equal(t, section.SlotAlias, slots[4].Kind)
	require.Equal(t, clk, slots[4].AliasOf)
}

func TestWriter_BlackoutElision(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf)
	require.NoError(t, err)

	clk, _, _, _, _ := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.EmitChange(1, clk, format.BitValue('1')))
	require.NoError(t, w.Finish())

	for _, b := range readBlocks(t, buf.Bytes()) {
		require.NotEqual(t, format.BlockBlackout, b.blockType)
	}
}

func TestWriter_BlackoutBlock(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf)
	require.NoError(t, err)

	clk, _, _, _, _ := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.EmitChange(1, clk, format.BitValue('1')))
	require.NoError(t, w.EmitBlackout(50, false))
	require.NoError(t, w.EmitBlackout(80, true))
	require.NoError(t, w.Finish())

	blocks := readBlocks(t, buf.Bytes())
	var blackout []byte
	for _, b := range blocks {
		if b.blockType == format.BlockBlackout {
			blackout = b.payload
		}
	}
	require.NotNil(t, blackout)

	events, err := section.DecodeBlackoutBlock(blackout)
	require.NoError(t, err)
	require.Equal(t, []format.BlackoutEvent{
		{Active: false, Time: 50},
		{Active: true, Time: 80},
	}, events)
}

func TestWriter_FlushThresholdSplitsBlocks(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf, WithFlushThreshold(4))
	require.NoError(t, err)

	clk, _, _, _, _ := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())

	bit := byte('0')
	for ts := uint64(0); ts < 10; ts++ {
		require.NoError(t, w.EmitChange(ts, clk, format.BitValue(bit)))
		bit ^= 1
	}
	require.NoError(t, w.Finish())

	vcBlocks := 0
	for _, b := range readBlocks(t, buf.Bytes()) {
		if b.blockType.IsValueChange() {
			vcBlocks++
		}
	}
	require.Greater(t, vcBlocks, 1)

	header, err := section.DecodeHeader(readBlocks(t, buf.Bytes())[0].payload)
	require.NoError(t, err)
	require.Equal(t, uint64(vcBlocks), header.VcSectionCount)
	require.Equal(t, uint64(9), header.EndTime)
}

func TestWriter_ZWrapper(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf, WithZWrapper(true))
	require.NoError(t, err)

	clk, _, _, _, _ := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.EmitChange(1, clk, format.BitValue('1')))
	require.NoError(t, w.Finish())

	blocks := readBlocks(t, buf.Bytes())
	require.Len(t, blocks, 1)
	require.Equal(t, format.BlockZWrapper, blocks[0].blockType)

	payload := blocks[0].payload
	uncompressedLen := bigEndian.Uint64(payload[0:8])
	compressedLen := bigEndian.Uint64(payload[8:16])
	require.Equal(t, uint64(len(payload)-16), compressedLen)

	inner, err := compress.NewZlibCodec().Decompress(payload[16:], int(uncompressedLen))
	require.NoError(t, err)

	innerBlocks := readBlocks(t, inner)
	require.Equal(t, format.BlockHeader, innerBlocks[0].blockType)

	// Back-patching happened inside the wrapped stream.
	header, err := section.DecodeHeader(innerBlocks[0].payload)
	require.NoError(t, err)
	require.Equal(t, uint64(1), header.VcSectionCount)
}

func TestWriter_DynAlias2BlockType(t *testing.T) {
	var buf source.Buffer
	w, err := New(&buf, WithDynAlias2(true))
	require.NoError(t, err)

	clk, _, _, _, _ := declareCPU(t, w)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.EmitChange(1, clk, format.BitValue('1')))
	require.NoError(t, w.Finish())

	blocks := readBlocks(t, buf.Bytes())
	require.Equal(t, format.BlockVcDataDynAlias2, blocks[3].blockType)
}
