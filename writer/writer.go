// Package writer produces FST output streams: hierarchy and geometry
// registration, buffered value changes and block-by-block emission.
package writer

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/endian"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
	"github.com/arloliu/wavefst/internal/bitpack"
	"github.com/arloliu/wavefst/internal/options"
	"github.com/arloliu/wavefst/internal/pool"
	"github.com/arloliu/wavefst/section"
	"github.com/arloliu/wavefst/source"
)

var (
	bigEndian    = endian.GetBigEndianEngine()
	littleEndian = endian.GetLittleEndianEngine()
)

// Writer incrementally builds an FST stream on a seekable sink.
//
// The lifecycle has three phases: declare the hierarchy (BeginScope,
// AddVariable, AddAlias, AddAttribute), freeze it with WriteHeader, then
// emit changes and finally call Finish. Writer is not safe for concurrent
// use.
type Writer struct {
	sink io.WriteSeeker
	out  io.WriteSeeker
	// wrap buffers the whole stream when the zlib envelope is enabled.
	wrap *source.Buffer
	cfg  config

	headerWritten bool
	finished      bool
	headerPatch   int64 // absolute position of the header payload

	scopes     []section.ScopeDecl
	vars       []section.VarDecl
	attrs      []section.AttrDecl
	items      []section.HierarchyItem
	scopeStack []int

	geoms         []format.Geometry
	aliasOf       []format.Handle // 0 = canonical
	aliasChildren map[format.Handle][]format.Handle
	nextHandle    format.Handle

	frame    frameState
	pending  []pendingChange
	lastTime uint64
	haveTime bool

	blackouts []format.BlackoutEvent
	endTime   uint64
	vcBlocks  uint64
}

type pendingChange struct {
	time   uint64
	handle format.Handle
	value  format.SignalValue
}

// New creates a Writer on sink. The sink must support seeking; the writer
// back-patches block lengths and header fields in place.
func New(sink io.WriteSeeker, opts ...Option) (*Writer, error) {
	cfg := defaultConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	w := &Writer{
		sink:          sink,
		out:           sink,
		cfg:           cfg,
		aliasChildren: make(map[format.Handle][]format.Handle),
		nextHandle:    1,
	}
	if cfg.zWrapper {
		w.wrap = &source.Buffer{}
		w.out = w.wrap
	}

	return w, nil
}

// BeginScope opens a nested scope. The component string may be empty.
func (w *Writer) BeginScope(scopeType format.ScopeType, name, component string) error {
	if err := w.metadataMutable(); err != nil {
		return err
	}
	if !scopeType.IsValid() {
		return fmt.Errorf("%w: scope type %d", errs.ErrInvalidValue, uint8(scopeType))
	}

	parent := -1
	if len(w.scopeStack) > 0 {
		parent = w.scopeStack[len(w.scopeStack)-1]
	}
	w.scopes = append(w.scopes, section.ScopeDecl{
		Type:      scopeType,
		Name:      name,
		Component: component,
		Parent:    parent,
	})
	index := len(w.scopes) - 1
	w.items = append(w.items, section.HierarchyItem{Kind: section.ItemScopeBegin, Index: index})
	w.scopeStack = append(w.scopeStack, index)

	return nil
}

// EndScope closes the innermost open scope.
func (w *Writer) EndScope() error {
	if err := w.metadataMutable(); err != nil {
		return err
	}
	if len(w.scopeStack) == 0 {
		return errs.ErrScopeUnderflow
	}
	w.scopeStack = w.scopeStack[:len(w.scopeStack)-1]
	w.items = append(w.items, section.HierarchyItem{Kind: section.ItemScopeEnd})

	return nil
}

// AddVariable declares a signal inside the innermost open scope and returns
// its newly assigned handle.
func (w *Writer) AddVariable(varType format.VarType, dir format.VarDir, name string, geom format.Geometry) (format.Handle, error) {
	if err := w.metadataMutable(); err != nil {
		return 0, err
	}
	if len(w.scopeStack) == 0 {
		return 0, fmt.Errorf("%w: variables require an open scope", errs.ErrInvalidState)
	}
	if geom.Kind == format.GeomFixed && geom.Width == 0 {
		return 0, fmt.Errorf("%w: zero-width variable %q", errs.ErrInvalidValue, name)
	}

	handle := w.nextHandle
	w.nextHandle++

	w.geoms = append(w.geoms, geom)
	w.aliasOf = append(w.aliasOf, 0)
	w.frame.register(geom)

	w.vars = append(w.vars, section.VarDecl{
		Type:      varType,
		Direction: dir,
		Name:      name,
		Length:    varLength(geom),
		Handle:    handle,
		Scope:     w.scopeStack[len(w.scopeStack)-1],
	})
	w.items = append(w.items, section.HierarchyItem{Kind: section.ItemVar, Index: len(w.vars) - 1})

	return handle, nil
}

// AddAlias declares a signal that shares the value stream of an existing
// handle. The alias gets its own handle but owns no chain data; readers fan
// its events out from the canonical handle.
func (w *Writer) AddAlias(varType format.VarType, dir format.VarDir, name string, of format.Handle) (format.Handle, error) {
	if err := w.metadataMutable(); err != nil {
		return 0, err
	}
	if len(w.scopeStack) == 0 {
		return 0, fmt.Errorf("%w: aliases require an open scope", errs.ErrInvalidState)
	}
	canonical, err := w.canonicalHandle(of)
	if err != nil {
		return 0, err
	}

	handle := w.nextHandle
	w.nextHandle++

	geom := w.geoms[canonical-1]
	w.geoms = append(w.geoms, geom)
	w.aliasOf = append(w.aliasOf, canonical)
	w.aliasChildren[canonical] = append(w.aliasChildren[canonical], handle)
	w.frame.register(geom)
	w.frame.cloneFrom(canonical, handle)

	w.vars = append(w.vars, section.VarDecl{
		Type:      varType,
		Direction: dir,
		Name:      name,
		Length:    varLength(geom),
		Handle:    canonical,
		AliasOf:   canonical,
		Scope:     w.scopeStack[len(w.scopeStack)-1],
		IsAlias:   true,
	})
	w.items = append(w.items, section.HierarchyItem{Kind: section.ItemVar, Index: len(w.vars) - 1})

	return handle, nil
}

// AddAttribute attaches an attribute to the innermost open scope, or to the
// root when no scope is open.
func (w *Writer) AddAttribute(attrType, subtype uint8, name string, argument uint64) error {
	if err := w.metadataMutable(); err != nil {
		return err
	}

	scope := -1
	if len(w.scopeStack) > 0 {
		scope = w.scopeStack[len(w.scopeStack)-1]
	}
	w.attrs = append(w.attrs, section.AttrDecl{
		Type:     attrType,
		Subtype:  subtype,
		Name:     name,
		Argument: argument,
		Scope:    scope,
	})
	w.items = append(w.items, section.HierarchyItem{Kind: section.ItemAttrBegin, Index: len(w.attrs) - 1})
	w.items = append(w.items, section.HierarchyItem{Kind: section.ItemAttrEnd})

	return nil
}

// MaxHandle returns the highest handle assigned so far.
func (w *Writer) MaxHandle() format.Handle {
	return w.nextHandle - 1
}

// WriteHeader freezes the hierarchy and emits the header, geometry and
// hierarchy blocks. All scopes must be closed.
func (w *Writer) WriteHeader() error {
	if w.finished {
		return errs.ErrWriterFinished
	}
	if w.headerWritten {
		return errs.ErrHeaderAlreadyWritten
	}
	if len(w.scopeStack) != 0 {
		return fmt.Errorf("%w: %d scopes still open", errs.ErrInvalidState, len(w.scopeStack))
	}

	header := section.Header{
		StartTime:         w.cfg.startTime,
		EndTime:           w.cfg.startTime,
		ScopeCount:        uint64(len(w.scopes)),
		VarCount:          uint64(len(w.vars)),
		MaxHandle:         uint64(w.nextHandle - 1),
		TimescaleExponent: w.cfg.timescaleExponent,
		Version:           w.cfg.version,
		Date:              w.cfg.date,
		FileType:          w.cfg.fileType,
		TimeZero:          w.cfg.timeZero,
	}

	pos, err := w.out.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	w.headerPatch = pos + section.EnvelopeLen

	if err := section.WriteBlock(w.out, format.BlockHeader, header.Encode()); err != nil {
		return fmt.Errorf("write header block: %w", err)
	}

	geomPayload, err := section.EncodeGeometryBlock(w.geoms)
	if err != nil {
		return err
	}
	if err := section.WriteBlock(w.out, format.BlockGeometry, geomPayload); err != nil {
		return fmt.Errorf("write geometry block: %w", err)
	}

	hier := &section.Hierarchy{
		Items:  w.items,
		Scopes: w.scopes,
		Vars:   w.vars,
		Attrs:  w.attrs,
	}
	tokens, err := hier.EncodeTokens()
	if err != nil {
		return err
	}
	blockType, payload, err := section.EncodeHierarchyBlock(tokens, w.cfg.hierarchyCompression)
	if err != nil {
		return err
	}
	if err := section.WriteBlock(w.out, blockType, payload); err != nil {
		return fmt.Errorf("write hierarchy block: %w", err)
	}

	w.headerWritten = true
	w.endTime = w.cfg.startTime

	return nil
}

// EmitChange buffers one value change. The value is validated against the
// handle's geometry; timestamps must be non-decreasing across calls.
func (w *Writer) EmitChange(time uint64, handle format.Handle, value format.SignalValue) error {
	if w.finished {
		return errs.ErrWriterFinished
	}
	if !w.headerWritten {
		return errs.ErrHeaderNotWritten
	}
	if handle == 0 || handle >= w.nextHandle {
		return fmt.Errorf("%w: %d", errs.ErrUnknownHandle, handle)
	}
	if w.haveTime && time < w.lastTime {
		return fmt.Errorf("%w: %d after %d", errs.ErrTimeRegression, time, w.lastTime)
	}

	// Roll the block over at a timestamp boundary once enough changes piled
	// up, so one timestamp never straddles two blocks.
	if w.cfg.flushThreshold > 0 && len(w.pending) >= w.cfg.flushThreshold &&
		w.haveTime && time > w.lastTime {
		if err := w.Flush(); err != nil {
			return err
		}
	}

	canonical := handle
	if w.aliasOf[handle-1] != 0 {
		canonical = w.aliasOf[handle-1]
	}
	converted, err := convertValue(value, w.geoms[canonical-1])
	if err != nil {
		return fmt.Errorf("handle %d: %w", handle, err)
	}

	w.pending = append(w.pending, pendingChange{time: time, handle: canonical, value: converted})
	w.lastTime = time
	w.haveTime = true

	w.frame.update(canonical, converted)
	for _, child := range w.aliasChildren[canonical] {
		w.frame.update(child, converted)
	}

	return nil
}

// EmitBlackout records a dump-activity transition written out on Finish.
func (w *Writer) EmitBlackout(time uint64, active bool) error {
	if w.finished {
		return errs.ErrWriterFinished
	}
	if !w.headerWritten {
		return errs.ErrHeaderNotWritten
	}
	w.blackouts = append(w.blackouts, format.BlackoutEvent{Active: active, Time: time})

	return nil
}

// Flush writes all buffered changes as one value-change block. Flushing with
// nothing buffered is a no-op.
func (w *Writer) Flush() error {
	if w.finished {
		return errs.ErrWriterFinished
	}
	if len(w.pending) == 0 {
		return nil
	}

	payload, err := w.buildVcBlock()
	if err != nil {
		return err
	}
	blockType := w.cfg.vcBlockType()
	if err := section.WriteBlock(w.out, blockType, payload.Bytes()); err != nil {
		pool.PutBlockBuffer(payload)

		return fmt.Errorf("write %v block: %w", blockType, err)
	}
	pool.PutBlockBuffer(payload)

	w.vcBlocks++
	w.pending = w.pending[:0]
	w.frame.commit()

	return nil
}

// Finish flushes pending changes, writes the blackout block, back-patches
// the header and, when configured, applies the zlib envelope. The writer is
// unusable afterwards.
func (w *Writer) Finish() error {
	if w.finished {
		return errs.ErrWriterFinished
	}
	if !w.headerWritten {
		return errs.ErrHeaderNotWritten
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(w.blackouts) > 0 {
		if err := section.WriteBlock(w.out, format.BlockBlackout, section.EncodeBlackoutBlock(w.blackouts)); err != nil {
			return fmt.Errorf("write blackout block: %w", err)
		}
	}

	if err := w.patchHeader(); err != nil {
		return err
	}
	if w.wrap != nil {
		if err := w.writeZWrapper(); err != nil {
			return err
		}
	}
	w.finished = true

	return nil
}

func (w *Writer) patchHeader() error {
	end, err := w.out.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	var buf [8]byte
	bigEndian.PutUint64(buf[:], w.endTime)
	if _, err := w.out.Seek(w.headerPatch+section.HeaderEndTimeOffset, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.out.Write(buf[:]); err != nil {
		return err
	}

	bigEndian.PutUint64(buf[:], w.vcBlocks)
	if _, err := w.out.Seek(w.headerPatch+section.HeaderVcSectionCountOffset, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.out.Write(buf[:]); err != nil {
		return err
	}

	_, err = w.out.Seek(end, io.SeekStart)

	return err
}

// writeZWrapper deflates the buffered stream and emits it as one envelope
// block on the real sink.
func (w *Writer) writeZWrapper() error {
	inner := w.wrap.Bytes()
	compressed, err := compress.NewZlibCodec().Compress(inner)
	if err != nil {
		return err
	}

	payload := make([]byte, 0, len(compressed)+16)
	payload = bigEndian.AppendUint64(payload, uint64(len(inner)))
	payload = bigEndian.AppendUint64(payload, uint64(len(compressed)))
	payload = append(payload, compressed...)

	return section.WriteBlock(w.sink, format.BlockZWrapper, payload)
}

// buildVcBlock assembles one value-change block payload from the buffered
// changes. The returned buffer belongs to the block pool.
func (w *Writer) buildVcBlock() (*pool.ByteBuffer, error) {
	sort.SliceStable(w.pending, func(i, j int) bool {
		if w.pending[i].time != w.pending[j].time {
			return w.pending[i].time < w.pending[j].time
		}

		return w.pending[i].handle < w.pending[j].handle
	})

	maxHandle := int(w.nextHandle - 1)
	if maxHandle == 0 {
		return nil, fmt.Errorf("%w: no variables declared", errs.ErrInvalidState)
	}

	// Distinct timestamps become the block's time table; chain records refer
	// to them by index.
	times, releaseTimes := pool.GetUint64Slice(len(w.pending))
	defer releaseTimes()
	times = times[:0]
	for _, pc := range w.pending {
		if len(times) == 0 || times[len(times)-1] != pc.time {
			times = append(times, pc.time)
		}
	}
	timeIndex := make(map[uint64]int, len(times))
	for i, ts := range times {
		timeIndex[ts] = i
	}

	frameRaw, err := section.BuildFrameBytes(w.frame.snapshot(), w.geoms)
	if err != nil {
		return nil, err
	}
	frameEnc, err := w.encodeFrame(frameRaw)
	if err != nil {
		return nil, err
	}
	frameMaxHandle := uint64(0)
	if frameEnc.UncompressedLen > 0 {
		frameMaxHandle = uint64(maxHandle)
	}
	requiredMemory := frameEnc.UncompressedLen

	events := make([][]int, maxHandle)
	for i, pc := range w.pending {
		slot := int(pc.handle - 1)
		events[slot] = append(events[slot], i)
	}

	var chainBuffer []byte
	offsets := make([]int64, maxHandle)
	for i := range offsets {
		offsets[i] = -1
	}

	for slot := range maxHandle {
		if len(events[slot]) == 0 {
			continue
		}

		chainBytes, err := w.encodeChain(events[slot], timeIndex)
		if err != nil {
			return nil, err
		}
		requiredMemory += uint64(len(chainBytes))

		storedLen, chainPayload, err := section.EncodeChainPayload(chainBytes, w.cfg.chainCompression)
		if err != nil {
			return nil, err
		}
		offsets[slot] = int64(len(chainBuffer))
		chainBuffer = section.AppendChain(chainBuffer, storedLen, chainPayload)
	}

	entries := make([]section.ChainIndexEntry, maxHandle)
	for slot := range maxHandle {
		switch {
		case w.aliasOf[slot] != 0:
			entries[slot] = section.ChainIndexEntry{Kind: section.SlotAlias, Target: w.aliasOf[slot]}
		case offsets[slot] >= 0:
			entries[slot] = section.ChainIndexEntry{Kind: section.SlotData, Offset: uint64(offsets[slot])}
		default:
			entries[slot] = section.ChainIndexEntry{Kind: section.SlotEmpty}
		}
	}
	indexBytes, err := section.EncodeChainIndex(entries, w.cfg.vcBlockType())
	if err != nil {
		return nil, err
	}

	timeEnc, err := section.EncodeTimeSection(times, w.cfg.timeZlib)
	if err != nil {
		return nil, err
	}

	beginTime := times[0]
	w.endTime = times[len(times)-1]

	bb := pool.GetBlockBuffer()
	head := make([]byte, 0, 64)
	head = bigEndian.AppendUint64(head, beginTime)
	head = bigEndian.AppendUint64(head, w.endTime)
	head = bigEndian.AppendUint64(head, requiredMemory)
	bb.MustWrite(head)
	bb.MustWrite(frameEnc.AppendFrameSection(nil, frameMaxHandle))
	bb.MustWrite(encoding.AppendUvarint(nil, uint64(maxHandle)))
	bb.MustWrite([]byte{w.cfg.chainCompression.PackMarker()})
	bb.MustWrite(chainBuffer)
	bb.MustWrite(indexBytes)
	head = bigEndian.AppendUint64(head[:0], uint64(len(indexBytes)))
	bb.MustWrite(head)
	bb.MustWrite(timeEnc.Payload)
	bb.MustWrite(timeEnc.AppendTrailer(nil))

	return bb, nil
}

// encodeChain serializes one handle's records. indices address w.pending in
// (time, handle) order.
func (w *Writer) encodeChain(indices []int, timeIndex map[uint64]int) ([]byte, error) {
	var chain []byte
	prevIdx := -1
	for _, i := range indices {
		pc := w.pending[i]
		idx := timeIndex[pc.time]
		delta := uint64(idx)
		if prevIdx >= 0 {
			delta = uint64(idx - prevIdx)
		}
		prevIdx = idx

		var err error
		switch pc.value.Kind {
		case format.KindBit:
			chain, err = section.AppendBitChange(chain, delta, pc.value.Bit)
			if err != nil {
				return nil, err
			}
		case format.KindVector:
			if packed, ok := bitpack.Pack(nil, pc.value.Data); ok {
				chain = section.AppendPackedChange(chain, delta, packed)
			} else {
				chain = section.AppendVectorChange(chain, delta, pc.value.Data)
			}
		case format.KindReal:
			chain = section.AppendRealChange(chain, delta, pc.value.Real)
		case format.KindBytes:
			chain = section.AppendVarLenChange(chain, delta, pc.value.Data)
		default:
			return nil, fmt.Errorf("%w: pending change kind %v", errs.ErrInvalidState, pc.value.Kind)
		}
	}

	return chain, nil
}

func (w *Writer) encodeFrame(frameRaw []byte) (section.FrameEncoding, error) {
	if w.cfg.frameZlib {
		return section.EncodeFrameSection(frameRaw)
	}

	fe := section.FrameEncoding{UncompressedLen: uint64(len(frameRaw))}
	if len(frameRaw) > 0 {
		fe.Payload = frameRaw
		fe.CompressedLen = fe.UncompressedLen
	}

	return fe, nil
}

func (w *Writer) metadataMutable() error {
	if w.finished {
		return errs.ErrWriterFinished
	}
	if w.headerWritten {
		return errs.ErrHeaderAlreadyWritten
	}

	return nil
}

// canonicalHandle follows alias links to the payload-owning handle. Writer
// aliases always point one hop to a canonical handle, so a single step
// suffices; the range check guards against stale handles.
func (w *Writer) canonicalHandle(h format.Handle) (format.Handle, error) {
	if h == 0 || h >= w.nextHandle {
		return 0, fmt.Errorf("%w: %d", errs.ErrUnknownHandle, h)
	}
	if target := w.aliasOf[h-1]; target != 0 {
		return target, nil
	}

	return h, nil
}

// varLength maps a geometry to the bit length stored in the hierarchy entry.
func varLength(geom format.Geometry) uint32 {
	switch geom.Kind {
	case format.GeomFixed:
		return geom.Width
	case format.GeomReal:
		return 8
	default:
		return 0
	}
}

// convertValue normalizes a caller-supplied value to the canonical pending
// form for the geometry: single state characters for 1-bit signals, ASCII
// vectors for fixed widths, floats for reals, raw bytes for variable-length
// signals. The result owns its payload.
func convertValue(v format.SignalValue, geom format.Geometry) (format.SignalValue, error) {
	switch geom.Kind {
	case format.GeomFixed:
		if geom.Width == 1 {
			return convertBit(v)
		}

		return convertVector(v, geom.Width)

	case format.GeomReal:
		switch v.Kind {
		case format.KindReal:
			return v, nil
		case format.KindBytes:
			if len(v.Data) != 8 {
				return format.SignalValue{}, fmt.Errorf("%w: real signal expects 8 bytes, got %d",
					errs.ErrInvalidValue, len(v.Data))
			}

			return format.RealValue(math.Float64frombits(littleEndian.Uint64(v.Data))), nil
		default:
			return format.SignalValue{}, fmt.Errorf("%w: %v value for real signal", errs.ErrInvalidValue, v.Kind)
		}

	default: // variable length
		switch v.Kind {
		case format.KindBytes, format.KindVector:
			return format.BytesValue(append([]byte(nil), v.Data...)), nil
		case format.KindBit:
			return format.BytesValue([]byte{v.Bit}), nil
		default:
			return format.SignalValue{}, fmt.Errorf("%w: %v value for variable-length signal",
				errs.ErrInvalidValue, v.Kind)
		}
	}
}

func convertBit(v format.SignalValue) (format.SignalValue, error) {
	var ch byte
	switch v.Kind {
	case format.KindBit:
		ch = v.Bit
	case format.KindVector, format.KindBytes:
		if len(v.Data) != 1 {
			return format.SignalValue{}, fmt.Errorf("%w: %d chars for a 1-bit signal",
				errs.ErrInvalidValue, len(v.Data))
		}
		ch = v.Data[0]
	case format.KindPackedBits:
		if v.Width != 1 || len(v.Data) == 0 {
			return format.SignalValue{}, fmt.Errorf("%w: packed payload does not describe one bit",
				errs.ErrInvalidValue)
		}
		ch = '0'
		if v.Data[0]&0x80 != 0 {
			ch = '1'
		}
	default:
		return format.SignalValue{}, fmt.Errorf("%w: %v value for 1-bit signal", errs.ErrInvalidValue, v.Kind)
	}

	out := format.BitValue(ch)
	if err := out.Validate(); err != nil {
		return format.SignalValue{}, err
	}

	return out, nil
}

func convertVector(v format.SignalValue, width uint32) (format.SignalValue, error) {
	switch v.Kind {
	case format.KindVector, format.KindBytes:
		if uint32(len(v.Data)) != width {
			return format.SignalValue{}, fmt.Errorf("%w: vector is %d chars, geometry wants %d",
				errs.ErrInvalidValue, len(v.Data), width)
		}

		return format.VectorValue(append([]byte(nil), v.Data...)), nil

	case format.KindPackedBits:
		if v.Width != width {
			return format.SignalValue{}, fmt.Errorf("%w: packed width %d, geometry wants %d",
				errs.ErrInvalidValue, v.Width, width)
		}
		if len(v.Data) != format.PackedLen(width) {
			return format.SignalValue{}, fmt.Errorf("%w: packed payload is %d bytes, expected %d",
				errs.ErrInvalidValue, len(v.Data), format.PackedLen(width))
		}

		return format.VectorValue(bitpack.Unpack(nil, v.Data, width)), nil

	default:
		return format.SignalValue{}, fmt.Errorf("%w: %v value for %d-bit vector",
			errs.ErrInvalidValue, v.Kind, width)
	}
}

