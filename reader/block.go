package reader

import (
	"fmt"
	"iter"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
	"github.com/arloliu/wavefst/section"
)

// BlockChanges iterates the events of one value-change block in
// (time, handle) order. Alias fan-out events follow their canonical event
// at the same timestamp with AliasOf set to the chain-owning handle.
type BlockChanges struct {
	beginTime uint64
	endTime   uint64
	timeZero  uint64
	times     []uint64
	frame     []format.SignalValue

	cursors []handleCursor
	// schedule buckets cursor indices by the time index of their next
	// pending record.
	schedule [][]int
	// aliases maps a canonical handle to the handles whose index slots
	// point at its chain, in ascending handle order.
	aliases map[format.Handle][]format.Handle

	timeIndex    int
	bucket       []int
	bucketPos    int
	bucketActive bool
	pending      []format.ValueChange
	pendingPos   int
}

type handleCursor struct {
	handle format.Handle
	cursor *section.ChainCursor
}

// BeginTime returns the block's first timestamp before the time-zero offset.
func (bc *BlockChanges) BeginTime() uint64 {
	return bc.beginTime
}

// EndTime returns the block's last timestamp before the time-zero offset.
func (bc *BlockChanges) EndTime() uint64 {
	return bc.endTime
}

// Frame returns the signal state at the block's begin time, indexed by
// handle-1. Variable-length handles have no frame entry and stay zero.
func (bc *BlockChanges) Frame() []format.SignalValue {
	return bc.frame
}

// All returns a single-use iterator over the block's events. Iteration
// stops after yielding the first decode error.
func (bc *BlockChanges) All() iter.Seq2[format.ValueChange, error] {
	return func(yield func(format.ValueChange, error) bool) {
		for {
			vc, ok, err := bc.next()
			if err != nil {
				yield(format.ValueChange{}, err)

				return
			}
			if !ok || !yield(vc, nil) {
				return
			}
		}
	}
}

// next drives the schedule: drain pending alias events first, then the
// sorted bucket of the current time index, rescheduling each cursor at the
// time index of its following record.
func (bc *BlockChanges) next() (format.ValueChange, bool, error) {
	for {
		if bc.pendingPos < len(bc.pending) {
			vc := bc.pending[bc.pendingPos]
			bc.pendingPos++

			return vc, true, nil
		}
		bc.pending = bc.pending[:0]
		bc.pendingPos = 0

		if bc.timeIndex >= len(bc.times) {
			return format.ValueChange{}, false, nil
		}

		if !bc.bucketActive {
			bc.bucket = bc.schedule[bc.timeIndex]
			bc.schedule[bc.timeIndex] = nil
			sort.Ints(bc.bucket)
			bc.bucketPos = 0
			bc.bucketActive = true
		}
		if bc.bucketPos >= len(bc.bucket) {
			bc.bucketActive = false
			// A zero-delta record reschedules its cursor at the current
			// time index; pick those up before advancing.
			if len(bc.schedule[bc.timeIndex]) == 0 {
				bc.timeIndex++
			}

			continue
		}

		ci := bc.bucket[bc.bucketPos]
		bc.bucketPos++
		hc := &bc.cursors[ci]

		value, err := hc.cursor.ReadValue(bc.timeIndex)
		if err != nil {
			return format.ValueChange{}, false, err
		}

		delta, ok, err := hc.cursor.NextDelta()
		if err != nil {
			return format.ValueChange{}, false, err
		}
		if ok {
			// Compare in unsigned arithmetic so a wild delta cannot wrap the
			// index negative. timeIndex < len(times) holds here.
			if delta > uint64(len(bc.times)-1-bc.timeIndex) {
				return format.ValueChange{}, false,
					fmt.Errorf("%w: chain delta exceeds time table", errs.ErrCorruptData)
			}
			nextIdx := bc.timeIndex + int(delta)
			bc.schedule[nextIdx] = append(bc.schedule[nextIdx], ci)
		}

		ts := bc.times[bc.timeIndex] + bc.timeZero
		for _, alias := range bc.aliases[hc.handle] {
			bc.pending = append(bc.pending, format.ValueChange{
				Time:    ts,
				Handle:  alias,
				AliasOf: hc.handle,
				Value:   value.Clone(),
			})
		}

		return format.ValueChange{Time: ts, Handle: hc.handle, Value: value}, true, nil
	}
}

// parseVcBlock decodes one value-change payload. The fixed fields sit at
// the front; the time table, its trailer and the index length are located
// by walking backwards from the block end.
func (r *Reader) parseVcBlock(blockType format.BlockType, payload []byte) (*BlockChanges, error) {
	if len(payload) < section.MinVcPayloadLen {
		return nil, fmt.Errorf("%w: value-change payload is %d bytes", errs.ErrCorruptData, len(payload))
	}

	beginTime := bigEndian.Uint64(payload[0:8])
	endTime := bigEndian.Uint64(payload[8:16])
	// payload[16:24] is the required-memory hint; nothing to validate.

	frameRaw, frameMaxHandle, consumed, err := section.DecodeFrameSection(payload[24:])
	if err != nil {
		return nil, err
	}
	off := 24 + consumed

	vcMaxHandle, n, err := encoding.Uvarint(payload[off:])
	if err != nil {
		return nil, fmt.Errorf("vc max handle: %w", err)
	}
	off += n
	if vcMaxHandle > uint64(len(r.geoms)) {
		return nil, fmt.Errorf("%w: block references %d handles, geometry has %d",
			errs.ErrCorruptData, vcMaxHandle, len(r.geoms))
	}

	if off >= len(payload)-section.VcTrailerLen {
		return nil, fmt.Errorf("%w: value-change payload ends before pack marker", errs.ErrCorruptData)
	}
	pack, ok := format.ParsePackMarker(payload[off])
	if !ok {
		return nil, fmt.Errorf("%w: unknown pack marker 0x%02x", errs.ErrCorruptData, payload[off])
	}
	off++
	chainStart := off

	trailer, err := section.DecodeTrailer(payload[len(payload)-section.VcTrailerLen:])
	if err != nil {
		return nil, err
	}
	timeEnd := len(payload) - section.VcTrailerLen
	if trailer.CompressedLen > uint64(timeEnd) {
		return nil, fmt.Errorf("%w: time section exceeds block bounds", errs.ErrCorruptData)
	}
	timeStart := timeEnd - int(trailer.CompressedLen)

	indexLenPos := timeStart - 8
	if indexLenPos < chainStart {
		return nil, fmt.Errorf("%w: no room for chain index length", errs.ErrCorruptData)
	}
	indexLen := bigEndian.Uint64(payload[indexLenPos : indexLenPos+8])
	if indexLen > uint64(indexLenPos-chainStart) {
		return nil, fmt.Errorf("%w: chain index exceeds block bounds", errs.ErrCorruptData)
	}
	indexStart := indexLenPos - int(indexLen)
	chainBuf := payload[chainStart:indexStart]

	slots, err := section.DecodeChainIndex(payload[indexStart:indexLenPos], blockType,
		uint64(len(chainBuf)), vcMaxHandle)
	if err != nil {
		return nil, err
	}

	times, err := section.DecodeTimeSection(payload[timeStart:timeEnd],
		trailer.UncompressedLen, trailer.ItemCount)
	if err != nil {
		return nil, err
	}

	frame, err := section.DecodeFrameValues(frameRaw, r.geoms, frameMaxHandle)
	if err != nil {
		return nil, err
	}

	chains, err := r.expandChains(chainBuf, slots, pack)
	if err != nil {
		return nil, err
	}

	bc := &BlockChanges{
		beginTime: beginTime,
		endTime:   endTime,
		timeZero:  r.header.TimeZero,
		times:     times,
		frame:     frame,
		schedule:  make([][]int, len(times)),
		aliases:   make(map[format.Handle][]format.Handle),
	}

	for i, slot := range slots {
		switch slot.Kind {
		case section.SlotData:
			cursor := section.NewChainCursor(chains[i], r.geoms[i])
			delta, ok, err := cursor.NextDelta()
			if err != nil {
				return nil, err
			}
			if ok {
				if delta >= uint64(len(times)) {
					return nil, fmt.Errorf("%w: chain delta exceeds time table", errs.ErrCorruptData)
				}
				bc.schedule[delta] = append(bc.schedule[delta], len(bc.cursors))
			}
			bc.cursors = append(bc.cursors, handleCursor{
				handle: format.Handle(i + 1),
				cursor: cursor,
			})
		case section.SlotAlias:
			bc.aliases[slot.AliasOf] = append(bc.aliases[slot.AliasOf], format.Handle(i+1))
		}
	}

	return bc, nil
}

// expandChains decompresses every data chain, concurrently when the
// parallel-chains option allows it.
func (r *Reader) expandChains(chainBuf []byte, slots []section.ChainSlot, pack format.Compression) ([][]byte, error) {
	chains := make([][]byte, len(slots))
	var jobs []int
	for i, slot := range slots {
		if slot.Kind == section.SlotData {
			jobs = append(jobs, i)
		}
	}

	expand := func(i int) error {
		slot := slots[i]
		data, err := section.DecodeChainData(chainBuf[slot.Offset:slot.Offset+slot.Length], pack)
		if err != nil {
			return fmt.Errorf("chain for handle %d: %w", i+1, err)
		}
		chains[i] = data

		return nil
	}

	if r.cfg.parallelChains > 1 && len(jobs) > 1 {
		var g errgroup.Group
		g.SetLimit(r.cfg.parallelChains)
		for _, i := range jobs {
			g.Go(func() error { return expand(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		return chains, nil
	}

	for _, i := range jobs {
		if err := expand(i); err != nil {
			return nil, err
		}
	}

	return chains, nil
}
