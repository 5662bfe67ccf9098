package section

import (
	"fmt"

	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

// ChainIndexEntry describes the chain layout of one handle when writing the
// index table of a value-change block.
type ChainIndexEntry struct {
	Kind ChainSlotKind
	// Offset locates a data chain relative to the start of the chain buffer.
	Offset uint64
	// Target is the 1-based canonical handle an alias entry points at.
	Target format.Handle
}

// ChainSlotKind discriminates decoded chain index slots.
type ChainSlotKind uint8

const (
	SlotEmpty ChainSlotKind = iota
	SlotData
	SlotAlias
)

// ChainSlot is one decoded index slot after offset, length and alias
// resolution. Slot i describes handle i+1.
type ChainSlot struct {
	Kind   ChainSlotKind
	Offset uint64
	Length uint64
	// AliasOf is the 1-based canonical handle whose chain serves this slot;
	// zero for slots that own a payload or have none.
	AliasOf format.Handle
}

// EncodeChainIndex serializes the index table in the flavor selected by
// blockType.
//
// The basic flavor collapses empty runs into a single even varint, stores
// data entries as the offset delta (biased by PackMarkerPrefix) with the low
// bit set, and writes aliases as a zero varint followed by the target handle.
// The dynamic-alias-2 flavor keeps the empty runs but stores data and alias
// entries as sign-extended varints whose first byte has the low bit set.
func EncodeChainIndex(entries []ChainIndexEntry, blockType format.BlockType) ([]byte, error) {
	if !blockType.IsValueChange() {
		return nil, fmt.Errorf("%w: %v block carries no chain index", errs.ErrInvalidValue, blockType)
	}
	dynAlias2 := blockType == format.BlockVcDataDynAlias2

	var out []byte
	emptyRun := uint64(0)
	lastOffset := uint64(0)
	lastAlias := format.Handle(0)
	seenData := false

	flushEmpties := func() {
		if emptyRun > 0 {
			out = encoding.AppendUvarint(out, emptyRun<<1)
			emptyRun = 0
		}
	}

	for i, entry := range entries {
		switch entry.Kind {
		case SlotEmpty:
			emptyRun++

		case SlotData:
			flushEmpties()
			absolute := entry.Offset + PackMarkerPrefix
			delta := absolute
			if seenData {
				if absolute < lastOffset {
					return nil, fmt.Errorf("%w: chain offsets must be non-decreasing at handle %d",
						errs.ErrInvalidValue, i+1)
				}
				delta = absolute - lastOffset
			}
			if dynAlias2 {
				out = encoding.AppendSvarint(out, int64(delta)<<1|1)
				lastAlias = 0
			} else {
				out = encoding.AppendUvarint(out, delta<<1|1)
			}
			lastOffset = absolute
			seenData = true

		case SlotAlias:
			if entry.Target == 0 {
				return nil, fmt.Errorf("%w: alias handle must be greater than zero", errs.ErrInvalidValue)
			}
			flushEmpties()
			if dynAlias2 {
				if entry.Target == lastAlias {
					// shval zero repeats the previous alias target.
					out = encoding.AppendSvarint(out, 1)
				} else {
					out = encoding.AppendSvarint(out, -int64(entry.Target)<<1|1)
					lastAlias = entry.Target
				}
			} else {
				out = encoding.AppendUvarint(out, 0)
				out = encoding.AppendUvarint(out, uint64(entry.Target))
			}
		}
	}
	flushEmpties()

	return out, nil
}

// chainEntryTmp mirrors the raw decode before offsets and lengths are
// resolved. aliasTarget is a 0-based slot index.
type chainEntryTmp struct {
	kind        ChainSlotKind
	offset      uint64
	aliasTarget int
}

// DecodeChainIndex parses the index table of a value-change block and
// resolves per-slot offsets, lengths and canonical alias handles.
//
// blockType selects the encoding: the dynamic-alias-2 form additionally
// stores sign-extended varint entries whose first byte has the low bit set.
// totalChainLen is the size of the chain buffer the offsets refer to, and
// maxHandle pads the result so slot i always describes handle i+1.
func DecodeChainIndex(data []byte, blockType format.BlockType, totalChainLen, maxHandle uint64) ([]ChainSlot, error) {
	var entries []chainEntryTmp
	lastOffset := uint64(0)
	lastAliasTarget := -1

	for len(data) > 0 {
		if blockType == format.BlockVcDataDynAlias2 && data[0]&1 != 0 {
			raw, n, err := encoding.Svarint(data)
			if err != nil {
				return nil, fmt.Errorf("chain index signed entry: %w", err)
			}
			data = data[n:]

			shval := raw >> 1
			switch {
			case shval > 0:
				lastOffset += uint64(shval)
				entries = append(entries, chainEntryTmp{kind: SlotData, offset: lastOffset})
				lastAliasTarget = -1
			case shval < 0:
				target := uint64(-shval) - 1
				entries = append(entries, chainEntryTmp{kind: SlotAlias, aliasTarget: int(target)})
				lastAliasTarget = int(target)
			case lastAliasTarget >= 0:
				entries = append(entries, chainEntryTmp{kind: SlotAlias, aliasTarget: lastAliasTarget})
			default:
				entries = append(entries, chainEntryTmp{kind: SlotEmpty})
			}

			continue
		}

		value, n, err := encoding.Uvarint(data)
		if err != nil {
			return nil, fmt.Errorf("chain index entry: %w", err)
		}
		data = data[n:]

		if value == 0 {
			alias, n, err := encoding.Uvarint(data)
			if err != nil {
				return nil, fmt.Errorf("chain index alias target: %w", err)
			}
			data = data[n:]
			if alias == 0 {
				entries = append(entries, chainEntryTmp{kind: SlotEmpty})
				lastAliasTarget = -1
			} else {
				entries = append(entries, chainEntryTmp{kind: SlotAlias, aliasTarget: int(alias - 1)})
				lastAliasTarget = int(alias - 1)
			}

			continue
		}

		if value&1 == 0 {
			for i := uint64(0); i < value>>1; i++ {
				entries = append(entries, chainEntryTmp{kind: SlotEmpty})
			}

			continue
		}

		lastOffset += value >> 1
		entries = append(entries, chainEntryTmp{kind: SlotData, offset: lastOffset})
		lastAliasTarget = -1
	}

	return resolveChainSlots(entries, totalChainLen, maxHandle)
}

func resolveChainSlots(entries []chainEntryTmp, totalChainLen, maxHandle uint64) ([]ChainSlot, error) {
	slots := make([]ChainSlot, len(entries))

	// Remove the pack marker bias and check bounds.
	for i := range entries {
		if entries[i].kind != SlotData {
			continue
		}
		if entries[i].offset < PackMarkerPrefix {
			return nil, fmt.Errorf("%w: chain offset precedes pack marker", errs.ErrCorruptData)
		}
		entries[i].offset -= PackMarkerPrefix
		if entries[i].offset > totalChainLen {
			return nil, fmt.Errorf("%w: chain offset %d beyond chain buffer of %d bytes",
				errs.ErrCorruptData, entries[i].offset, totalChainLen)
		}
	}

	// Each data chain runs to the start of the next one; the last runs to
	// the end of the buffer.
	prevData := -1
	for i, e := range entries {
		if e.kind != SlotData {
			continue
		}
		slots[i] = ChainSlot{Kind: SlotData, Offset: e.offset}
		if prevData >= 0 {
			if e.offset < slots[prevData].Offset {
				return nil, fmt.Errorf("%w: chain offsets out of order", errs.ErrCorruptData)
			}
			slots[prevData].Length = e.offset - slots[prevData].Offset
		}
		prevData = i
	}
	if prevData >= 0 {
		slots[prevData].Length = totalChainLen - slots[prevData].Offset
	}

	// Resolve each alias chain to its canonical payload-owning slot,
	// guarding against reference cycles.
	canonical := make([]int, len(entries))
	for i := range canonical {
		canonical[i] = -2 // unresolved
	}
	var resolve func(idx int, visiting []bool) (int, error)
	resolve = func(idx int, visiting []bool) (int, error) {
		if idx < 0 || idx >= len(entries) {
			return -1, fmt.Errorf("%w: alias target %d out of range", errs.ErrCorruptData, idx+1)
		}
		if canonical[idx] != -2 {
			return canonical[idx], nil
		}
		if visiting[idx] {
			return -1, fmt.Errorf("%w: chain %d", errs.ErrAliasCycle, idx+1)
		}
		visiting[idx] = true
		defer func() { visiting[idx] = false }()

		var result int
		switch entries[idx].kind {
		case SlotData:
			result = idx
		case SlotAlias:
			r, err := resolve(entries[idx].aliasTarget, visiting)
			if err != nil {
				return -1, err
			}
			result = r
		default:
			result = -1
		}
		canonical[idx] = result

		return result, nil
	}

	visiting := make([]bool, len(entries))
	for i, e := range entries {
		if e.kind != SlotAlias {
			continue
		}
		canon, err := resolve(i, visiting)
		if err != nil {
			return nil, err
		}
		if canon < 0 {
			// Alias of an empty slot carries no data.
			slots[i] = ChainSlot{Kind: SlotEmpty}

			continue
		}
		slots[i] = ChainSlot{
			Kind:    SlotAlias,
			Offset:  slots[canon].Offset,
			Length:  slots[canon].Length,
			AliasOf: format.Handle(canon + 1),
		}
	}

	// Pad to maxHandle so slot i always maps to handle i+1.
	for uint64(len(slots)) < maxHandle {
		slots = append(slots, ChainSlot{Kind: SlotEmpty})
	}
	if uint64(len(slots)) > maxHandle {
		return nil, fmt.Errorf("%w: chain index has %d slots for %d handles",
			errs.ErrCorruptData, len(slots), maxHandle)
	}

	return slots, nil
}
