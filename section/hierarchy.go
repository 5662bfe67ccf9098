package section

import (
	"fmt"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

// ScopeDecl is one decoded scope declaration from the hierarchy stream.
type ScopeDecl struct {
	Type format.ScopeType
	Name string
	// Component is the instantiated module or entity name; empty when the
	// stream stored no component.
	Component string
	// Parent indexes the enclosing scope in Hierarchy.Scopes, -1 at root.
	Parent int
}

// VarDecl is one decoded variable declaration.
type VarDecl struct {
	Type      format.VarType
	Direction format.VarDir
	Name      string
	// Length is the declared bit or byte length, zero when unspecified.
	Length uint32
	// Handle identifies the signal's value-change chain. Alias declarations
	// reuse the handle of an earlier variable instead of allocating one.
	Handle  format.Handle
	AliasOf format.Handle
	// Scope indexes the enclosing scope, -1 at root.
	Scope   int
	IsAlias bool
}

// AttrDecl is one decoded attribute declaration.
type AttrDecl struct {
	Type     uint8
	Subtype  uint8
	Name     string
	Argument uint64
	// Scope indexes the enclosing scope, -1 at root.
	Scope int
}

// HierarchyItemKind discriminates the entries of the hierarchy stream in
// declaration order.
type HierarchyItemKind uint8

const (
	ItemScopeBegin HierarchyItemKind = iota
	ItemScopeEnd
	ItemVar
	ItemAttrBegin
	ItemAttrEnd
)

// HierarchyItem is one stream entry; Index points into the slice matching
// the item kind and is unused for ItemScopeEnd and ItemAttrEnd.
type HierarchyItem struct {
	Kind  HierarchyItemKind
	Index int
}

// Hierarchy is the decoded design tree: the flattened item stream plus the
// declarations it references.
type Hierarchy struct {
	Items  []HierarchyItem
	Scopes []ScopeDecl
	Vars   []VarDecl
	Attrs  []AttrDecl
}

// MaxHandle returns the highest handle any variable declaration references.
func (h *Hierarchy) MaxHandle() format.Handle {
	max := format.Handle(0)
	for i := range h.Vars {
		if h.Vars[i].Handle > max {
			max = h.Vars[i].Handle
		}
	}

	return max
}

// DecodeHierarchyTokens parses an uncompressed hierarchy token stream.
//
// Handles are assigned while parsing: every non-alias variable takes the
// next handle in declaration order, aliases reuse the handle they name.
func DecodeHierarchyTokens(data []byte) (*Hierarchy, error) {
	h := &Hierarchy{}
	var scopeStack []int
	currentHandle := format.Handle(0)

	offset := 0
	for offset < len(data) {
		tag := data[offset]
		offset++

		switch format.ScopeType(tag) {
		case format.TagScope:
			if offset >= len(data) {
				return nil, truncatedHierarchy()
			}
			scopeType := format.ScopeType(data[offset])
			offset++
			if !scopeType.IsValid() {
				return nil, fmt.Errorf("%w: unknown scope type %d", errs.ErrCorruptData, scopeType)
			}
			name, err := readCString(data, &offset)
			if err != nil {
				return nil, err
			}
			component, err := readCString(data, &offset)
			if err != nil {
				return nil, err
			}
			h.Scopes = append(h.Scopes, ScopeDecl{
				Type:      scopeType,
				Name:      name,
				Component: component,
				Parent:    topScope(scopeStack),
			})
			scopeStack = append(scopeStack, len(h.Scopes)-1)
			h.Items = append(h.Items, HierarchyItem{Kind: ItemScopeBegin, Index: len(h.Scopes) - 1})

		case format.TagUpscope:
			if len(scopeStack) == 0 {
				return nil, fmt.Errorf("%w: upscope without matching scope", errs.ErrCorruptData)
			}
			scopeStack = scopeStack[:len(scopeStack)-1]
			h.Items = append(h.Items, HierarchyItem{Kind: ItemScopeEnd})

		case format.TagAttrBegin:
			if offset+1 >= len(data) {
				return nil, truncatedHierarchy()
			}
			attrType := data[offset]
			subtype := data[offset+1]
			offset += 2
			name, err := readCString(data, &offset)
			if err != nil {
				return nil, err
			}
			argument, err := readUvarintAt(data, &offset)
			if err != nil {
				return nil, err
			}
			h.Attrs = append(h.Attrs, AttrDecl{
				Type:     attrType,
				Subtype:  subtype,
				Name:     name,
				Argument: argument,
				Scope:    topScope(scopeStack),
			})
			h.Items = append(h.Items, HierarchyItem{Kind: ItemAttrBegin, Index: len(h.Attrs) - 1})

		case format.TagAttrEnd:
			h.Items = append(h.Items, HierarchyItem{Kind: ItemAttrEnd})

		default:
			varType := format.VarType(tag)
			if !varType.IsValid() {
				return nil, fmt.Errorf("%w: unexpected tag %d in hierarchy stream", errs.ErrCorruptData, tag)
			}
			if offset >= len(data) {
				return nil, truncatedHierarchy()
			}
			direction := format.VarDir(data[offset])
			offset++
			if !direction.IsValid() {
				return nil, fmt.Errorf("%w: unknown variable direction %d", errs.ErrCorruptData, direction)
			}
			name, err := readCString(data, &offset)
			if err != nil {
				return nil, err
			}
			length, err := readUvarintAt(data, &offset)
			if err != nil {
				return nil, err
			}
			alias, err := readUvarintAt(data, &offset)
			if err != nil {
				return nil, err
			}
			if length > VariableWidthSentinel {
				return nil, fmt.Errorf("%w: variable length %d exceeds 32 bits", errs.ErrCorruptData, length)
			}

			decl := VarDecl{
				Type:      varType,
				Direction: direction,
				Name:      name,
				Length:    uint32(length),
				Scope:     topScope(scopeStack),
			}
			if alias == 0 {
				currentHandle++
				decl.Handle = currentHandle
			} else {
				if alias > VariableWidthSentinel {
					return nil, fmt.Errorf("%w: alias handle %d exceeds 32 bits", errs.ErrCorruptData, alias)
				}
				decl.Handle = format.Handle(alias)
				decl.AliasOf = format.Handle(alias)
				decl.IsAlias = true
			}
			h.Vars = append(h.Vars, decl)
			h.Items = append(h.Items, HierarchyItem{Kind: ItemVar, Index: len(h.Vars) - 1})
		}
	}

	if len(scopeStack) != 0 {
		return nil, fmt.Errorf("%w: hierarchy stream ended with %d unterminated scopes",
			errs.ErrCorruptData, len(scopeStack))
	}

	return h, nil
}

// EncodeTokens serializes the hierarchy back into its token stream form.
func (h *Hierarchy) EncodeTokens() ([]byte, error) {
	var out []byte
	for _, item := range h.Items {
		switch item.Kind {
		case ItemScopeBegin:
			if item.Index >= len(h.Scopes) {
				return nil, fmt.Errorf("%w: scope index %d out of range", errs.ErrInvalidValue, item.Index)
			}
			scope := &h.Scopes[item.Index]
			out = append(out, byte(format.TagScope), byte(scope.Type))
			out = appendCString(out, scope.Name)
			out = appendCString(out, scope.Component)
		case ItemScopeEnd:
			out = append(out, byte(format.TagUpscope))
		case ItemVar:
			if item.Index >= len(h.Vars) {
				return nil, fmt.Errorf("%w: variable index %d out of range", errs.ErrInvalidValue, item.Index)
			}
			v := &h.Vars[item.Index]
			out = append(out, byte(v.Type), byte(v.Direction))
			out = appendCString(out, v.Name)
			out = encoding.AppendUvarint(out, uint64(v.Length))
			if v.IsAlias {
				out = encoding.AppendUvarint(out, uint64(v.AliasOf))
			} else {
				out = encoding.AppendUvarint(out, 0)
			}
		case ItemAttrBegin:
			if item.Index >= len(h.Attrs) {
				return nil, fmt.Errorf("%w: attribute index %d out of range", errs.ErrInvalidValue, item.Index)
			}
			attr := &h.Attrs[item.Index]
			out = append(out, byte(format.TagAttrBegin), attr.Type, attr.Subtype)
			out = appendCString(out, attr.Name)
			out = encoding.AppendUvarint(out, attr.Argument)
		case ItemAttrEnd:
			out = append(out, byte(format.TagAttrEnd))
		}
	}

	return out, nil
}

// EncodeHierarchyBlock wraps a token stream into a hierarchy block payload.
//
// Returns the block type to write alongside the payload: zlib and raw share
// BlockHierarchy, the LZ4 variants use their own types. A zlib pass that
// fails to shrink the stream silently degrades to raw storage.
func EncodeHierarchyBlock(tokens []byte, comp format.HierarchyCompression) (format.BlockType, []byte, error) {
	prefix := make([]byte, LengthFieldLen)
	bigEndian.PutUint64(prefix, uint64(len(tokens)))

	switch comp {
	case format.HierarchyRaw:
		return format.BlockHierarchy, append(prefix, tokens...), nil

	case format.HierarchyZlib:
		compressed, err := compress.NewZlibCodec().Compress(tokens)
		if err != nil {
			return 0, nil, err
		}
		if len(compressed) >= len(tokens) {
			return format.BlockHierarchy, append(prefix, tokens...), nil
		}

		return format.BlockHierarchy, append(prefix, compressed...), nil

	case format.HierarchyLz4:
		compressed, err := compress.NewLZ4Codec().Compress(tokens)
		if err != nil {
			return 0, nil, err
		}

		return format.BlockHierarchyLz4, append(prefix, compressed...), nil

	case format.HierarchyLz4Duo:
		lz4 := compress.NewLZ4Codec()
		stage1, err := lz4.Compress(tokens)
		if err != nil {
			return 0, nil, err
		}
		stage2, err := lz4.Compress(stage1)
		if err != nil {
			return 0, nil, err
		}
		payload := encoding.AppendUvarint(prefix, uint64(len(stage1)))
		payload = append(payload, stage2...)

		return format.BlockHierarchyLz4Duo, payload, nil

	default:
		return 0, nil, fmt.Errorf("%w: hierarchy compression %d", errs.ErrUnsupportedCompression, comp)
	}
}

// DecodeHierarchyBlock unwraps a hierarchy block payload into the raw token
// stream. The block type selects how the data portion is stored.
func DecodeHierarchyBlock(blockType format.BlockType, payload []byte) ([]byte, error) {
	if len(payload) < LengthFieldLen {
		return nil, fmt.Errorf("%w: hierarchy payload is %d bytes", errs.ErrCorruptData, len(payload))
	}
	uncompressedLen := bigEndian.Uint64(payload[0:8])
	data := payload[LengthFieldLen:]

	switch blockType {
	case format.BlockHierarchy:
		if uint64(len(data)) == uncompressedLen {
			return data, nil
		}
		expanded, err := DecodedLen(uncompressedLen, len(data))
		if err != nil {
			return nil, err
		}

		return compress.NewZlibCodec().Decompress(data, expanded)

	case format.BlockHierarchyLz4:
		expanded, err := DecodedLen(uncompressedLen, len(data))
		if err != nil {
			return nil, err
		}

		return compress.NewLZ4Codec().Decompress(data, expanded)

	case format.BlockHierarchyLz4Duo:
		stage1Len, n, err := encoding.Uvarint(data)
		if err != nil {
			return nil, fmt.Errorf("hierarchy stage1 length: %w", err)
		}
		stage1Expanded, err := DecodedLen(stage1Len, len(data)-n)
		if err != nil {
			return nil, err
		}
		lz4 := compress.NewLZ4Codec()
		stage1, err := lz4.Decompress(data[n:], stage1Expanded)
		if err != nil {
			return nil, err
		}
		expanded, err := DecodedLen(uncompressedLen, len(stage1))
		if err != nil {
			return nil, err
		}

		return lz4.Decompress(stage1, expanded)

	default:
		return nil, fmt.Errorf("%w: block type %s is not a hierarchy block", errs.ErrCorruptData, blockType)
	}
}

func topScope(stack []int) int {
	if len(stack) == 0 {
		return -1
	}

	return stack[len(stack)-1]
}

func truncatedHierarchy() error {
	return fmt.Errorf("%w: truncated hierarchy stream", errs.ErrCorruptData)
}

func readCString(data []byte, offset *int) (string, error) {
	for i := *offset; i < len(data); i++ {
		if data[i] == 0 {
			s := string(data[*offset:i])
			*offset = i + 1

			return s, nil
		}
	}

	return "", fmt.Errorf("%w: unterminated string in hierarchy stream", errs.ErrCorruptData)
}

func appendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)

	return append(dst, 0)
}

func readUvarintAt(data []byte, offset *int) (uint64, error) {
	v, n, err := encoding.Uvarint(data[*offset:])
	if err != nil {
		return 0, err
	}
	*offset += n

	return v, nil
}
