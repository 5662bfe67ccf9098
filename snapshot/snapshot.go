// Package snapshot builds fully owned, JSON-serializable views of a trace:
// a hierarchy tree reconstructed from the flat declaration stream, and the
// complete event list with alias fan-out applied.
package snapshot

import (
	"encoding/json"

	"github.com/arloliu/wavefst/compress"
	"github.com/arloliu/wavefst/format"
	"github.com/arloliu/wavefst/reader"
	"github.com/arloliu/wavefst/section"
)

// Hierarchy is the owned design tree.
type Hierarchy struct {
	Scopes []ScopeNode `json:"scopes"`
	// RootVariables and RootAttributes collect declarations outside any
	// scope; normally empty for tool-produced traces.
	RootVariables  []VariableNode  `json:"root_variables,omitempty"`
	RootAttributes []AttributeNode `json:"root_attributes,omitempty"`
}

// ScopeNode is one scope with its declarations and nested children.
type ScopeNode struct {
	Type       string          `json:"scope_type"`
	Name       string          `json:"name"`
	Component  string          `json:"component,omitempty"`
	Variables  []VariableNode  `json:"variables,omitempty"`
	Attributes []AttributeNode `json:"attributes,omitempty"`
	Children   []ScopeNode     `json:"children,omitempty"`
}

// VariableNode is one signal declaration.
type VariableNode struct {
	Type      string `json:"var_type"`
	Direction string `json:"direction"`
	Name      string `json:"name"`
	// Length is the declared bit or byte length, zero for variable-length
	// signals.
	Length  uint32        `json:"length,omitempty"`
	Handle  format.Handle `json:"handle"`
	AliasOf format.Handle `json:"alias_of,omitempty"`
	IsAlias bool          `json:"is_alias,omitempty"`
}

// AttributeNode is one attribute declaration.
type AttributeNode struct {
	Type     uint8  `json:"attr_type"`
	Subtype  uint8  `json:"subtype"`
	Name     string `json:"name"`
	Argument uint64 `json:"argument"`
}

// Change is one owned value-change event.
type Change struct {
	Time    uint64        `json:"time"`
	Handle  format.Handle `json:"handle"`
	AliasOf format.Handle `json:"alias_of,omitempty"`
	Value   Value         `json:"value"`
}

// Value is the owned, kind-tagged form of a signal value.
type Value struct {
	Kind   string  `json:"kind"`
	Bit    string  `json:"bit,omitempty"`
	Vector string  `json:"vector,omitempty"`
	Width  uint32  `json:"width,omitempty"`
	Bits   []byte  `json:"bits,omitempty"`
	Real   float64 `json:"real,omitempty"`
	Bytes  []byte  `json:"bytes,omitempty"`
}

// Snapshot is a complete owned capture of a trace.
type Snapshot struct {
	Version           string                 `json:"version,omitempty"`
	Date              string                 `json:"date,omitempty"`
	TimescaleExponent int8                   `json:"timescale_exponent"`
	TimeZero          uint64                 `json:"time_zero,omitempty"`
	StartTime         uint64                 `json:"start_time"`
	EndTime           uint64                 `json:"end_time"`
	Hierarchy         *Hierarchy             `json:"hierarchy,omitempty"`
	Blackouts         []format.BlackoutEvent `json:"blackouts,omitempty"`
	Changes           []Change               `json:"changes,omitempty"`
}

// NewValue converts a decoded signal value into its owned form.
func NewValue(v format.SignalValue) Value {
	switch v.Kind {
	case format.KindBit:
		return Value{Kind: "bit", Bit: string(v.Bit)}
	case format.KindVector:
		return Value{Kind: "vector", Vector: string(v.Data)}
	case format.KindPackedBits:
		return Value{Kind: "packed", Width: v.Width, Bits: append([]byte(nil), v.Data...)}
	case format.KindReal:
		return Value{Kind: "real", Real: v.Real}
	default:
		return Value{Kind: "bytes", Bytes: append([]byte(nil), v.Data...)}
	}
}

// NewChange converts a decoded event into its owned form.
func NewChange(vc format.ValueChange) Change {
	return Change{
		Time:    vc.Time,
		Handle:  vc.Handle,
		AliasOf: vc.AliasOf,
		Value:   NewValue(vc.Value),
	}
}

// BuildHierarchy reconstructs the owned scope tree from the flat decoded
// hierarchy.
func BuildHierarchy(h *section.Hierarchy) *Hierarchy {
	if h == nil {
		return nil
	}

	nodes := make([]ScopeNode, len(h.Scopes))
	children := make([][]int, len(h.Scopes))
	var roots []int
	for i, s := range h.Scopes {
		nodes[i] = ScopeNode{
			Type:      s.Type.String(),
			Name:      s.Name,
			Component: s.Component,
		}
		if s.Parent >= 0 {
			children[s.Parent] = append(children[s.Parent], i)
		} else {
			roots = append(roots, i)
		}
	}

	out := &Hierarchy{}
	for _, v := range h.Vars {
		node := VariableNode{
			Type:      v.Type.String(),
			Direction: v.Direction.String(),
			Name:      v.Name,
			Length:    v.Length,
			Handle:    v.Handle,
			AliasOf:   v.AliasOf,
			IsAlias:   v.IsAlias,
		}
		if v.Scope >= 0 {
			nodes[v.Scope].Variables = append(nodes[v.Scope].Variables, node)
		} else {
			out.RootVariables = append(out.RootVariables, node)
		}
	}
	for _, a := range h.Attrs {
		node := AttributeNode{
			Type:     a.Type,
			Subtype:  a.Subtype,
			Name:     a.Name,
			Argument: a.Argument,
		}
		if a.Scope >= 0 {
			nodes[a.Scope].Attributes = append(nodes[a.Scope].Attributes, node)
		} else {
			out.RootAttributes = append(out.RootAttributes, node)
		}
	}

	var build func(i int) ScopeNode
	build = func(i int) ScopeNode {
		node := nodes[i]
		for _, c := range children[i] {
			node.Children = append(node.Children, build(c))
		}

		return node
	}
	for _, root := range roots {
		out.Scopes = append(out.Scopes, build(root))
	}

	return out
}

// CollectChanges drains one block iterator into owned events.
func CollectChanges(bc *reader.BlockChanges) ([]Change, error) {
	var out []Change
	for vc, err := range bc.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, NewChange(vc))
	}

	return out, nil
}

// Capture drains the reader's remaining blocks into a complete snapshot.
func Capture(r *reader.Reader) (*Snapshot, error) {
	header := r.Header()
	s := &Snapshot{
		Version:           header.Version,
		Date:              header.Date,
		TimescaleExponent: header.TimescaleExponent,
		TimeZero:          header.TimeZero,
		StartTime:         header.StartTime,
		EndTime:           header.EndTime,
		Hierarchy:         BuildHierarchy(r.Hierarchy()),
		Blackouts:         r.Blackout(),
	}

	for {
		bc, err := r.NextBlockChanges()
		if err != nil {
			return nil, err
		}
		if bc == nil {
			return s, nil
		}
		changes, err := CollectChanges(bc)
		if err != nil {
			return nil, err
		}
		s.Changes = append(s.Changes, changes...)
	}
}

// JSON serializes the snapshot.
func (s *Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// CompressedJSON serializes the snapshot and wraps it in a zstd frame.
func (s *Snapshot) CompressedJSON() ([]byte, error) {
	data, err := s.JSON()
	if err != nil {
		return nil, err
	}

	return compress.NewZstdCodec().Compress(data)
}

// FromCompressedJSON expands a zstd frame produced by CompressedJSON and
// decodes the snapshot.
func FromCompressedJSON(data []byte) (*Snapshot, error) {
	raw, err := compress.NewZstdCodec().Decompress(data)
	if err != nil {
		return nil, err
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}

	return &s, nil
}
