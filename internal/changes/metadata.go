package changes

import (
	"encoding/json"
	"fmt"
)

// Scope distinguishes in-text style conversions from bibliography ones.
type Scope string

const (
	ScopeInText    Scope = "in_text"
	ScopeReference Scope = "reference"
)

// Metadata is the per-type payload of a record. Exactly one variant exists
// for each change type.
type Metadata interface {
	Type() Type
	referenceID() string
}

type RenumberMeta struct {
	ReferenceIDs []string `json:"referenceIds,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

type StyleConversionMeta struct {
	Scope       Scope  `json:"scope"`
	ReferenceID string `json:"referenceId,omitempty"`
	FromStyle   string `json:"fromStyle,omitempty"`
	ToStyle     string `json:"toStyle,omitempty"`
}

// DeleteMeta with a ReferenceID deletes a bibliography entry; without one it
// deletes an in-text citation.
type DeleteMeta struct {
	ReferenceID string `json:"referenceId,omitempty"`
}

// ReferenceEditMeta carries the entry's formatted text per canonical style key
// before and after the edit.
type ReferenceEditMeta struct {
	ReferenceID     string            `json:"referenceId"`
	BeforeFormatted map[string]string `json:"beforeFormatted,omitempty"`
	AfterFormatted  map[string]string `json:"afterFormatted,omitempty"`
}

type ReorderMeta struct {
	ReferenceID  string `json:"referenceId"`
	FromPosition int    `json:"fromPosition"`
	ToPosition   int    `json:"toPosition"`
}

func (RenumberMeta) Type() Type        { return TypeRenumber }
func (StyleConversionMeta) Type() Type { return TypeStyleConversion }
func (DeleteMeta) Type() Type          { return TypeDelete }
func (ReferenceEditMeta) Type() Type   { return TypeReferenceEdit }
func (ReorderMeta) Type() Type         { return TypeReorder }

func (RenumberMeta) referenceID() string          { return "" }
func (m StyleConversionMeta) referenceID() string { return m.ReferenceID }
func (m DeleteMeta) referenceID() string          { return m.ReferenceID }
func (m ReferenceEditMeta) referenceID() string   { return m.ReferenceID }
func (m ReorderMeta) referenceID() string         { return m.ReferenceID }

// EmptyMetadata returns the zero payload for t.
func EmptyMetadata(t Type) (Metadata, error) {
	switch t {
	case TypeRenumber:
		return RenumberMeta{}, nil
	case TypeStyleConversion:
		return StyleConversionMeta{Scope: ScopeInText}, nil
	case TypeDelete:
		return DeleteMeta{}, nil
	case TypeReferenceEdit:
		return ReferenceEditMeta{}, nil
	case TypeReorder:
		return ReorderMeta{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// EncodeMetadata serializes m for storage. A nil payload encodes as "{}".
func EncodeMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s metadata: %w", m.Type(), err)
	}
	return data, nil
}

// DecodeMetadata parses raw into the variant selected by t.
func DecodeMetadata(t Type, raw []byte) (Metadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return EmptyMetadata(t)
	}
	var (
		m   Metadata
		err error
	)
	switch t {
	case TypeRenumber:
		var v RenumberMeta
		err = json.Unmarshal(raw, &v)
		m = v
	case TypeStyleConversion:
		var v StyleConversionMeta
		err = json.Unmarshal(raw, &v)
		if v.Scope == "" {
			v.Scope = ScopeInText
		}
		m = v
	case TypeDelete:
		var v DeleteMeta
		err = json.Unmarshal(raw, &v)
		m = v
	case TypeReferenceEdit:
		var v ReferenceEditMeta
		err = json.Unmarshal(raw, &v)
		m = v
	case TypeReorder:
		var v ReorderMeta
		err = json.Unmarshal(raw, &v)
		m = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s metadata: %w", t, err)
	}
	return m, nil
}
