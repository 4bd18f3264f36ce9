// Package entity pulls product references and order identifiers out of an
// utterance. Extraction is advisory: it never fails the turn.
package entity

import (
	"fmt"
	"strings"
)

type Type int

const (
	Product Type = iota + 1
	OrderID
)

func (t Type) String() string {
	switch t {
	case Product:
		return "PRODUCT"
	case OrderID:
		return "ORDER_ID"
	default:
		return fmt.Sprintf("entity_type(%d)", int(t))
	}
}

// ParseType maps a model label onto a Type.
func ParseType(label string) (Type, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PRODUCT":
		return Product, true
	case "ORDER_ID":
		return OrderID, true
	}
	return 0, false
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, ok := ParseType(string(text))
	if !ok {
		return fmt.Errorf("unknown entity type %q", string(text))
	}
	*t = parsed
	return nil
}

type Entity struct {
	Text string `json:"text"`
	Type Type   `json:"type"`
}
