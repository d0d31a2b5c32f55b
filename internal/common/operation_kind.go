package common

import (
	"fmt"
	"strings"
)

// OperationKind is the kind of result an action produces on the map
type OperationKind string

const (
	OpSingle  OperationKind = "single"
	OpCompare OperationKind = "compare"
	OpDiff    OperationKind = "diff"
	OpZones   OperationKind = "zones"
)

// AllOperationKinds lists every layer-producing operation
var AllOperationKinds = []OperationKind{OpSingle, OpCompare, OpDiff, OpZones}

// LayerKey identifies the single result layer slot of an index and operation
type LayerKey struct {
	Index     IndexKind     `json:"index"`
	Operation OperationKind `json:"operation"`
}

// String returns "<index>-<operation>", used as the layer id on the map
func (k LayerKey) String() string {
	return string(k.Index) + "-" + string(k.Operation)
}

// ParseOperationKind validates an operation name coming from the frontend
func ParseOperationKind(s string) (OperationKind, error) {
	op := OperationKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllOperationKinds {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation: %q", s)
}
