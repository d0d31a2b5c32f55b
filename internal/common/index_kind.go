package common

import (
	"fmt"
	"strings"
)

// IndexKind identifies a vegetation/burn index computed by the analysis backend
type IndexKind string

const (
	IndexNDVI IndexKind = "ndvi"
	IndexSAVI IndexKind = "savi"
	IndexNBR  IndexKind = "nbr"
)

// AllIndexKinds lists the supported indices in display order
var AllIndexKinds = []IndexKind{IndexNDVI, IndexSAVI, IndexNBR}

// ParseIndexKind accepts "ndvi", "NDVI", "Savi", ...
func ParseIndexKind(s string) (IndexKind, error) {
	kind := IndexKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case IndexNDVI, IndexSAVI, IndexNBR:
		return kind, nil
	}
	return "", fmt.Errorf("unknown index kind: %q (must be ndvi, savi or nbr)", s)
}

// DisplayName returns the upper-case label shown in the UI
func (k IndexKind) DisplayName() string {
	return strings.ToUpper(string(k))
}
