package model

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// DataType is a category of vehicle data that can be requested.
type DataType string

const (
	DataTypeBasic     DataType = "basic"
	DataTypeTechnical DataType = "technical"
	DataTypeImage     DataType = "image"
	DataTypeMOT       DataType = "mot"
	DataTypeService   DataType = "service"
)

// AllDataTypes lists every category in resolution order.
var AllDataTypes = []DataType{
	DataTypeBasic,
	DataTypeTechnical,
	DataTypeImage,
	DataTypeMOT,
	DataTypeService,
}

// Valid reports whether d is a known category.
func (d DataType) Valid() bool {
	return slices.Contains(AllDataTypes, d)
}

// ParseDataTypes lowercases, validates and deduplicates names, returning them
// in resolution order. Blank entries are ignored.
func ParseDataTypes(names []string) ([]DataType, error) {
	seen := make(map[DataType]bool, len(names))
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			dt := DataType(part)
			if !dt.Valid() {
				return nil, eris.Errorf("unknown data type %q", part)
			}
			seen[dt] = true
		}
	}
	return OrderDataTypes(seen), nil
}

// OrderDataTypes returns the set members in resolution order.
func OrderDataTypes(set map[DataType]bool) []DataType {
	out := make([]DataType, 0, len(set))
	for _, dt := range AllDataTypes {
		if set[dt] {
			out = append(out, dt)
		}
	}
	return out
}
