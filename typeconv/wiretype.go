package typeconv

import (
	"fmt"
	"strings"
)

// WireType is the driver-level column type declared on a bind descriptor or
// reported by the cursor. WireUnknown matches any registration.
type WireType int

const (
	WireUnknown WireType = iota
	WireVarchar
	WireInteger
	WireBigint
	WireDouble
	WireNumeric
	WireBoolean
	WireTimestamp
	WireDate
	WireBytea
	WireUUID
	WireCursor
	WireNull
)

var wireTypeNames = map[WireType]string{
	WireUnknown:   "UNKNOWN",
	WireVarchar:   "VARCHAR",
	WireInteger:   "INTEGER",
	WireBigint:    "BIGINT",
	WireDouble:    "DOUBLE",
	WireNumeric:   "NUMERIC",
	WireBoolean:   "BOOLEAN",
	WireTimestamp: "TIMESTAMP",
	WireDate:      "DATE",
	WireBytea:     "BYTEA",
	WireUUID:      "UUID",
	WireCursor:    "CURSOR",
	WireNull:      "NULL",
}

func (w WireType) String() string {
	if s, ok := wireTypeNames[w]; ok {
		return s
	}
	return fmt.Sprintf("WireType(%d)", int(w))
}

// ParseWireType resolves a wire-type name as written in a parameter marker
// (#{id:BIGINT}). Case-insensitive.
func ParseWireType(s string) (WireType, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for wt, name := range wireTypeNames {
		if name == want {
			return wt, nil
		}
	}
	return WireUnknown, fmt.Errorf("typeconv: unknown wire type %q", s)
}
