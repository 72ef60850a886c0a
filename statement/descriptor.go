package statement

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/remap/typeconv"
)

// ParamMode is the direction of one bind parameter.
type ParamMode int

const (
	ModeIn ParamMode = iota
	ModeOut
	ModeInOut
)

func parseParamMode(s string) (ParamMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN":
		return ModeIn, nil
	case "OUT":
		return ModeOut, nil
	case "INOUT":
		return ModeInOut, nil
	default:
		return ModeIn, fmt.Errorf("statement: unknown parameter mode %q", s)
	}
}

// ParamDescriptor is the metadata for one positional bind parameter, in
// order of appearance in the bound text.
type ParamDescriptor struct {
	Property     string
	ValueType    reflect.Type
	WireType     typeconv.WireType
	WireTypeName string
	Mode         ParamMode
	NumericScale int
	HasScale     bool
	ResultMapID  string
	Converter    typeconv.Converter
}

// BoundStatement is the immutable output of dynamic statement assembly:
// final text with positional placeholders, ordered descriptors, and the
// argument snapshot needed to resolve values at bind time.
type BoundStatement struct {
	SQL    string
	Params []ParamDescriptor
	Arg    any
	Extra  map[string]any
}
