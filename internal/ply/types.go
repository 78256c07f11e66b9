package ply

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Format is the body encoding declared on the format line.
type Format string

// Body encodings
const (
	FormatASCII              Format = "ascii"
	FormatBinaryLittleEndian Format = "binary_little_endian"
	FormatBinaryBigEndian    Format = "binary_big_endian"
)

// IsBinary reports whether the body is a binary encoding.
func (f Format) IsBinary() bool {
	return f == FormatBinaryLittleEndian || f == FormatBinaryBigEndian
}

// ByteOrder returns the byte order of a binary format, or nil for ASCII.
func (f Format) ByteOrder() binary.ByteOrder {
	switch f {
	case FormatBinaryLittleEndian:
		return binary.LittleEndian
	case FormatBinaryBigEndian:
		return binary.BigEndian
	default:
		return nil
	}
}

// ScalarType is a PLY scalar property type.
type ScalarType uint8

// Scalar types, named after their canonical PLY spelling
const (
	Char ScalarType = iota + 1
	UChar
	Short
	UShort
	Int
	UInt
	Float
	Double
)

var scalarNames = map[ScalarType]string{
	Char:   "char",
	UChar:  "uchar",
	Short:  "short",
	UShort: "ushort",
	Int:    "int",
	UInt:   "uint",
	Float:  "float",
	Double: "double",
}

// scalarAliases maps every accepted spelling to its type.
var scalarAliases = map[string]ScalarType{
	"char": Char, "int8": Char,
	"uchar": UChar, "uint8": UChar,
	"short": Short, "int16": Short,
	"ushort": UShort, "uint16": UShort,
	"int": Int, "int32": Int,
	"uint": UInt, "uint32": UInt,
	"float": Float, "float32": Float,
	"double": Double, "float64": Double,
}

// ParseScalarType parses a type name, accepting both the classic and the
// sized spellings (float and float32).
func ParseScalarType(name string) (ScalarType, error) {
	t, ok := scalarAliases[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown scalar type %q", name)
	}
	return t, nil
}

// String returns the canonical PLY spelling.
func (t ScalarType) String() string {
	if name, ok := scalarNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ScalarType(%d)", uint8(t))
}

// Size returns the width in bytes.
func (t ScalarType) Size() int {
	switch t {
	case Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Double:
		return 8
	default:
		return 0
	}
}

// Decode reads one value of type t from b.
func (t ScalarType) Decode(b []byte, order binary.ByteOrder) float64 {
	switch t {
	case Char:
		return float64(int8(b[0]))
	case UChar:
		return float64(b[0])
	case Short:
		return float64(int16(order.Uint16(b)))
	case UShort:
		return float64(order.Uint16(b))
	case Int:
		return float64(int32(order.Uint32(b)))
	case UInt:
		return float64(order.Uint32(b))
	case Float:
		return float64(math.Float32frombits(order.Uint32(b)))
	case Double:
		return math.Float64frombits(order.Uint64(b))
	default:
		return 0
	}
}

// Encode writes v into b as type t.
func (t ScalarType) Encode(b []byte, order binary.ByteOrder, v float64) {
	switch t {
	case Char:
		b[0] = byte(int8(v))
	case UChar:
		b[0] = byte(v)
	case Short:
		order.PutUint16(b, uint16(int16(v)))
	case UShort:
		order.PutUint16(b, uint16(v))
	case Int:
		order.PutUint32(b, uint32(int32(v)))
	case UInt:
		order.PutUint32(b, uint32(v))
	case Float:
		order.PutUint32(b, math.Float32bits(float32(v)))
	case Double:
		order.PutUint64(b, math.Float64bits(v))
	}
}

// Property is one property declaration of an element.
type Property struct {
	Name string
	Type ScalarType
	// TypeName is the spelling used in the file, kept so rewritten headers
	// read the same as the input.
	TypeName string

	// List properties carry a count of type CountType followed by that many
	// values of Type.
	IsList        bool
	CountType     ScalarType
	CountTypeName string
}

func (p Property) headerLine() string {
	if p.IsList {
		return fmt.Sprintf("property list %s %s %s", orDefault(p.CountTypeName, p.CountType.String()), orDefault(p.TypeName, p.Type.String()), p.Name)
	}
	return fmt.Sprintf("property %s %s", orDefault(p.TypeName, p.Type.String()), p.Name)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Element is one element declaration (vertex, face, ...).
type Element struct {
	Name       string
	Count      int
	Properties []Property
}

// HasLists reports whether any property is a list, which makes the record
// size variable.
func (e *Element) HasLists() bool {
	for _, p := range e.Properties {
		if p.IsList {
			return true
		}
	}
	return false
}

// Schema returns the fixed record layout of the element. Elements with list
// properties have no fixed layout.
func (e *Element) Schema() (Schema, error) {
	return NewSchema(e.Properties)
}
