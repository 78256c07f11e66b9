package ply

import (
	"encoding/binary"
	"fmt"
)

// Field is a scalar property at a fixed byte offset within a record.
type Field struct {
	Name   string
	Type   ScalarType
	Offset int
}

// Schema is the ordered, gap-free layout of a fixed-size record.
type Schema struct {
	Fields []Field
	stride int
}

// NewSchema lays out props back to back with no alignment padding.
func NewSchema(props []Property) (Schema, error) {
	s := Schema{Fields: make([]Field, 0, len(props))}
	for _, p := range props {
		if p.IsList {
			return Schema{}, fmt.Errorf("property %q is a list and has no fixed size", p.Name)
		}
		size := p.Type.Size()
		if size == 0 {
			return Schema{}, fmt.Errorf("property %q has unknown type", p.Name)
		}
		s.Fields = append(s.Fields, Field{Name: p.Name, Type: p.Type, Offset: s.stride})
		s.stride += size
	}
	return s, nil
}

// Stride returns the record size in bytes, the sum of all field widths.
func (s Schema) Stride() int {
	return s.stride
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.Fields)
}

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Count returns how many fields carry name.
func (s Schema) Count(name string) int {
	n := 0
	for _, f := range s.Fields {
		if f.Name == name {
			n++
		}
	}
	return n
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Value decodes the named field from record.
func (s Schema) Value(record []byte, order binary.ByteOrder, name string) (float64, error) {
	i := s.Index(name)
	if i < 0 {
		return 0, fmt.Errorf("no field %q", name)
	}
	f := s.Fields[i]
	return f.Type.Decode(record[f.Offset:f.Offset+f.Type.Size()], order), nil
}
