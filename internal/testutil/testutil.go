// Package testutil builds PLY fixtures and scratch files for splatpipe tests.
//
// Fixtures are encoded here independently of the ply package so tests of the
// codec do not check it against itself.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// PLY describes a fixture file.
type PLY struct {
	// Format defaults to binary_little_endian.
	Format   string
	Comments []string
	// Properties are "type name" pairs for the vertex element, e.g. "float x".
	Properties []string
	Vertices   [][]float64
	// Before and After are extra element blocks, header text plus raw body,
	// placed before and after the vertex element.
	Before, After *Block
	// Truncate drops this many bytes from the end of the file.
	Truncate int
}

// Block is a raw element: its header lines and encoded body.
type Block struct {
	Header string
	Body   []byte
}

// FaceBlock returns a face element with one triangle per entry of tris, using
// "property list uchar int vertex_indices".
func FaceBlock(order binary.ByteOrder, tris ...[3]int32) *Block {
	var body bytes.Buffer
	for _, t := range tris {
		body.WriteByte(3)
		for _, idx := range t {
			var b [4]byte
			order.PutUint32(b[:], uint32(idx))
			body.Write(b[:])
		}
	}
	return &Block{
		Header: fmt.Sprintf("element face %d\nproperty list uchar int vertex_indices\n", len(tris)),
		Body:   body.Bytes(),
	}
}

// CompactSplatProperties returns the 17-float vertex written by the
// reconstruction.
func CompactSplatProperties() []string {
	names := []string{
		"x", "y", "z", "nx", "ny", "nz", "f_dc_0", "f_dc_1", "f_dc_2",
		"opacity", "scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3",
	}
	props := make([]string, len(names))
	for i, n := range names {
		props[i] = "float " + n
	}
	return props
}

// SplatVertices returns n vertices for CompactSplatProperties with distinct,
// recognisable values.
func SplatVertices(n int) [][]float64 {
	vs := make([][]float64, n)
	for i := range vs {
		v := make([]float64, 17)
		for j := range v {
			v[j] = float64(i)*100 + float64(j) + 0.25
		}
		vs[i] = v
	}
	return vs
}

// SplatPLY returns a little-endian compact splat fixture with n vertices.
func SplatPLY(n int) PLY {
	return PLY{
		Comments:   []string{"comment generated by reconstruction"},
		Properties: CompactSplatProperties(),
		Vertices:   SplatVertices(n),
	}
}

// Order returns the byte order of the fixture format.
func (p PLY) Order() binary.ByteOrder {
	if p.Format == "binary_big_endian" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Bytes encodes the fixture.
func (p PLY) Bytes() []byte {
	format := p.Format
	if format == "" {
		format = "binary_little_endian"
	}
	order := p.Order()

	var buf bytes.Buffer
	buf.WriteString("ply\n")
	fmt.Fprintf(&buf, "format %s 1.0\n", format)
	for _, c := range p.Comments {
		buf.WriteString(c + "\n")
	}
	if p.Before != nil {
		buf.WriteString(p.Before.Header)
	}
	fmt.Fprintf(&buf, "element vertex %d\n", len(p.Vertices))
	for _, prop := range p.Properties {
		buf.WriteString("property " + prop + "\n")
	}
	if p.After != nil {
		buf.WriteString(p.After.Header)
	}
	buf.WriteString("end_header\n")

	if p.Before != nil {
		buf.Write(p.Before.Body)
	}
	for _, v := range p.Vertices {
		for i, prop := range p.Properties {
			typ, _, _ := strings.Cut(prop, " ")
			if format == "ascii" {
				fmt.Fprintf(&buf, "%v ", v[i])
				continue
			}
			buf.Write(encode(typ, order, v[i]))
		}
		if format == "ascii" {
			buf.WriteString("\n")
		}
	}
	if p.After != nil {
		buf.Write(p.After.Body)
	}

	out := buf.Bytes()
	if p.Truncate > 0 {
		out = out[:len(out)-p.Truncate]
	}
	return out
}

func encode(typ string, order binary.ByteOrder, v float64) []byte {
	switch typ {
	case "char", "int8":
		return []byte{byte(int8(v))}
	case "uchar", "uint8":
		return []byte{byte(v)}
	case "short", "int16", "ushort", "uint16":
		b := make([]byte, 2)
		order.PutUint16(b, uint16(int32(v)))
		return b
	case "int", "int32", "uint", "uint32":
		b := make([]byte, 4)
		order.PutUint32(b, uint32(int64(v)))
		return b
	case "double", "float64":
		b := make([]byte, 8)
		order.PutUint64(b, math.Float64bits(v))
		return b
	default:
		b := make([]byte, 4)
		order.PutUint32(b, math.Float32bits(float32(v)))
		return b
	}
}

// WritePLY writes the fixture to dir/name and returns the path.
func WritePLY(t *testing.T, dir, name string, p PLY) string {
	t.Helper()
	return WriteFile(t, dir, name, p.Bytes())
}

// WriteFile writes data to dir/name, creating dir, and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the contents of path, failing the test on error.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

// ListDir returns the names in dir, failing the test on error.
func ListDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir %s: %v", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

// Float32At decodes a float32 at offset off of b.
func Float32At(b []byte, order binary.ByteOrder, off int) float32 {
	return math.Float32frombits(order.Uint32(b[off:]))
}
