package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
)

// Cloud is a binary PLY file with its vertex records loaded into memory.
// Other elements are skipped.
type Cloud struct {
	Header *Header
	Schema Schema
	Order  binary.ByteOrder
	// Vertices holds the raw vertex records back to back.
	Vertices []byte
}

// Len returns the number of vertices.
func (c *Cloud) Len() int {
	if c.Schema.Stride() == 0 {
		return 0
	}
	return len(c.Vertices) / c.Schema.Stride()
}

// Record returns the raw bytes of vertex i.
func (c *Cloud) Record(i int) []byte {
	s := c.Schema.Stride()
	return c.Vertices[i*s : (i+1)*s]
}

// Value decodes field name of vertex i.
func (c *Cloud) Value(i int, name string) (float64, error) {
	return c.Schema.Value(c.Record(i), c.Order, name)
}

// ReadCloud reads a binary PLY stream.
func ReadCloud(r io.Reader) (*Cloud, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	if !h.Format.IsBinary() {
		return nil, apperrors.NewSchemaInvariantError(
			fmt.Sprintf("unsupported format %q", h.Format), apperrors.ErrUnsupportedFormat,
		).WithActual(string(h.Format))
	}

	c := &Cloud{Header: h, Order: h.Format.ByteOrder()}
	for i := range h.Elements {
		e := &h.Elements[i]
		if e.Name != VertexElement {
			if err := copyElement(io.Discard, br, e, c.Order); err != nil {
				return nil, err
			}
			continue
		}
		s, err := e.Schema()
		if err != nil {
			return nil, apperrors.NewSchemaInvariantError(err.Error(), apperrors.ErrUnsupportedFormat).WithField(e.Name)
		}
		c.Schema = s
		if c.Vertices, err = readRecords(br, e.Count, s.Stride()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// readRecords reads count records of stride bytes. Memory grows with the
// bytes actually read, so a header declaring more records than the body
// holds ends in io.ErrUnexpectedEOF rather than one huge allocation.
func readRecords(r io.Reader, count, stride int) ([]byte, error) {
	if stride == 0 {
		return nil, nil
	}
	buf := make([]byte, 0, min(count, batchRecords)*stride)
	for remaining := count; remaining > 0; {
		n := min(remaining, batchRecords)
		start := len(buf)
		buf = append(buf, make([]byte, n*stride)...)
		if _, err := io.ReadFull(r, buf[start:]); err != nil {
			return nil, unexpectedEOF(err)
		}
		remaining -= n
	}
	return buf, nil
}

// ReadCloudFile reads the binary PLY file at path.
func ReadCloudFile(path string) (*Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIOError("open", path, err)
	}
	defer f.Close()

	c, err := ReadCloud(f)
	if err != nil {
		return nil, wrapReadErr(err, path)
	}
	return c, nil
}
