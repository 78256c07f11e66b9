package ply

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
	"github.com/splatpipe/splatpipe/internal/fsutil"
)

// NoStrideCheck disables the output stride check of a [Migration].
const NoStrideCheck = -1

// batchRecords bounds how many records are held in memory at once.
const batchRecords = 4096

// Migration inserts Count fields named Prefix0..Prefix(Count-1) directly
// after Anchor in Element. The new fields take the anchor's type.
type Migration struct {
	Element string
	Anchor  string
	Prefix  string
	Count   int
	// ExpectedStride is the required output record size. Zero means
	// ReferenceStride; NoStrideCheck skips the check.
	ExpectedStride int
}

// DefaultMigration returns the f_rest insertion used for Gaussian splats.
func DefaultMigration() Migration {
	return Migration{
		Element: VertexElement,
		Anchor:  DefaultAnchor,
		Prefix:  DefaultFieldPrefix,
		Count:   DefaultFieldCount,
	}
}

func (m Migration) withDefaults() Migration {
	d := DefaultMigration()
	if m.Element == "" {
		m.Element = d.Element
	}
	if m.Anchor == "" {
		m.Anchor = d.Anchor
	}
	if m.Prefix == "" {
		m.Prefix = d.Prefix
	}
	if m.Count == 0 {
		m.Count = d.Count
	}
	if m.ExpectedStride == 0 {
		m.ExpectedStride = ReferenceStride()
	}
	return m
}

// FieldNames returns the names the migration adds, in order.
func (m Migration) FieldNames() []string {
	m = m.withDefaults()
	return indexedNames(m.Prefix, m.Count)
}

// segment is a run of bytes copied from an input record to an output record.
type segment struct {
	src, dst, n int
}

// Plan is a validated migration of one header.
type Plan struct {
	Migration Migration
	// Input and Output describe the migrated element before and after.
	Input  Schema
	Output Schema
	// Header is the rewritten header.
	Header *Header

	element  int
	segments []segment
}

// InputStride returns the record size of the input element.
func (p *Plan) InputStride() int { return p.Input.Stride() }

// OutputStride returns the record size of the output element.
func (p *Plan) OutputStride() int { return p.Output.Stride() }

// Records returns the number of records that will be migrated.
func (p *Plan) Records() int { return p.Header.Elements[p.element].Count }

// Plan checks h against the migration and computes the output layout. Every
// failure is a *errors.SchemaInvariantError; nothing is written.
func (m Migration) Plan(h *Header) (*Plan, error) {
	m = m.withDefaults()

	if !h.Format.IsBinary() {
		return nil, apperrors.NewSchemaInvariantError(
			fmt.Sprintf("unsupported format %q", h.Format), apperrors.ErrUnsupportedFormat,
		).WithExpected("binary_little_endian or binary_big_endian").WithActual(string(h.Format))
	}

	elem, index := h.Element(m.Element)
	if elem == nil {
		return nil, apperrors.NewSchemaInvariantError(
			fmt.Sprintf("no %q element", m.Element), apperrors.ErrAnchorNotFound,
		).WithField(m.Element)
	}
	if elem.HasLists() {
		return nil, apperrors.NewSchemaInvariantError(
			fmt.Sprintf("element %q has list properties", m.Element), apperrors.ErrUnsupportedFormat,
		).WithField(m.Element)
	}

	input, err := elem.Schema()
	if err != nil {
		return nil, apperrors.NewSchemaInvariantError(err.Error(), apperrors.ErrMalformedHeader)
	}

	switch n := input.Count(m.Anchor); {
	case n == 0:
		return nil, apperrors.NewSchemaInvariantError(
			fmt.Sprintf("anchor field %q not found", m.Anchor), apperrors.ErrAnchorNotFound,
		).WithField(m.Anchor).WithExpected("1 occurrence").WithActual("0 occurrences")
	case n > 1:
		return nil, apperrors.NewSchemaInvariantError(
			fmt.Sprintf("anchor field %q occurs %d times", m.Anchor, n), apperrors.ErrDuplicateField,
		).WithField(m.Anchor).WithExpected("1 occurrence").WithActual(fmt.Sprintf("%d occurrences", n))
	}

	seen := make(map[string]bool, input.Len())
	for _, name := range input.Names() {
		if seen[name] {
			return nil, apperrors.NewSchemaInvariantError(
				fmt.Sprintf("field %q declared twice", name), apperrors.ErrDuplicateField,
			).WithField(name)
		}
		seen[name] = true
	}
	added := m.FieldNames()
	for _, name := range added {
		if seen[name] {
			return nil, apperrors.NewSchemaInvariantError(
				fmt.Sprintf("field %q already exists", name), apperrors.ErrDuplicateField,
			).WithField(name)
		}
	}

	k := input.Index(m.Anchor)
	anchor := elem.Properties[k]
	props := make([]Property, 0, len(elem.Properties)+len(added))
	props = append(props, elem.Properties[:k+1]...)
	for _, name := range added {
		props = append(props, Property{Name: name, Type: anchor.Type, TypeName: anchor.TypeName})
	}
	props = append(props, elem.Properties[k+1:]...)

	output, err := NewSchema(props)
	if err != nil {
		return nil, apperrors.NewSchemaInvariantError(err.Error(), apperrors.ErrMalformedHeader)
	}

	if m.ExpectedStride != NoStrideCheck && output.Stride() != m.ExpectedStride {
		return nil, apperrors.NewSchemaInvariantError(
			"output record size does not match the expected layout", apperrors.ErrStrideMismatch,
		).WithField(m.Element).
			WithExpected(fmt.Sprintf("%d bytes", m.ExpectedStride)).
			WithActual(fmt.Sprintf("%d bytes", output.Stride()))
	}

	out := h.Clone()
	out.Elements[index].Properties = props

	return &Plan{
		Migration: m,
		Input:     input,
		Output:    output,
		Header:    out,
		element:   index,
		segments:  copySegments(input, output),
	}, nil
}

// copySegments maps every input field to the output field of the same name
// and merges adjacent runs.
func copySegments(in, out Schema) []segment {
	var segs []segment
	for _, f := range in.Fields {
		dst := out.Fields[out.Index(f.Name)].Offset
		n := f.Type.Size()
		if len(segs) > 0 {
			last := &segs[len(segs)-1]
			if last.src+last.n == f.Offset && last.dst+last.n == dst {
				last.n += n
				continue
			}
		}
		segs = append(segs, segment{src: f.Offset, dst: dst, n: n})
	}
	return segs
}

// Result summarises a completed migration.
type Result struct {
	Vertices     int
	InputStride  int
	OutputStride int
	AddedFields  []string
	Output       string
}

// streamError records which side of a copy failed.
type streamError struct {
	op  string
	err error
}

func (e *streamError) Error() string { return e.op + ": " + e.err.Error() }
func (e *streamError) Unwrap() error { return e.err }

// Migrate streams a PLY body from r to w according to plan. r must be
// positioned just after the header.
func Migrate(r io.Reader, w io.Writer, plan *Plan) error {
	if _, err := plan.Header.WriteTo(w); err != nil {
		return &streamError{"write", err}
	}
	order := plan.Header.Format.ByteOrder()
	for i := range plan.Header.Elements {
		var err error
		if i == plan.element {
			err = migrateRecords(w, r, plan)
		} else {
			// The input and output headers agree on every other element.
			err = copyElement(writerFunc(func(p []byte) (int, error) {
				n, err := w.Write(p)
				if err != nil {
					return n, &streamError{"write", err}
				}
				return n, nil
			}), r, &plan.Header.Elements[i], order)
		}
		if err != nil {
			var se *streamError
			if apperrors.As(err, &se) {
				return se
			}
			return &streamError{"read", err}
		}
	}
	return nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func migrateRecords(w io.Writer, r io.Reader, plan *Plan) error {
	inStride, outStride := plan.InputStride(), plan.OutputStride()
	remaining := plan.Records()
	batch := min(remaining, batchRecords)
	in := make([]byte, batch*inStride)
	out := make([]byte, batch*outStride)

	for remaining > 0 {
		n := min(remaining, batchRecords)
		src := in[:n*inStride]
		if _, err := io.ReadFull(r, src); err != nil {
			return unexpectedEOF(err)
		}
		dst := out[:n*outStride]
		clear(dst)
		for i := 0; i < n; i++ {
			rec := src[i*inStride : (i+1)*inStride]
			res := dst[i*outStride : (i+1)*outStride]
			for _, s := range plan.segments {
				copy(res[s.dst:s.dst+s.n], rec[s.src:s.src+s.n])
			}
		}
		if _, err := w.Write(dst); err != nil {
			return &streamError{"write", err}
		}
		remaining -= n
	}
	return nil
}

// MigrateFile migrates inputPath into outputPath. The header and layout are
// validated before any output exists; the body is written to a temporary
// file next to outputPath and renamed over it, so outputPath is either the
// complete previous file or the complete new one. Input and output may be
// the same path.
func MigrateFile(inputPath, outputPath string, m Migration) (Result, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return Result{}, apperrors.NewIOError("open", inputPath, err)
	}
	defer in.Close()

	br := bufio.NewReaderSize(in, 1<<16)
	h, err := ReadHeader(br)
	if err != nil {
		return Result{}, wrapReadErr(err, inputPath)
	}
	plan, err := m.Plan(h)
	if err != nil {
		return Result{}, err
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, apperrors.NewIOError("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))+"-*.tmp")
	if err != nil {
		return Result{}, apperrors.NewIOError("create", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<16)
	if err := Migrate(br, bw, plan); err != nil {
		var se *streamError
		if apperrors.As(err, &se) && se.op == "read" {
			return Result{}, apperrors.NewIOError("read", inputPath, se.err)
		}
		return Result{}, apperrors.NewIOError("write", tmpName, err)
	}
	if err := bw.Flush(); err != nil {
		return Result{}, apperrors.NewIOError("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return Result{}, apperrors.NewIOError("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, apperrors.NewIOError("close", tmpName, err)
	}
	// Release the input before replacing it when migrating in place.
	in.Close()
	if err := fsutil.ReplaceFile(tmpName, outputPath); err != nil {
		return Result{}, apperrors.NewIOError("rename", outputPath, err)
	}
	committed = true

	return Result{
		Vertices:     plan.Records(),
		InputStride:  plan.InputStride(),
		OutputStride: plan.OutputStride(),
		AddedFields:  plan.Migration.FieldNames(),
		Output:       outputPath,
	}, nil
}
