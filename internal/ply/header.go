package ply

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
)

// Header is a parsed PLY header.
type Header struct {
	Format  Format
	Version string
	// Comments holds comment and obj_info lines verbatim, without the line ending.
	Comments []string
	Elements []Element
}

// Element returns the named element and its position, or nil and -1.
func (h *Header) Element(name string) (*Element, int) {
	for i := range h.Elements {
		if h.Elements[i].Name == name {
			return &h.Elements[i], i
		}
	}
	return nil, -1
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	c := &Header{
		Format:   h.Format,
		Version:  h.Version,
		Comments: append([]string(nil), h.Comments...),
		Elements: make([]Element, len(h.Elements)),
	}
	for i, e := range h.Elements {
		c.Elements[i] = Element{
			Name:       e.Name,
			Count:      e.Count,
			Properties: append([]Property(nil), e.Properties...),
		}
	}
	return c
}

// WriteTo writes the header, including end_header, with LF line endings.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString("ply\n")
	fmt.Fprintf(&buf, "format %s %s\n", h.Format, orDefault(h.Version, "1.0"))
	for _, c := range h.Comments {
		buf.WriteString(c)
		buf.WriteByte('\n')
	}
	for _, e := range h.Elements {
		fmt.Fprintf(&buf, "element %s %d\n", e.Name, e.Count)
		for _, p := range e.Properties {
			buf.WriteString(p.headerLine())
			buf.WriteByte('\n')
		}
	}
	buf.WriteString("end_header\n")
	return buf.WriteTo(w)
}

// maxHeaderLines bounds the header so a non-PLY file is rejected quickly.
const maxHeaderLines = 10000

// maxElementCount keeps count*stride within int64 for any header that fits
// in maxHeaderLines.
const maxElementCount = 1 << 40

func malformed(format string, args ...any) error {
	return apperrors.NewSchemaInvariantError(fmt.Sprintf(format, args...), apperrors.ErrMalformedHeader)
}

// ReadHeader parses the header from r, leaving r positioned at the first
// body byte. Structural problems are *errors.SchemaInvariantError values
// wrapping errors.ErrMalformedHeader.
func ReadHeader(r *bufio.Reader) (*Header, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if line != "ply" {
		return nil, malformed("missing ply magic")
	}

	h := &Header{}
	var current *Element
	for n := 0; ; n++ {
		if n > maxHeaderLines {
			return nil, malformed("header exceeds %d lines", maxHeaderLines)
		}
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		keyword, rest, _ := strings.Cut(line, " ")

		switch keyword {
		case "end_header":
			if h.Format == "" {
				return nil, malformed("missing format line")
			}
			return h, nil

		case "format":
			fields := strings.Fields(rest)
			if len(fields) != 2 {
				return nil, malformed("invalid format line %q", line)
			}
			h.Format, h.Version = Format(fields[0]), fields[1]
			if !h.Format.IsBinary() && h.Format != FormatASCII {
				return nil, malformed("unknown format %q", fields[0])
			}

		case "comment", "obj_info":
			h.Comments = append(h.Comments, line)

		case "element":
			fields := strings.Fields(rest)
			if len(fields) != 2 {
				return nil, malformed("invalid element line %q", line)
			}
			count, err := strconv.Atoi(fields[1])
			if err != nil || count < 0 {
				return nil, malformed("invalid element count %q", fields[1])
			}
			if count > maxElementCount {
				return nil, malformed("element count %d exceeds %d", count, maxElementCount)
			}
			h.Elements = append(h.Elements, Element{Name: fields[0], Count: count})
			current = &h.Elements[len(h.Elements)-1]

		case "property":
			if current == nil {
				return nil, malformed("property before any element")
			}
			prop, err := parseProperty(strings.Fields(rest))
			if err != nil {
				return nil, malformed("invalid property line %q: %v", line, err)
			}
			current.Properties = append(current.Properties, prop)

		case "":
			// Blank lines are tolerated

		default:
			return nil, malformed("unexpected header keyword %q", keyword)
		}
	}
}

func parseProperty(fields []string) (Property, error) {
	if len(fields) == 4 && fields[0] == "list" {
		countType, err := ParseScalarType(fields[1])
		if err != nil {
			return Property{}, err
		}
		if countType == Float || countType == Double {
			return Property{}, fmt.Errorf("list count type must be an integer")
		}
		itemType, err := ParseScalarType(fields[2])
		if err != nil {
			return Property{}, err
		}
		return Property{
			Name:          fields[3],
			Type:          itemType,
			TypeName:      fields[2],
			IsList:        true,
			CountType:     countType,
			CountTypeName: fields[1],
		}, nil
	}
	if len(fields) != 2 {
		return Property{}, fmt.Errorf("expected type and name")
	}
	t, err := ParseScalarType(fields[0])
	if err != nil {
		return Property{}, err
	}
	return Property{Name: fields[1], Type: t, TypeName: fields[0]}, nil
}

// readLine reads one header line without its CR/LF terminator. Lines longer
// than the reader's buffer mean the input is not a PLY header.
func readLine(r *bufio.Reader) (string, error) {
	b, err := r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return "", malformed("header line too long")
		}
		if errors.Is(err, io.EOF) {
			return "", malformed("unexpected end of file in header")
		}
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// ReadHeaderFile parses the header of the PLY file at path.
func ReadHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIOError("open", path, err)
	}
	defer f.Close()

	h, err := ReadHeader(bufio.NewReader(f))
	if err != nil {
		return nil, wrapReadErr(err, path)
	}
	return h, nil
}

// wrapReadErr turns plain I/O errors into *errors.IOError, leaving typed
// errors untouched.
func wrapReadErr(err error, path string) error {
	var schemaErr *apperrors.SchemaInvariantError
	var ioErr *apperrors.IOError
	if apperrors.As(err, &schemaErr) || apperrors.As(err, &ioErr) {
		return err
	}
	return apperrors.NewIOError("read", path, err)
}
