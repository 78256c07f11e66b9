package ply

import (
	"encoding/binary"
	"fmt"
	"io"
)

// copyElement streams the body of e from r to w unchanged. Fixed-size
// elements are copied in one run; elements with list properties are walked
// record by record to find their extent.
func copyElement(w io.Writer, r io.Reader, e *Element, order binary.ByteOrder) error {
	if !e.HasLists() {
		s, err := e.Schema()
		if err != nil {
			return err
		}
		return copyExact(w, r, int64(e.Count)*int64(s.Stride()))
	}

	var count [8]byte
	for i := 0; i < e.Count; i++ {
		for _, p := range e.Properties {
			if !p.IsList {
				if err := copyExact(w, r, int64(p.Type.Size())); err != nil {
					return err
				}
				continue
			}
			b := count[:p.CountType.Size()]
			if _, err := io.ReadFull(r, b); err != nil {
				return unexpectedEOF(err)
			}
			if _, err := w.Write(b); err != nil {
				return err
			}
			n := p.CountType.Decode(b, order)
			if n < 0 {
				return fmt.Errorf("element %q record %d: negative list length for %q", e.Name, i, p.Name)
			}
			if err := copyExact(w, r, int64(n)*int64(p.Type.Size())); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyExact copies exactly n bytes, reporting a short source as
// io.ErrUnexpectedEOF.
func copyExact(w io.Writer, r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(w, r, n); err != nil {
		return unexpectedEOF(err)
	}
	return nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
