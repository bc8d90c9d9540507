package box

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/pkg/errors"
)

type stringMode uint8

const (
	stringNul     stringMode = iota // terminated by NUL, or by the end of the payload
	stringFixed                     // exactly size bytes, NUL padded
	stringCounted                   // one length byte then text, padded to size bytes
	stringRest                      // everything left in the payload
)

// String keeps the bytes it was decoded from so an untouched value re-encodes identically.
type String struct {
	base
	mode   stringMode
	size   int
	values []string
	raw    [][]byte
}

func NewString(name string) *String {
	return &String{base: base{name: name}, mode: stringNul, values: make([]string, 1), raw: make([][]byte, 1)}
}

func NewFixedString(name string, size int) *String {
	s := NewString(name)
	s.mode, s.size = stringFixed, size
	return s
}

// NewCountedString is a Pascal string occupying size bytes including the length byte.
func NewCountedString(name string, size int) *String {
	s := NewString(name)
	s.mode, s.size = stringCounted, size
	return s
}

func NewRestString(name string) *String {
	s := NewString(name)
	s.mode = stringRest
	return s
}

func (f *String) Kind() Kind {
	return KindString
}

func (f *String) Count() int {
	return len(f.values)
}

func (f *String) Value(i int) string {
	if i < 0 || i >= len(f.values) {
		return ""
	}
	return f.values[i]
}

func (f *String) SetValue(v string, i int) error {
	if f.readOnly {
		return errors.Wrapf(ErrReadOnly, "%s", f.name)
	}
	if i < 0 || i >= len(f.values) {
		return errors.Wrapf(ErrOutOfRange, "%s[%d] of %d", f.name, i, len(f.values))
	}
	switch f.mode {
	case stringFixed:
		if len(v) > f.size {
			return errors.Wrapf(ErrInvalidValue, "%s: %d bytes exceed %d", f.name, len(v), f.size)
		}
	case stringCounted:
		if len(v) > f.size-1 || len(v) > 255 {
			return errors.Wrapf(ErrInvalidValue, "%s: %d bytes exceed %d", f.name, len(v), f.size-1)
		}
	}
	f.values[i] = v
	f.raw[i] = nil
	return nil
}

func (f *String) AddValue(v string) {
	f.values = append(f.values, v)
	f.raw = append(f.raw, nil)
}

func (f *String) resize(n int) {
	f.values = make([]string, n)
	f.raw = make([][]byte, n)
}

func (f *String) insertAt(i int) {
	f.values = slices.Insert(f.values, i, "")
	f.raw = slices.Insert(f.raw, i, nil)
}

func (f *String) deleteAt(i int) {
	f.values = slices.Delete(f.values, i, i+1)
	f.raw = slices.Delete(f.raw, i, i+1)
}

func (f *String) rowBits() int {
	switch f.mode {
	case stringFixed, stringCounted:
		return f.size * 8
	}
	return 8
}

func (f *String) readAt(r *Reader, i int) error {
	var b []byte
	var err error
	switch f.mode {
	case stringFixed:
		if b, err = r.ReadN(f.size); err != nil {
			return err
		}
		f.values[i] = string(trimNul(b))
	case stringCounted:
		if b, err = r.ReadN(f.size); err != nil {
			return err
		}
		n := min(int(b[0]), f.size-1)
		f.values[i] = string(b[1 : 1+n])
	case stringRest:
		b, _ = r.ReadN(r.Remaining())
		f.values[i] = string(trimNul(b))
	default:
		rest := r.Peek()
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			n = len(rest)
		} else {
			n++
		}
		b, _ = r.ReadN(n)
		f.values[i] = string(trimNul(b))
	}
	f.raw[i] = append([]byte{}, b...)
	return nil
}

func trimNul(b []byte) []byte {
	if n := bytes.IndexByte(b, 0); n >= 0 {
		return b[:n]
	}
	return b
}

func (f *String) writeAt(w *Writer, i int) error {
	if f.raw[i] != nil {
		w.Write(f.raw[i])
		return nil
	}
	v := f.values[i]
	switch f.mode {
	case stringFixed:
		b := make([]byte, f.size)
		copy(b, v)
		w.Write(b)
	case stringCounted:
		b := make([]byte, f.size)
		b[0] = byte(len(v))
		copy(b[1:], v)
		w.Write(b)
	case stringRest:
		w.Write([]byte(v))
	default:
		w.Write(append([]byte(v), 0))
	}
	return nil
}

func (f *String) Read(r *Reader) error {
	for i := range f.values {
		if err := f.readAt(r, i); err != nil {
			return err
		}
	}
	return nil
}

func (f *String) Write(w *Writer) error {
	for i := range f.values {
		f.writeAt(w, i)
	}
	return nil
}

func (f *String) Generate() {
	f.resize(1)
}

func (f *String) format(i int) string {
	return fmt.Sprintf("%q", f.Value(i))
}

func (f *String) Dump(w io.Writer, indent int) {
	dumpValues(w, indent, f.name, len(f.values), f.format)
}
