package box

import (
	"bytes"
	"encoding/hex"
	"io"
	"slices"

	"github.com/pkg/errors"
)

// Bytes is an opaque byte run. Its length is fixed, taken from another Integer field,
// or whatever is left of the payload.
type Bytes struct {
	base
	fixed  int
	sizeOf *Integer
	rest   bool
	values [][]byte
}

func NewBytes(name string, size int) *Bytes {
	return &Bytes{base: base{name: name}, fixed: size, values: [][]byte{make([]byte, size)}}
}

// NewCountedBytes reads as many bytes as sizeOf holds; SetValue keeps sizeOf in sync.
func NewCountedBytes(name string, sizeOf *Integer) *Bytes {
	return &Bytes{base: base{name: name}, sizeOf: sizeOf, values: [][]byte{nil}}
}

func NewRestBytes(name string) *Bytes {
	return &Bytes{base: base{name: name}, rest: true, values: [][]byte{nil}}
}

// NewReserved is a read-only fixed run; template, when given, is its generated content.
func NewReserved(name string, size int, template ...byte) *Bytes {
	f := NewBytes(name, size)
	copy(f.values[0], template)
	f.readOnly = true
	return f
}

func (f *Bytes) Kind() Kind {
	return KindBytes
}

func (f *Bytes) Count() int {
	return len(f.values)
}

func (f *Bytes) Value(i int) []byte {
	if i < 0 || i >= len(f.values) {
		return nil
	}
	return f.values[i]
}

func (f *Bytes) SetValue(v []byte, i int) error {
	if f.readOnly {
		return errors.Wrapf(ErrReadOnly, "%s", f.name)
	}
	if i < 0 || i >= len(f.values) {
		return errors.Wrapf(ErrOutOfRange, "%s[%d] of %d", f.name, i, len(f.values))
	}
	if f.fixed > 0 && len(v) != f.fixed {
		return errors.Wrapf(ErrInvalidValue, "%s: need %d bytes, got %d", f.name, f.fixed, len(v))
	}
	if f.sizeOf != nil {
		if uint64(len(v)) > f.sizeOf.mask() {
			return errors.Wrapf(ErrInvalidValue, "%s: %d bytes do not fit %s", f.name, len(v), f.sizeOf.name)
		}
		f.sizeOf.values[0] = uint64(len(v))
	}
	f.values[i] = bytes.Clone(v)
	return nil
}

func (f *Bytes) resize(n int) {
	f.values = make([][]byte, n)
}

func (f *Bytes) insertAt(i int) {
	f.values = slices.Insert(f.values, i, make([]byte, f.fixed))
}

func (f *Bytes) deleteAt(i int) {
	f.values = slices.Delete(f.values, i, i+1)
}

func (f *Bytes) rowBits() int {
	return f.fixed * 8
}

func (f *Bytes) readAt(r *Reader, i int) (err error) {
	n := f.fixed
	switch {
	case f.rest:
		n = r.Remaining()
	case f.sizeOf != nil:
		if f.sizeOf.Value(0) > uint64(r.Remaining()) {
			return errors.Wrapf(ErrMalformed, "%s: %d bytes at offset %d, %d left", f.name, f.sizeOf.Value(0), r.Position(), r.Remaining())
		}
		n = int(f.sizeOf.Value(0))
	}
	b, err := r.ReadN(n)
	if err != nil {
		return
	}
	f.values[i] = bytes.Clone(b)
	return
}

func (f *Bytes) writeAt(w *Writer, i int) error {
	v := f.values[i]
	if f.fixed > 0 && len(v) != f.fixed {
		b := make([]byte, f.fixed)
		copy(b, v)
		v = b
	}
	w.Write(v)
	return nil
}

func (f *Bytes) Read(r *Reader) error {
	for i := range f.values {
		if err := f.readAt(r, i); err != nil {
			return err
		}
	}
	return nil
}

func (f *Bytes) Write(w *Writer) error {
	for i := range f.values {
		f.writeAt(w, i)
	}
	return nil
}

// Generate zeroes the value unless the field is a reserved template.
func (f *Bytes) Generate() {
	if f.readOnly && len(f.values) == 1 {
		return
	}
	f.values = [][]byte{make([]byte, f.fixed)}
	if f.sizeOf != nil {
		f.sizeOf.values[0] = uint64(f.fixed)
	}
}

func (f *Bytes) format(i int) string {
	v := f.Value(i)
	if len(v) > 32 {
		return "<" + hex.EncodeToString(v[:32]) + "...>"
	}
	return "<" + hex.EncodeToString(v) + ">"
}

func (f *Bytes) Dump(w io.Writer, indent int) {
	dumpValues(w, indent, f.name, len(f.values), f.format)
}
