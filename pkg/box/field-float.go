package box

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/pkg/errors"
)

type FloatFormat uint8

const (
	FloatIEEE FloatFormat = iota
	Fixed16               // 8.8 signed
	Fixed32               // 16.16 signed
)

// Float stores the raw encoding so unchanged values are written back bit-exact.
type Float struct {
	base
	encoding FloatFormat
	raw      []uint32
}

func NewFloat(name string, format FloatFormat) *Float {
	return &Float{base: base{name: name}, encoding: format, raw: make([]uint32, 1)}
}

func (f *Float) Kind() Kind {
	return KindFloat32
}

func (f *Float) Count() int {
	return len(f.raw)
}

func (f *Float) size() int {
	if f.encoding == Fixed16 {
		return 2
	}
	return 4
}

func (f *Float) Value(i int) float64 {
	if i < 0 || i >= len(f.raw) {
		return 0
	}
	switch f.encoding {
	case Fixed16:
		return float64(int16(f.raw[i])) / 256
	case Fixed32:
		return float64(int32(f.raw[i])) / 65536
	}
	return float64(math.Float32frombits(f.raw[i]))
}

func (f *Float) SetValue(v float64, i int) error {
	if f.readOnly {
		return errors.Wrapf(ErrReadOnly, "%s", f.name)
	}
	if i < 0 || i >= len(f.raw) {
		return errors.Wrapf(ErrOutOfRange, "%s[%d] of %d", f.name, i, len(f.raw))
	}
	switch f.encoding {
	case Fixed16:
		f.raw[i] = uint32(uint16(int16(math.Round(v * 256))))
	case Fixed32:
		f.raw[i] = uint32(int32(math.Round(v * 65536)))
	default:
		f.raw[i] = math.Float32bits(float32(v))
	}
	return nil
}

func (f *Float) resize(n int) {
	f.raw = make([]uint32, n)
}

func (f *Float) insertAt(i int) {
	f.raw = slices.Insert(f.raw, i, 0)
}

func (f *Float) deleteAt(i int) {
	f.raw = slices.Delete(f.raw, i, i+1)
}

func (f *Float) rowBits() int {
	return f.size() * 8
}

func (f *Float) readAt(r *Reader, i int) error {
	v, err := r.ReadUint(f.size())
	f.raw[i] = uint32(v)
	return err
}

func (f *Float) writeAt(w *Writer, i int) error {
	w.WriteUint(uint64(f.raw[i]), f.size())
	return nil
}

func (f *Float) Read(r *Reader) error {
	for i := range f.raw {
		if err := f.readAt(r, i); err != nil {
			return err
		}
	}
	return nil
}

func (f *Float) Write(w *Writer) error {
	for i := range f.raw {
		f.writeAt(w, i)
	}
	return nil
}

func (f *Float) Generate() {
	f.resize(len(f.raw))
}

func (f *Float) format(i int) string {
	return fmt.Sprintf("%g", f.Value(i))
}

func (f *Float) Dump(w io.Writer, indent int) {
	dumpValues(w, indent, f.name, len(f.raw), f.format)
}
